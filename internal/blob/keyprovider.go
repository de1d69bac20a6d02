package blob

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeyProvider is the capability interface the blob store is generic
// over (spec.md §9: "prefer generic parameters over boxed interfaces
// in hot paths (blob store BlobStore<K: KeyProvider>)").
//
// CurrentKey is used for every put/put_reader. Keys returns the full
// ordered list of keys a get/get_to_writer should try — current first,
// then historical — satisfying spec.md §1's "the blob store assumes
// the reader can supply historical keys".
type KeyProvider interface {
	CurrentKey() [32]byte
	Keys() [][32]byte
}

// StaticKeyProvider is a fixed 32-byte key: the minimum spec.md
// requires, and the right choice when key material comes from an
// external secret manager that already handles rotation.
type StaticKeyProvider struct {
	key [32]byte
}

// NewStaticKeyProvider wraps a pre-existing 32-byte key.
func NewStaticKeyProvider(key [32]byte) StaticKeyProvider {
	return StaticKeyProvider{key: key}
}

func (p StaticKeyProvider) CurrentKey() [32]byte   { return p.key }
func (p StaticKeyProvider) Keys() [][32]byte        { return [][32]byte{p.key} }

// HistoricalKeyProvider wraps an ordered list of keys, current first,
// so get/get_to_writer can still decrypt blobs written under a retired
// key (spec.md §1, §9 Open Question (b) on deployment documentation).
// put/put_reader always use the first (current) key.
type HistoricalKeyProvider struct {
	keys [][32]byte
}

// NewHistoricalKeyProvider builds a provider from current followed by
// zero or more retired keys, in the order get should try them.
func NewHistoricalKeyProvider(current [32]byte, retired ...[32]byte) HistoricalKeyProvider {
	keys := make([][32]byte, 0, len(retired)+1)
	keys = append(keys, current)
	keys = append(keys, retired...)
	return HistoricalKeyProvider{keys: keys}
}

func (p HistoricalKeyProvider) CurrentKey() [32]byte { return p.keys[0] }
func (p HistoricalKeyProvider) Keys() [][32]byte     { return p.keys }

// Argon2id parameters, matching the teacher's password-hashing profile
// (OWASP-recommended) reused here for key derivation rather than
// credential storage.
const (
	argonMemoryKiB = 64 * 1024
	argonTime      = 3
	argonThreads   = 4
	argonKeyLen    = 32
	argonSaltLen   = 16
)

// PassphraseKeyProvider derives its 32-byte key from an operator
// passphrase and a stored salt via Argon2id, for deployments without a
// secret manager (SPEC_FULL.md §3.2 [NEW]).
type PassphraseKeyProvider struct {
	key [32]byte
}

// NewPassphraseKeyProvider derives the key now; reuse the returned salt
// across restarts (store it alongside the blob root) so the same
// passphrase yields the same key.
func NewPassphraseKeyProvider(passphrase string, salt []byte) (PassphraseKeyProvider, error) {
	if len(salt) != argonSaltLen {
		return PassphraseKeyProvider{}, fmt.Errorf("blob: passphrase key derivation: salt must be %d bytes", argonSaltLen)
	}
	derived := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemoryKiB, argonThreads, argonKeyLen)
	var key [32]byte
	copy(key[:], derived)
	return PassphraseKeyProvider{key: key}, nil
}

// NewPassphraseSalt generates a fresh random salt for first-time setup.
func NewPassphraseSalt() ([]byte, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("blob: generate passphrase salt: %w", err)
	}
	return salt, nil
}

func (p PassphraseKeyProvider) CurrentKey() [32]byte { return p.key }
func (p PassphraseKeyProvider) Keys() [][32]byte     { return [][32]byte{p.key} }
