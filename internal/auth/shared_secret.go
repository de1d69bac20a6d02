package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrUnauthenticated is returned by both auth modes on any failure;
// callers map it to the gRPC Unauthenticated code (spec.md §4.3 step 1,
// §7).
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// SharedSecretVerifier implements spec.md §4.3 step 1: a constant-time
// compare of the request's authorization header against a configured
// token. An empty token is a misconfiguration and fails closed rather
// than permitting every request (SPEC_FULL.md §4.3 "AuthN modes").
type SharedSecretVerifier struct {
	expected [32]byte
	set      bool
}

// NewSharedSecretVerifier builds a verifier for token. An empty token
// leaves the verifier unset, so Verify always fails closed.
func NewSharedSecretVerifier(token string) SharedSecretVerifier {
	if token == "" {
		return SharedSecretVerifier{}
	}
	return SharedSecretVerifier{expected: sha256.Sum256([]byte(token)), set: true}
}

// Verify compares header against the configured token in constant
// time. Comparing digests rather than raw bytes keeps the comparison
// length-independent of the secret itself.
func (v SharedSecretVerifier) Verify(header string) error {
	if !v.set {
		return ErrUnauthenticated
	}
	got := sha256.Sum256([]byte(header))
	if subtle.ConstantTimeCompare(got[:], v.expected[:]) != 1 {
		return ErrUnauthenticated
	}
	return nil
}
