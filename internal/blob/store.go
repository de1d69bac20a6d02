package blob

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/ziXnOrg/ORCA/internal/logging"
)

// Mirror is the optional best-effort off-box copy a Store pushes every
// newly committed blob to (SPEC_FULL.md §4.1 "remote tier"). A Mirror
// is never consulted on the read path; failures are logged, not
// propagated to the caller of Put/PutReader.
type Mirror interface {
	Put(ctx context.Context, digestHex string, r io.Reader, size int64) error
}

// Store is ORCA's encrypted content-addressable blob store, generic
// over its KeyProvider (spec.md §9). One Store exclusively owns root
// and everything under root/sha256 and root/.tmp (spec.md §3
// Ownership).
type Store[K KeyProvider] struct {
	root      string
	keys      K
	chunkSize uint32
	logger    *slog.Logger
	mirror    Mirror
}

// SetMirror installs the optional remote mirror tier. Passing nil
// disables mirroring; the default is no mirror.
func (s *Store[K]) SetMirror(m Mirror) { s.mirror = m }

// New creates a Store rooted at root, creating the directory layout if
// absent.
func New[K KeyProvider](root string, keys K, logger *slog.Logger) (*Store[K], error) {
	logger = logging.Default(logger).With("component", "blob")
	if err := os.MkdirAll(filepath.Join(root, "sha256"), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create sha256 dir: %v", ErrIo, err)
	}
	if err := os.MkdirAll(tmpDir(root), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create tmp dir: %v", ErrIo, err)
	}
	return &Store[K]{root: root, keys: keys, chunkSize: DefaultChunkSize, logger: logger}, nil
}

// PathFor returns the sharded path a digest hex string resolves to.
func (s *Store[K]) PathFor(digestHex string) string {
	return PathFor(s.root, digestHex)
}

// Exists reports whether a blob for digest is present and complete.
func (s *Store[K]) Exists(digest Digest) bool {
	_, err := os.Stat(s.PathFor(digest.Hex()))
	return err == nil
}

// Put stores plaintext and returns its digest. Put is idempotent:
// identical input returns identical on-disk bytes (spec.md §4.1, §8).
func (s *Store[K]) Put(plaintext []byte) (Digest, error) {
	return s.PutReader(bytes.NewReader(plaintext))
}

// Get returns the full plaintext for digest. For large blobs prefer
// GetToWriter, which runs in bounded memory.
func (s *Store[K]) Get(digest Digest) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.GetToWriter(digest, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PutReader streams plaintext through a hasher and a zstd encoder into
// a temp file, then encrypts chunk-by-chunk into the target
// (spec.md §4.1 write protocol). Memory use is bounded by chunkSize.
func (s *Store[K]) PutReader(r io.Reader) (Digest, error) {
	tmpFile, err := os.CreateTemp(tmpDir(s.root), "compressed-*.tmp")
	if err != nil {
		return Digest{}, fmt.Errorf("%w: create compressed temp: %v", ErrIo, err)
	}
	tmpPath := tmpFile.Name()
	removeTmp := func() { _ = os.Remove(tmpPath) }

	enc, err := zstd.NewWriter(tmpFile, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		tmpFile.Close()
		removeTmp()
		return Digest{}, fmt.Errorf("%w: new zstd encoder: %v", ErrIo, err)
	}
	hw := newHashingWriter(enc)
	if _, err := io.Copy(hw, r); err != nil {
		enc.Close()
		tmpFile.Close()
		removeTmp()
		return Digest{}, fmt.Errorf("%w: compress input: %v", ErrIo, err)
	}
	if err := enc.Close(); err != nil {
		tmpFile.Close()
		removeTmp()
		return Digest{}, fmt.Errorf("%w: close zstd encoder: %v", ErrIo, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		removeTmp()
		return Digest{}, fmt.Errorf("%w: fsync compressed temp: %v", ErrIo, err)
	}

	digest := hw.Digest()
	finalPath := s.PathFor(digest.Hex())

	if _, err := os.Stat(finalPath); err == nil {
		tmpFile.Close()
		removeTmp()
		return digest, nil // idempotent
	}

	if err := s.commit(tmpFile, tmpPath, finalPath, digest); err != nil {
		return Digest{}, err
	}
	s.mirrorAsync(digest, finalPath)
	return digest, nil
}

// mirrorAsync pushes the just-committed encrypted file to the
// configured Mirror, if any, without blocking the caller or
// propagating failure (SPEC_FULL.md §4.1: the mirror is a durability
// enrichment, not part of the store's consistency invariants).
func (s *Store[K]) mirrorAsync(digest Digest, finalPath string) {
	if s.mirror == nil {
		return
	}
	go func() {
		f, err := os.Open(finalPath)
		if err != nil {
			s.logger.Warn("mirror: reopen committed blob failed", "digest", digest.Hex(), "error", err)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			s.logger.Warn("mirror: stat committed blob failed", "digest", digest.Hex(), "error", err)
			return
		}
		if err := s.mirror.Put(context.Background(), digest.Hex(), f, info.Size()); err != nil {
			s.logger.Warn("mirror: put failed", "digest", digest.Hex(), "error", err)
		}
	}()
}

// commit encrypts the compressed temp file into an .incomplete sibling
// of finalPath, then atomically renames it into place.
func (s *Store[K]) commit(tmpFile *os.File, tmpPath, finalPath string, digest Digest) error {
	defer os.Remove(tmpPath)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: create shard dir: %v", ErrIo, err)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: seek compressed temp: %v", ErrIo, err)
	}
	defer tmpFile.Close()

	incompletePath := incompletePathFor(finalPath)
	incFile, err := os.OpenFile(incompletePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create incomplete file: %v", ErrIo, err)
	}

	aead, err := newAEAD(s.keys.CurrentKey())
	if err != nil {
		incFile.Close()
		os.Remove(incompletePath)
		return err
	}
	prefix := noncePrefix(s.keys.CurrentKey(), digest)

	if _, err := incFile.Write(encodeHeader(s.chunkSize)); err != nil {
		incFile.Close()
		os.Remove(incompletePath)
		return fmt.Errorf("%w: write header: %v", ErrIo, err)
	}
	if err := writeChunks(incFile, tmpFile, aead, prefix, s.chunkSize); err != nil {
		incFile.Close()
		os.Remove(incompletePath)
		return err
	}
	if err := incFile.Sync(); err != nil {
		incFile.Close()
		os.Remove(incompletePath)
		return fmt.Errorf("%w: fsync incomplete file: %v", ErrIo, err)
	}
	if err := incFile.Close(); err != nil {
		os.Remove(incompletePath)
		return fmt.Errorf("%w: close incomplete file: %v", ErrIo, err)
	}
	if err := os.Rename(incompletePath, finalPath); err != nil {
		return fmt.Errorf("%w: rename into place: %v", ErrIo, err)
	}
	syncDir(filepath.Dir(finalPath))
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

// GetToWriter decrypts, decompresses, and verifies digest in bounded
// memory, writing plaintext directly to sink (spec.md §4.1 read
// protocol). It never surfaces a ".incomplete" sibling as readable
// (spec.md §3 invariant iii).
func (s *Store[K]) GetToWriter(digest Digest, sink io.Writer) (int64, error) {
	finalPath := s.PathFor(digest.Hex())
	f, err := os.Open(finalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, digest.Hex())
		}
		return 0, fmt.Errorf("%w: open %s: %v", ErrIo, finalPath, err)
	}
	defer f.Close()

	var hdrBuf [headerSize]byte
	n, err := io.ReadFull(f, hdrBuf[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w: read header: %v", ErrIo, err)
	}

	hdr, hasMagic, err := decodeHeader(hdrBuf[:n])
	if hasMagic && err != nil {
		return 0, err
	}
	if !hasMagic {
		rest, err := io.ReadAll(f)
		if err != nil {
			return 0, fmt.Errorf("%w: read legacy body: %v", ErrIo, err)
		}
		whole := append(append([]byte{}, hdrBuf[:n]...), rest...)
		for _, key := range s.keys.Keys() {
			written, err := readLegacy(whole, key, digest, sink)
			if err == nil {
				return written, nil
			}
			if !errors.Is(err, ErrCrypto) {
				return 0, err
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrWrongKey, digest.Hex())
	}

	if _, err := f.Seek(int64(headerSize), io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek body: %v", ErrIo, err)
	}

	key, err := s.selectKey(f, hdr, digest)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(int64(headerSize), io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek body: %v", ErrIo, err)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}
	prefix := noncePrefix(key, digest)
	cr := newChunkDecryptReader(f, aead, prefix, hdr.chunkSize)

	dec, err := zstd.NewReader(cr)
	if err != nil {
		return 0, fmt.Errorf("%w: new zstd decoder: %v", ErrIo, err)
	}
	defer dec.Close()

	hw := newHashingWriter(sink)
	written, err := io.Copy(hw, dec)
	if err != nil {
		return 0, fmt.Errorf("%w: decompress: %v", ErrIntegrity, err)
	}
	if !hw.Digest().Equal(digest) {
		return 0, fmt.Errorf("%w: decoded content does not match digest %s", ErrIntegrity, digest.Hex())
	}
	return written, nil
}

// selectKey probes the first chunk against every candidate key and
// returns the first that authenticates, so historical keys (spec.md
// §1, §3.2) work without buffering the whole blob to try each one.
func (s *Store[K]) selectKey(f *os.File, hdr header, digest Digest) ([32]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return [32]byte{}, fmt.Errorf("%w: read first chunk length: %v", ErrPartialWriteDetected, err)
	}
	chunkLen := int(binary.BigEndian.Uint32(lenBuf[:]))
	if uint32(chunkLen) > hdr.chunkSize+AEADTagSize {
		return [32]byte{}, fmt.Errorf("%w: first chunk length exceeds bound", ErrIntegrity)
	}
	ciphertext := make([]byte, chunkLen)
	if _, err := io.ReadFull(f, ciphertext); err != nil {
		return [32]byte{}, fmt.Errorf("%w: read first chunk: %v", ErrPartialWriteDetected, err)
	}

	for _, key := range s.keys.Keys() {
		aead, err := newAEAD(key)
		if err != nil {
			continue
		}
		prefix := noncePrefix(key, digest)
		nonce := chunkNonce(prefix, 0)
		if _, err := aead.Open(nil, nonce[:], ciphertext, nil); err == nil {
			return key, nil
		}
	}
	return [32]byte{}, fmt.Errorf("%w: %s", ErrWrongKey, digest.Hex())
}

// CleanupIncomplete walks sha256/ and removes any ".incomplete" file,
// returning how many were removed. Run periodically to reclaim space
// from crashed writers; ".incomplete" files are never readable as
// blobs regardless (spec.md §4.1).
func (s *Store[K]) CleanupIncomplete() (int, error) {
	root := filepath.Join(s.root, "sha256")
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".incomplete") {
			if rmErr := os.Remove(path); rmErr == nil {
				count++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return count, fmt.Errorf("%w: walk sha256 dir: %v", ErrIo, err)
	}
	return count, nil
}
