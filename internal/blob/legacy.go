package blob

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// readLegacy decrypts and decompresses a pre-BS2 blob: the whole file
// is one AEAD ciphertext over one zstd frame, nonce = SHA-256(key ||
// digest)[0:12] (spec.md §4.1, §6). This path exists only for reading
// blobs written before the chunked format; nothing in this module
// writes legacy blobs.
func readLegacy(ciphertext []byte, key [32]byte, digest Digest, sink io.Writer) (int64, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}
	prefix := noncePrefix(key, digest)
	plaintext, err := aead.Open(nil, prefix[:], ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: legacy authenticate: %v", ErrCrypto, err)
	}

	dec, err := zstd.NewReader(newByteReader(plaintext))
	if err != nil {
		return 0, fmt.Errorf("%w: legacy zstd reader: %v", ErrIo, err)
	}
	defer dec.Close()

	hw := newHashingWriter(sink)
	n, err := io.Copy(hw, dec)
	if err != nil {
		return 0, fmt.Errorf("%w: legacy decompress: %v", ErrIntegrity, err)
	}
	if !hw.Digest().Equal(digest) {
		return 0, fmt.Errorf("%w: legacy digest mismatch", ErrIntegrity)
	}
	return n, nil
}

type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
