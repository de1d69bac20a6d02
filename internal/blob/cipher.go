package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

func newAEAD(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: new aes cipher: %v", ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: new gcm: %v", ErrCrypto, err)
	}
	return aead, nil
}

// writeChunks reads src (the compressed intermediate) in chunkSize
// slices and writes each as a length-prefixed AEAD ciphertext to dst.
// Empty input still emits exactly one zero-length-plaintext chunk, so
// the ciphertext carries an authentication tag (spec.md §4.1).
func writeChunks(dst io.Writer, src io.Reader, aead cipher.AEAD, prefix [12]byte, chunkSize uint32) error {
	buf := make([]byte, chunkSize)
	counter := uint32(0)
	wroteAny := false
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if werr := writeOneChunk(dst, aead, prefix, counter, buf[:n]); werr != nil {
				return werr
			}
			wroteAny = true
			counter++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: read compressed input: %v", ErrIo, err)
		}
	}
	if !wroteAny {
		if err := writeOneChunk(dst, aead, prefix, counter, nil); err != nil {
			return err
		}
	}
	return nil
}

func writeOneChunk(dst io.Writer, aead cipher.AEAD, prefix [12]byte, counter uint32, plaintext []byte) error {
	nonce := chunkNonce(prefix, counter)
	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)
	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ciphertext)))
	if _, err := dst.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: write chunk length: %v", ErrIo, err)
	}
	if _, err := dst.Write(ciphertext); err != nil {
		return fmt.Errorf("%w: write chunk ciphertext: %v", ErrIo, err)
	}
	return nil
}

// chunkDecryptReader decrypts a sequence of length-prefixed AEAD chunks
// from an underlying reader into a stream of plaintext (here: the
// compressed intermediate bytes) that callers feed to a zstd decoder.
type chunkDecryptReader struct {
	src       io.Reader
	aead      cipher.AEAD
	prefix    [12]byte
	chunkSize uint32
	counter   uint32
	pending   []byte
	done      bool
}

func newChunkDecryptReader(src io.Reader, aead cipher.AEAD, prefix [12]byte, chunkSize uint32) *chunkDecryptReader {
	return &chunkDecryptReader{src: src, aead: aead, prefix: prefix, chunkSize: chunkSize}
}

func (r *chunkDecryptReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.fillNext(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *chunkDecryptReader) fillNext() error {
	var lenBuf [lengthPrefixSize]byte
	_, err := io.ReadFull(r.src, lenBuf[:])
	if err == io.EOF {
		r.done = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read chunk length: %v", ErrIo, err)
	}
	chunkLen := binary.BigEndian.Uint32(lenBuf[:])
	if chunkLen > r.chunkSize+AEADTagSize {
		return fmt.Errorf("%w: chunk length %d exceeds bound", ErrIntegrity, chunkLen)
	}
	ciphertext := make([]byte, chunkLen)
	if _, err := io.ReadFull(r.src, ciphertext); err != nil {
		return fmt.Errorf("%w: read chunk ciphertext: %v", ErrPartialWriteDetected, err)
	}
	nonce := chunkNonce(r.prefix, r.counter)
	plaintext, err := r.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: authenticate chunk %d: %v", ErrCrypto, r.counter, err)
	}
	r.counter++
	r.pending = plaintext
	return nil
}
