package blob

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Magic, version, header layout, and chunk wire format from spec.md §6:
//
//	"BS2\0" (4) || version=1 (1) || chunk_size: u32_be (4) ||
//	{ len: u32_be, ciphertext[len] }*
const (
	magic         = "BS2\x00"
	formatVersion = 1
	headerSize    = 4 + 1 + 4

	// AEADTagSize is the AES-256-GCM authentication tag length.
	AEADTagSize = 16

	// DefaultChunkSize is the compressed-bytes-per-AEAD-chunk size used
	// for new writes. Existing blobs carry their own chunk size in the
	// header, so changing this default never breaks old reads.
	DefaultChunkSize = 1 << 20

	lengthPrefixSize = 4
)

// header is the parsed fixed header of a current-format blob file.
type header struct {
	version   uint8
	chunkSize uint32
}

func encodeHeader(chunkSize uint32) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic)
	buf[4] = formatVersion
	binary.BigEndian.PutUint32(buf[5:9], chunkSize)
	return buf
}

// decodeHeader parses a fixed-size header buffer. hasMagic reports
// whether the buffer starts with the current-format magic; when false,
// callers fall back to the legacy single-shot reader.
func decodeHeader(buf []byte) (h header, hasMagic bool, err error) {
	if len(buf) < headerSize {
		return header{}, false, fmt.Errorf("%w: short header", ErrIntegrity)
	}
	if string(buf[0:4]) != magic {
		return header{}, false, nil
	}
	version := buf[4]
	if version != formatVersion {
		return header{}, true, fmt.Errorf("%w: unsupported blob version %d", ErrIntegrity, version)
	}
	chunkSize := binary.BigEndian.Uint32(buf[5:9])
	if chunkSize == 0 {
		return header{}, true, fmt.Errorf("%w: zero chunk_size", ErrIntegrity)
	}
	return header{version: version, chunkSize: chunkSize}, true, nil
}

// noncePrefix derives the 12-byte value spec.md §3/§4.1 calls
// prefix = SHA-256(key || digest)[0:12]. The current chunked format
// uses only the first 8 bytes of it, concatenated with a 4-byte
// big-endian counter, as the 12-byte AES-GCM nonce for each chunk. The
// legacy single-shot format uses the full 12 bytes directly.
func noncePrefix(key [32]byte, digest Digest) [12]byte {
	h := sha256.New()
	h.Write(key[:])
	h.Write(digest[:])
	sum := h.Sum(nil)
	var prefix [12]byte
	copy(prefix[:], sum[:12])
	return prefix
}

// chunkNonce builds the per-chunk nonce: prefix[0:8] || counter_be32.
func chunkNonce(prefix [12]byte, counter uint32) [12]byte {
	var nonce [12]byte
	copy(nonce[:8], prefix[:8])
	binary.BigEndian.PutUint32(nonce[8:12], counter)
	return nonce
}
