package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHeader_NoMagicFallsBackToLegacy(t *testing.T) {
	_, hasMagic, err := decodeHeader([]byte("not a blob header"))
	require.NoError(t, err)
	require.False(t, hasMagic)
}

func TestDecodeHeader_ZeroChunkSizeIsIntegrity(t *testing.T) {
	buf := encodeHeader(0)
	_, hasMagic, err := decodeHeader(buf)
	require.True(t, hasMagic)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestDecodeHeader_RoundTrip(t *testing.T) {
	buf := encodeHeader(4096)
	h, hasMagic, err := decodeHeader(buf)
	require.NoError(t, err)
	require.True(t, hasMagic)
	require.Equal(t, uint32(4096), h.chunkSize)
}

func TestChunkNonce_VariesByCounter(t *testing.T) {
	prefix := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	n0 := chunkNonce(prefix, 0)
	n1 := chunkNonce(prefix, 1)
	require.NotEqual(t, n0, n1)
	require.Equal(t, prefix[:8], n0[:8])
}
