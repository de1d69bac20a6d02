package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassphraseKeyProvider_Deterministic(t *testing.T) {
	salt, err := NewPassphraseSalt()
	require.NoError(t, err)

	p1, err := NewPassphraseKeyProvider("correct horse battery staple", salt)
	require.NoError(t, err)
	p2, err := NewPassphraseKeyProvider("correct horse battery staple", salt)
	require.NoError(t, err)
	require.Equal(t, p1.CurrentKey(), p2.CurrentKey())

	p3, err := NewPassphraseKeyProvider("different passphrase", salt)
	require.NoError(t, err)
	require.NotEqual(t, p1.CurrentKey(), p3.CurrentKey())
}

func TestPassphraseKeyProvider_RejectsBadSaltLength(t *testing.T) {
	_, err := NewPassphraseKeyProvider("pw", []byte("short"))
	require.Error(t, err)
}

func TestHistoricalKeyProvider_OrdersCurrentFirst(t *testing.T) {
	var a, b [32]byte
	a[0] = 1
	b[0] = 2
	p := NewHistoricalKeyProvider(a, b)
	require.Equal(t, a, p.CurrentKey())
	require.Equal(t, [][32]byte{a, b}, p.Keys())
}
