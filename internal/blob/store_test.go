package blob

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) [32]byte {
	t.Helper()
	var k [32]byte
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func TestPutGet_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := testKey(t)
	store, err := New(dir, NewStaticKeyProvider(key), nil)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("hello orca "), 10000)
	digest, err := store.Put(data)
	require.NoError(t, err)
	require.Equal(t, DigestOf(data), digest)

	got, err := store.Get(digest)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestPut_IdempotentOnDisk(t *testing.T) {
	dir := t.TempDir()
	key := testKey(t)
	store, err := New(dir, NewStaticKeyProvider(key), nil)
	require.NoError(t, err)

	data := []byte("repeatable bytes")
	d1, err := store.Put(data)
	require.NoError(t, err)
	path := store.PathFor(d1.Hex())
	b1, err := os.ReadFile(path)
	require.NoError(t, err)

	d2, err := store.Put(data)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	b2, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestPut_SameKeyBytesAcrossStores_ByteIdentical(t *testing.T) {
	key := testKey(t)
	data := []byte("deterministic encryption")

	dir1 := t.TempDir()
	s1, err := New(dir1, NewStaticKeyProvider(key), nil)
	require.NoError(t, err)
	d1, err := s1.Put(data)
	require.NoError(t, err)

	dir2 := t.TempDir()
	s2, err := New(dir2, NewStaticKeyProvider(key), nil)
	require.NoError(t, err)
	d2, err := s2.Put(data)
	require.NoError(t, err)

	require.Equal(t, d1, d2)
	b1, err := os.ReadFile(s1.PathFor(d1.Hex()))
	require.NoError(t, err)
	b2, err := os.ReadFile(s2.PathFor(d2.Hex()))
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestPutReader_MatchesPutDigest(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("stream me"), 5000)
	d1, err := store.Put(data)
	require.NoError(t, err)

	d2, err := store.PutReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestEmptyBlob_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)

	digest, err := store.Put(nil)
	require.NoError(t, err)
	got, err := store.Get(digest)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGet_TamperedMidpoint_Integrity(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("tamper test payload "), 2000)
	digest, err := store.Put(data)
	require.NoError(t, err)

	path := store.PathFor(digest.Hex())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	mid := len(raw) / 2
	raw[mid] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = store.Get(digest)
	require.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)
	_, err = store.Get(DigestOf([]byte("never written")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_WrongKey(t *testing.T) {
	dir := t.TempDir()
	writer, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)
	digest, err := writer.Put([]byte("secret"))
	require.NoError(t, err)

	reader, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)
	_, err = reader.Get(digest)
	require.ErrorIs(t, err, ErrWrongKey)
}

func TestHistoricalKeyProvider_ReadsOldKey(t *testing.T) {
	dir := t.TempDir()
	oldKey := testKey(t)
	writer, err := New(dir, NewStaticKeyProvider(oldKey), nil)
	require.NoError(t, err)
	digest, err := writer.Put([]byte("rotated"))
	require.NoError(t, err)

	newKey := testKey(t)
	reader, err := New(dir, NewHistoricalKeyProvider(newKey, oldKey), nil)
	require.NoError(t, err)
	got, err := reader.Get(digest)
	require.NoError(t, err)
	require.Equal(t, []byte("rotated"), got)
}

func TestCleanupIncomplete_RemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)

	orphanDir := filepath.Join(dir, "sha256", "ab", "cd")
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))
	orphan := filepath.Join(orphanDir, "abcd0000.incomplete")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o644))

	n, err := store.CleanupIncomplete()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, statErr := os.Stat(orphan)
	require.True(t, os.IsNotExist(statErr))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, NewStaticKeyProvider(testKey(t)), nil)
	require.NoError(t, err)

	digest := DigestOf([]byte("x"))
	require.False(t, store.Exists(digest))
	d, err := store.Put([]byte("x"))
	require.NoError(t, err)
	require.True(t, store.Exists(d))
}
