package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReadRange_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	f, err := Open(path, nil)
	require.NoError(t, err)

	for i := uint64(0); i < 5; i++ {
		_, err := f.Append(Record{
			ID: i, TSMillis: int64(i), EventType: EventUsageUpdate, RunID: "r1", TraceID: "t1", Payload: []byte("{}"),
		})
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	recs, err := ReadRange(path, 0, 1000)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, r := range recs {
		require.Equal(t, uint64(i), r.ID)
	}
}

func TestReadRange_Filters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	f, err := Open(path, nil)
	require.NoError(t, err)
	for i := uint64(0); i < 10; i++ {
		_, err := f.Append(Record{ID: i, EventType: EventUsageUpdate, RunID: "r1"})
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	recs, err := ReadRange(path, 3, 6)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, uint64(3), recs[0].ID)
	require.Equal(t, uint64(5), recs[2].ID)
}

func TestOpen_NeverTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	f, err := Open(path, nil)
	require.NoError(t, err)
	_, err = f.Append(Record{ID: 0, EventType: EventStartRun, RunID: "r1"})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	recs, err := ReadRange(path, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestForEach_MalformedLineFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	f, err := Open(path, nil)
	require.NoError(t, err)
	_, err = f.Append(Record{ID: 0, EventType: EventStartRun, RunID: "r1"})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = raw.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = ReadRange(path, 0, 10)
	require.Error(t, err)
}
