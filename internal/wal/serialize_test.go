package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToJSONLLine_GoldenOrder(t *testing.T) {
	r := Record{
		ID:        7,
		TSMillis:  1700000000000,
		Version:   2,
		EventType: EventTaskEnqueued,
		RunID:     "run-1",
		TraceID:   "trace-1",
		Payload:   []byte(`{"a":1}`),
		Attachments: []Attachment{
			{DigestSHA256: zeros("b"), SizeBytes: 10, Mime: "text/plain", Compression: CompressionNone},
			{DigestSHA256: zeros("a"), SizeBytes: 5, Mime: "text/plain", Compression: CompressionZstd},
		},
		Metadata: map[string]string{"z": "1", "a": "2"},
	}

	line, err := ToJSONLLine(r)
	require.NoError(t, err)

	const want = `{"id":7,"ts_ms":1700000000000,"version":2,"event_type":"task_enqueued",` +
		`"run_id":"run-1","trace_id":"trace-1","payload":{"a":1},` +
		`"attachments":[{"digest_sha256":"` + zeros("a") + `","size_bytes":5,"mime":"text/plain","compression":"zstd"},` +
		`{"digest_sha256":"` + zeros("b") + `","size_bytes":10,"mime":"text/plain","compression":"none"}],` +
		`"metadata":{"a":"2","z":"1"}}` + "\n"

	require.Equal(t, want, string(line))
}

func TestToJSONLLine_RoundTrip(t *testing.T) {
	r := Record{ID: 1, TSMillis: 5, EventType: EventStartRun, RunID: "r", TraceID: "t", Payload: []byte(`{}`)}
	line, err := ToJSONLLine(r)
	require.NoError(t, err)

	parsed, err := ParseLine(line[:len(line)-1])
	require.NoError(t, err)
	require.Equal(t, r.ID, parsed.ID)
	require.Equal(t, uint8(Version), parsed.Version)
	require.Equal(t, r.RunID, parsed.RunID)
}

func TestToJSONLLine_TooManyAttachments(t *testing.T) {
	r := Record{ID: 1, EventType: EventStartRun, RunID: "r"}
	for i := 0; i < MaxAttachments+1; i++ {
		r.Attachments = append(r.Attachments, Attachment{
			DigestSHA256: zeros("a"), Mime: "text/plain", Compression: CompressionNone,
		})
	}
	_, err := ToJSONLLine(r)
	require.ErrorIs(t, err, ErrTooManyAttachments)
}

func TestToJSONLLine_BadDigest(t *testing.T) {
	r := Record{ID: 1, EventType: EventStartRun, RunID: "r", Attachments: []Attachment{
		{DigestSHA256: "too-short", Mime: "text/plain", Compression: CompressionNone},
	}}
	_, err := ToJSONLLine(r)
	require.ErrorIs(t, err, ErrBadDigest)
}

func TestToJSONLLine_EmptyRunID(t *testing.T) {
	_, err := ToJSONLLine(Record{ID: 1, EventType: EventStartRun})
	require.ErrorIs(t, err, ErrEmptyRunID)
}

func zeros(prefix string) string {
	out := []byte(prefix)
	for len(out) < DigestHexLen {
		out = append(out, '0')
	}
	return string(out)
}
