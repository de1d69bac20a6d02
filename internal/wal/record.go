// Package wal implements ORCA's append-only, versioned event log: the
// system of record every other component (orchestrator, policy audit,
// budget) writes through.
//
// The file format is UTF-8 JSONL, one record per line (spec.md §3, §6).
// Field order within a line is fixed by struct declaration order, which
// encoding/json preserves for struct marshaling; map keys (Metadata)
// are sorted by encoding/json itself. Golden tests in serialize_test.go
// pin this byte-for-byte.
package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Version is the current event record schema version.
const Version = 2

// EventType enumerates the record kinds spec.md §3 defines.
type EventType string

const (
	EventStartRun           EventType = "start_run"
	EventTaskEnqueued       EventType = "task_enqueued"
	EventUsageUpdate        EventType = "usage_update"
	EventExternalIOStarted  EventType = "external_io_started"
	EventExternalIOFinished EventType = "external_io_finished"
	EventBudgetWarning      EventType = "budget_warning"
	EventBudgetExceeded     EventType = "budget_exceeded"
	EventRunSummary         EventType = "run_summary"
	EventPolicyAudit        EventType = "policy_audit"
)

// Compression names allowed on an Attachment.
const (
	CompressionZstd = "zstd"
	CompressionNone = "none"
)

const (
	// MaxAttachments is the maximum number of attachments on one record.
	MaxAttachments = 8
	// MaxAttachmentsBytes is the maximum serialized size of the
	// attachments array.
	MaxAttachmentsBytes = 8 << 10
	// MaxMimeBytes is the maximum length of an Attachment's Mime field.
	MaxMimeBytes = 128
	// DigestHexLen is the exact length of a lowercase hex SHA-256 digest.
	DigestHexLen = 64
)

var (
	ErrTooManyAttachments  = errors.New("wal: record has more than 8 attachments")
	ErrAttachmentsTooLarge = errors.New("wal: serialized attachments exceed 8 KiB")
	ErrBadDigest           = errors.New("wal: attachment digest is not 64 lowercase hex characters")
	ErrMimeTooLarge        = errors.New("wal: attachment mime exceeds 128 bytes")
	ErrBadCompression      = errors.New("wal: attachment compression must be \"zstd\" or \"none\"")
	ErrEmptyRunID          = errors.New("wal: record run_id is empty")
	ErrEmptyEventType      = errors.New("wal: record event_type is empty")
)

// Attachment is large-payload metadata carried inline in a Record
// (spec.md §3). The blob bytes themselves live in the blob store.
type Attachment struct {
	DigestSHA256 string `json:"digest_sha256"`
	SizeBytes    int64  `json:"size_bytes"`
	Mime         string `json:"mime"`
	Encoding     string `json:"encoding,omitempty"`
	Compression  string `json:"compression"`
}

func (a Attachment) validate() error {
	if len(a.DigestSHA256) != DigestHexLen || !isLowerHex(a.DigestSHA256) {
		return ErrBadDigest
	}
	if len(a.Mime) > MaxMimeBytes {
		return ErrMimeTooLarge
	}
	if a.Compression != CompressionZstd && a.Compression != CompressionNone {
		return ErrBadCompression
	}
	return nil
}

func isLowerHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// Record is one line of the write-ahead log (spec.md §3 Event record).
// Field order here is the wire order: id, ts_ms, version, event_type,
// run_id, trace_id, payload, attachments, metadata.
type Record struct {
	ID          uint64            `json:"id"`
	TSMillis    int64             `json:"ts_ms"`
	Version     uint8             `json:"version"`
	EventType   EventType         `json:"event_type"`
	RunID       string            `json:"run_id"`
	TraceID     string            `json:"trace_id"`
	Payload     json.RawMessage   `json:"payload"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// validateAndNormalize sorts attachments ascending by digest, validates
// every invariant spec.md §3 places on a record, and returns an error
// before a single byte is written if any are violated (spec.md §4.2
// "attachment violations fail the serialize call before any bytes are
// written").
func (r *Record) validateAndNormalize() error {
	if r.RunID == "" {
		return ErrEmptyRunID
	}
	if r.EventType == "" {
		return ErrEmptyEventType
	}
	if len(r.Attachments) > MaxAttachments {
		return ErrTooManyAttachments
	}
	sort.Slice(r.Attachments, func(i, j int) bool {
		return r.Attachments[i].DigestSHA256 < r.Attachments[j].DigestSHA256
	})
	for _, a := range r.Attachments {
		if err := a.validate(); err != nil {
			return err
		}
	}
	if len(r.Attachments) > 0 {
		encoded, err := json.Marshal(r.Attachments)
		if err != nil {
			return fmt.Errorf("wal: encode attachments: %w", err)
		}
		if len(encoded) > MaxAttachmentsBytes {
			return ErrAttachmentsTooLarge
		}
	}
	return nil
}
