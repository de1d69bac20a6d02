package wal

import (
	"encoding/json"
	"fmt"
)

// ToJSONLLine serializes a record to its canonical JSONL line,
// including the trailing newline (spec.md §3 invariant iii: records
// are terminated by "\n"). Attachments are sorted and validated before
// any bytes are emitted.
func ToJSONLLine(r Record) ([]byte, error) {
	if r.Version == 0 {
		r.Version = Version
	}
	if err := r.validateAndNormalize(); err != nil {
		return nil, fmt.Errorf("wal: serialize record %d: %w", r.ID, err)
	}
	encoded, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal record %d: %w", r.ID, err)
	}
	encoded = append(encoded, '\n')
	return encoded, nil
}

// ParseLine parses one JSONL line into a Record. Version 1 lines
// (no "version" field) decode with Payload left as the raw JSON value
// and zero-valued Version; callers that need to distinguish v1 from v2
// should check r.Version == 0.
func ParseLine(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, fmt.Errorf("wal: parse line: %w", err)
	}
	return r, nil
}
