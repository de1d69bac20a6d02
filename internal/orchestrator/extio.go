package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"github.com/ziXnOrg/ORCA/internal/wal"
)

// sensitiveHeaders are dropped entirely (rather than merely masked) from
// external_io_started records, matching the PII-safety bar spec.md
// applies to policy_audit.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"x-api-key":     true,
}

// RedactHeaders returns a copy of headers with every sensitive key
// removed, for external_io_started's "redacted headers" field.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[lowerASCII(k)] {
			continue
		}
		out[k] = v
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ExternalIORequestID derives spec.md §4.3's "deterministic request_id"
// for an outbound call from the run, envelope, and target URL, so
// retried calls within the same envelope produce the same id.
func ExternalIORequestID(runID, envelopeID, rawURL string) string {
	h := sha256.Sum256([]byte(runID + "|" + envelopeID + "|" + rawURL))
	return hex.EncodeToString(h[:16])
}

// BeginExternalIO appends external_io_started for an outbound call a
// plugin or agent is about to make (spec.md §4.3 "External I/O
// capture"). If the append fails, it fails closed (returns the error,
// blocking the call) unless Config.ExternalIOBypass was set at
// construction, matching the bypass flag spec.md names explicitly.
func (s *Service) BeginExternalIO(ctx context.Context, runID, traceID, system, direction string, target *url.URL, method string, headers map[string]string, bodyDigest string) (requestID string, err error) {
	requestID = ExternalIORequestID(runID, traceID, target.String())
	port := target.Port()
	portNum := 0
	if port != "" {
		portNum, _ = strconv.Atoi(port)
	}
	payload := marshal(externalIOStartedPayload{
		System: system, Direction: direction, Scheme: target.Scheme,
		Host: target.Hostname(), Port: portNum, Method: method,
		RequestID: requestID, RedactedHeaders: RedactHeaders(headers), BodyDigest: bodyDigest,
	})
	_, err = s.append(wal.Record{
		TSMillis: s.clock.NowMS(), EventType: wal.EventExternalIOStarted, RunID: runID, TraceID: traceID, Payload: payload,
	})
	if err != nil && s.bypass {
		s.logger.Warn("external io start append failed, bypassing", "run_id", runID, "request_id", requestID, "error", err)
		return requestID, nil
	}
	return requestID, err
}

// EndExternalIO appends external_io_finished for a call previously
// opened with BeginExternalIO.
func (s *Service) EndExternalIO(ctx context.Context, runID, traceID, requestID string, status int, duration time.Duration) error {
	payload := marshal(externalIOFinishedPayload{RequestID: requestID, Status: status, DurationMS: duration.Milliseconds()})
	_, err := s.append(wal.Record{
		TSMillis: s.clock.NowMS(), EventType: wal.EventExternalIOFinished, RunID: runID, TraceID: traceID, Payload: payload,
	})
	if err != nil && s.bypass {
		s.logger.Warn("external io finish append failed, bypassing", "run_id", runID, "request_id", requestID, "error", err)
		return nil
	}
	return err
}
