package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink POSTs each WAL record line to a fixed URL as the request
// body, with run id carried in a header (X-Orca-Run-Id) so receivers
// can route without parsing the body.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a WebhookSink against url with a bounded
// request timeout; the timeout guards the fan-out goroutine, not the
// orchestrator's own request path.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Publish(ctx context.Context, runID string, line []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(line))
	if err != nil {
		return fmt.Errorf("sink: webhook build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Orca-Run-Id", runID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink: webhook post to %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink: webhook %s returned status %d", s.url, resp.StatusCode)
	}
	return nil
}
