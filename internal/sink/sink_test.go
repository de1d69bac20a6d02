package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWebhookSink_PublishSuccess(t *testing.T) {
	var gotRunID string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRunID = r.Header.Get("X-Orca-Run-Id")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, time.Second)
	err := s.Publish(context.Background(), "run-1", []byte(`{"id":1}`))
	require.NoError(t, err)
	require.Equal(t, "run-1", gotRunID)
	require.Equal(t, `{"id":1}`, string(gotBody))
}

func TestWebhookSink_PublishNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, time.Second)
	err := s.Publish(context.Background(), "run-1", []byte(`{}`))
	require.Error(t, err)
}

type fakeSink struct {
	name string
	err  error
	got  chan []byte
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Publish(_ context.Context, _ string, line []byte) error {
	if f.got != nil {
		f.got <- line
	}
	return f.err
}

func TestFanout_PublishesToAllSinksConcurrently(t *testing.T) {
	a := &fakeSink{name: "a", got: make(chan []byte, 1)}
	b := &fakeSink{name: "b", got: make(chan []byte, 1)}
	f := NewFanout(nil, a, b)

	f.Publish(context.Background(), "run-1", []byte("line"))

	require.Equal(t, []byte("line"), <-a.got)
	require.Equal(t, []byte("line"), <-b.got)
}

func TestFanout_SwallowsSinkFailures(t *testing.T) {
	failing := &fakeSink{name: "failing", err: errors.New("boom")}
	f := NewFanout(nil, failing)

	require.NotPanics(t, func() {
		f.Publish(context.Background(), "run-1", []byte("line"))
	})
}
