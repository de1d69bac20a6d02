package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEnv(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoad_DefaultsWhenEnvironmentEmpty(t *testing.T) {
	cfg, err := load(fakeEnv(nil))
	require.NoError(t, err)
	require.Equal(t, "./data/events.jsonl", cfg.WALPath)
	require.Equal(t, ":7443", cfg.ListenAddr)
	require.Equal(t, RemoteTierNone, cfg.RemoteTier)
	require.Nil(t, cfg.EventSinks)
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	cfg, err := load(fakeEnv(map[string]string{
		"ORCA_WAL_PATH":               "/var/lib/orca/events.jsonl",
		"ORCA_REMOTE_TIER":            "s3",
		"ORCA_EVENT_SINKS":            "kafka, webhook",
		"ORCA_DEFAULT_MAX_TOKENS":     "50000",
		"ORCA_RATE_LIMIT_RPS":         "5.5",
		"ORCA_EXTERNAL_IO_CAPTURE":    "true",
	}))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/orca/events.jsonl", cfg.WALPath)
	require.Equal(t, RemoteTierS3, cfg.RemoteTier)
	require.Equal(t, []EventSinkKind{EventSinkKafka, EventSinkWebhook}, cfg.EventSinks)
	require.Equal(t, int64(50000), cfg.DefaultBudget.MaxTokens)
	require.InDelta(t, 5.5, cfg.RateLimitRPS, 0.0001)
	require.True(t, cfg.ExternalIOCaptureEnabled)
}

func TestLoad_RejectsMalformedIntegers(t *testing.T) {
	_, err := load(fakeEnv(map[string]string{"ORCA_RATE_LIMIT_BURST": "not-a-number"}))
	require.Error(t, err)
}
