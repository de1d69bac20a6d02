// Package config loads ORCA's declarative process configuration from
// environment variables (spec.md §6 "External interfaces"). Config
// describes the desired shape of one orchestrator process: where its
// WAL and blob store live, which policy file governs it, its default
// budgets, and which optional sinks/tiers/auth modes are enabled.
//
// Unlike the teacher's config.Store, this is load-on-start only and not
// persisted anywhere the process itself manages — the environment is
// the source of truth, matching a process-per-deployment model. TLS
// material resolution lives in cmd/orca, not here: terminating and
// rotating certificates is an external-collaborator's responsibility
// (spec.md §1 Non-goals), and internal/config has no business reading
// files off disk on the server's behalf.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ziXnOrg/ORCA/internal/budget"
)

// RemoteTierKind selects which remote blob mirror, if any, is active
// (SPEC_FULL.md §4.1).
type RemoteTierKind string

const (
	RemoteTierNone   RemoteTierKind = "none"
	RemoteTierS3     RemoteTierKind = "s3"
	RemoteTierAzblob RemoteTierKind = "azblob"
	RemoteTierGCS    RemoteTierKind = "gcs"
)

// EventSinkKind names one of the optional WAL fan-out sinks
// (SPEC_FULL.md §4.2).
type EventSinkKind string

const (
	EventSinkKafka   EventSinkKind = "kafka"
	EventSinkMQTT    EventSinkKind = "mqtt"
	EventSinkWebhook EventSinkKind = "webhook"
)

// Config is ORCA's full process configuration.
type Config struct {
	// Storage.
	WALPath      string
	BlobRoot     string
	BlobKeyHex   string // 32-byte key, hex-encoded; empty generates an ephemeral key (dev only)
	PolicyPath   string
	PolicyReload time.Duration

	// RPC surface.
	ListenAddr     string
	RateLimitRPS   float64
	RateLimitBurst int

	// AuthN (SPEC_FULL.md §4.3).
	AuthToken     string
	JWTSigningKey string
	JWTTokenTTL   time.Duration

	// Default per-run budget, used when StartRun doesn't supply its own
	// (spec.md §4.5).
	DefaultBudget budget.Limits

	// Remote blob tier (SPEC_FULL.md §4.1).
	RemoteTier            RemoteTierKind
	RemoteTierBucket      string
	AzureConnectionString string

	// Event sinks (SPEC_FULL.md §4.2).
	EventSinks    []EventSinkKind
	KafkaBrokers  []string
	KafkaTopic    string
	MQTTBrokerURL string
	MQTTTopic     string
	WebhookURL    string

	// External I/O capture (spec.md §4.3).
	ExternalIOCaptureEnabled bool
	ExternalIOBypass         bool
}

// envLookup abstracts os.LookupEnv so tests can supply a fake
// environment without mutating process-global state.
type envLookup func(key string) (string, bool)

// Load reads Config from the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup envLookup) (Config, error) {
	cfg := Config{
		WALPath:               getString(lookup, "ORCA_WAL_PATH", "./data/events.jsonl"),
		BlobRoot:              getString(lookup, "ORCA_BLOB_ROOT", "./data/blobs"),
		BlobKeyHex:            getString(lookup, "ORCA_BLOB_KEY_HEX", ""),
		PolicyPath:            getString(lookup, "ORCA_POLICY_PATH", "./policy.yaml"),
		ListenAddr:            getString(lookup, "ORCA_LISTEN_ADDR", ":7443"),
		AuthToken:             getString(lookup, "AGENT_AUTH_TOKEN", ""),
		JWTSigningKey:         getString(lookup, "ORCA_JWT_SIGNING_KEY", ""),
		RemoteTier:            RemoteTierKind(getString(lookup, "ORCA_REMOTE_TIER", string(RemoteTierNone))),
		RemoteTierBucket:      getString(lookup, "ORCA_REMOTE_TIER_BUCKET", ""),
		AzureConnectionString: getString(lookup, "ORCA_AZURE_CONNECTION_STRING", ""),
		KafkaTopic:            getString(lookup, "ORCA_KAFKA_TOPIC", "orca.events"),
		MQTTBrokerURL:         getString(lookup, "ORCA_MQTT_BROKER_URL", ""),
		MQTTTopic:             getString(lookup, "ORCA_MQTT_TOPIC", "orca/events"),
		WebhookURL:            getString(lookup, "ORCA_WEBHOOK_URL", ""),
	}

	var err error
	if cfg.PolicyReload, err = getDuration(lookup, "ORCA_POLICY_RELOAD_MS", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.JWTTokenTTL, err = getDuration(lookup, "ORCA_JWT_TOKEN_TTL_MS", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitRPS, err = getFloat(lookup, "ORCA_RATE_LIMIT_RPS", 10); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = getInt(lookup, "ORCA_RATE_LIMIT_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.DefaultBudget.MaxTokens, err = getInt64(lookup, "ORCA_DEFAULT_MAX_TOKENS", 0); err != nil {
		return Config{}, err
	}
	if cfg.DefaultBudget.MaxCostMicros, err = getInt64(lookup, "ORCA_DEFAULT_MAX_COST_MICROS", 0); err != nil {
		return Config{}, err
	}
	if cfg.ExternalIOCaptureEnabled, err = getBool(lookup, "ORCA_EXTERNAL_IO_CAPTURE", false); err != nil {
		return Config{}, err
	}
	if cfg.ExternalIOBypass, err = getBool(lookup, "ORCA_EXTERNAL_IO_BYPASS", false); err != nil {
		return Config{}, err
	}

	for _, raw := range splitCSV(getString(lookup, "ORCA_EVENT_SINKS", "")) {
		cfg.EventSinks = append(cfg.EventSinks, EventSinkKind(raw))
	}
	cfg.KafkaBrokers = splitCSV(getString(lookup, "ORCA_KAFKA_BROKERS", ""))

	return cfg, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) (bool, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getInt(lookup envLookup, key string, def int) (int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getInt64(lookup envLookup, key string, def int64) (int64, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(lookup envLookup, key string, def float64) (float64, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(lookup envLookup, key string, def time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
