package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	azblobsdk "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ziXnOrg/ORCA/internal/blob"
	"github.com/ziXnOrg/ORCA/internal/blob/remotetier"
	"github.com/ziXnOrg/ORCA/internal/config"
	"github.com/ziXnOrg/ORCA/internal/sink"
)

// buildBlobKeyProvider resolves the CAS encryption key. An empty
// ORCA_BLOB_KEY_HEX generates an ephemeral key and logs a warning: fine
// for local development, never for a real deployment, since blobs
// written under it become unreadable on the next restart.
func buildBlobKeyProvider(logger *slog.Logger, hexKey string) (blob.StaticKeyProvider, error) {
	if hexKey == "" {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			return blob.StaticKeyProvider{}, fmt.Errorf("orca: generate ephemeral blob key: %w", err)
		}
		logger.Warn("no ORCA_BLOB_KEY_HEX set, generated an ephemeral blob key; blobs will not survive a restart")
		return blob.NewStaticKeyProvider(key), nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return blob.StaticKeyProvider{}, fmt.Errorf("orca: ORCA_BLOB_KEY_HEX must be 32 hex-encoded bytes")
	}
	var key [32]byte
	copy(key[:], raw)
	return blob.NewStaticKeyProvider(key), nil
}

// buildRemoteTier constructs the optional best-effort mirror tier
// (SPEC_FULL.md §4.1). A construction failure here degrades to NopTier
// rather than blocking startup: the remote tier is explicitly outside
// the blob store's consistency invariants.
func buildRemoteTier(ctx context.Context, logger *slog.Logger, cfg config.Config) remotetier.Tier {
	switch cfg.RemoteTier {
	case config.RemoteTierS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("remote tier: load aws config, falling back to none", "error", err)
			return remotetier.NopTier{}
		}
		return remotetier.NewS3Tier(s3.NewFromConfig(awsCfg), cfg.RemoteTierBucket, "orca/")
	case config.RemoteTierAzblob:
		if cfg.AzureConnectionString == "" {
			logger.Error("remote tier: azblob configured without ORCA_AZURE_CONNECTION_STRING, falling back to none")
			return remotetier.NopTier{}
		}
		client, err := azblobsdk.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
		if err != nil {
			logger.Error("remote tier: azblob client, falling back to none", "error", err)
			return remotetier.NopTier{}
		}
		return remotetier.NewAzureTier(client, cfg.RemoteTierBucket, "orca")
	case config.RemoteTierGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("remote tier: gcs client, falling back to none", "error", err)
			return remotetier.NopTier{}
		}
		return remotetier.NewGCSTier(client, cfg.RemoteTierBucket, "orca")
	default:
		return remotetier.NopTier{}
	}
}

// buildSinks constructs the optional WAL fan-out sinks named in
// cfg.EventSinks. A sink that fails to construct (e.g. unreachable
// broker) is skipped with a logged error rather than failing startup;
// spec.md §4.2 already treats every sink as best-effort.
func buildSinks(ctx context.Context, logger *slog.Logger, cfg config.Config) []sink.EventSink {
	var sinks []sink.EventSink
	for _, kind := range cfg.EventSinks {
		switch kind {
		case config.EventSinkKafka:
			s, err := buildKafkaSink(cfg)
			if err != nil {
				logger.Error("event sink: kafka", "error", err)
				continue
			}
			sinks = append(sinks, s)
		case config.EventSinkMQTT:
			s, err := buildMQTTSink(ctx, cfg)
			if err != nil {
				logger.Error("event sink: mqtt", "error", err)
				continue
			}
			sinks = append(sinks, s)
		case config.EventSinkWebhook:
			if cfg.WebhookURL == "" {
				logger.Error("event sink: webhook configured without ORCA_WEBHOOK_URL")
				continue
			}
			sinks = append(sinks, sink.NewWebhookSink(cfg.WebhookURL, 5*time.Second))
		default:
			logger.Error("event sink: unknown kind", "kind", kind)
		}
	}
	return sinks
}

func buildKafkaSink(cfg config.Config) (*sink.KafkaSink, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("kafka sink configured without ORCA_KAFKA_BROKERS")
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.KafkaBrokers...))
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}
	return sink.NewKafkaSink(client, cfg.KafkaTopic), nil
}
