package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ziXnOrg/ORCA/api/orcapb"
	"github.com/ziXnOrg/ORCA/internal/auth"
	"github.com/ziXnOrg/ORCA/internal/blob"
	"github.com/ziXnOrg/ORCA/internal/budget"
	"github.com/ziXnOrg/ORCA/internal/config"
	"github.com/ziXnOrg/ORCA/internal/metrics"
	"github.com/ziXnOrg/ORCA/internal/orchestrator"
	"github.com/ziXnOrg/ORCA/internal/plugin"
	"github.com/ziXnOrg/ORCA/internal/policy"
	"github.com/ziXnOrg/ORCA/internal/server"
	"github.com/ziXnOrg/ORCA/internal/sink"
	"github.com/ziXnOrg/ORCA/internal/wal"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleAfter      = 30 * time.Minute
)

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var metricsAddr, certFile, keyFile, clientCAFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator gRPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runServe(ctx, logger, metricsAddr, certFile, keyFile, clientCAFile)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus /metrics listen address")
	cmd.Flags().StringVar(&certFile, "tls-cert", "", "TLS certificate file (plaintext gRPC if empty)")
	cmd.Flags().StringVar(&keyFile, "tls-key", "", "TLS private key file")
	cmd.Flags().StringVar(&clientCAFile, "tls-client-ca", "", "client CA bundle for mutual TLS")
	return cmd
}

func runServe(ctx context.Context, logger *slog.Logger, metricsAddr, certFile, keyFile, clientCAFile string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("orca: load config: %w", err)
	}

	registry := metrics.NewRegistry()
	policy.RegisterMetrics(registry)
	plugin.RegisterMetrics(registry)
	sink.RegisterMetrics(registry)

	walFile, err := wal.Open(cfg.WALPath, logger)
	if err != nil {
		return fmt.Errorf("orca: open wal: %w", err)
	}

	keys, err := buildBlobKeyProvider(logger, cfg.BlobKeyHex)
	if err != nil {
		return err
	}
	blobStore, err := blob.New(cfg.BlobRoot, keys, logger)
	if err != nil {
		return fmt.Errorf("orca: open blob store: %w", err)
	}
	if cfg.RemoteTier != config.RemoteTierNone {
		blobStore.SetMirror(buildRemoteTier(ctx, logger, cfg))
	}
	_ = blobStore // available to agents out-of-band; no RPC surface owns it directly (see DESIGN.md)

	policyEngine := policy.NewEngine()
	if err := policyEngine.Load(cfg.PolicyPath); err != nil {
		logger.Warn("policy: initial load failed, engine starts fail-closed", "error", err)
	}
	reloader := policy.NewReloader(policyEngine, cfg.PolicyPath, logger)
	if err := reloader.Start(cfg.PolicyReload); err != nil {
		logger.Warn("policy: reloader did not start", "error", err)
	}
	defer func() { _ = reloader.Stop() }()

	budgets := budget.NewManager(cfg.DefaultBudget)
	fanout := sink.NewFanout(logger, buildSinks(ctx, logger, cfg)...)

	orch, err := orchestrator.New(orchestrator.Config{
		WAL:              walFile,
		Policy:           policyEngine,
		Budgets:          budgets,
		Sinks:            fanout,
		Logger:           logger,
		ExternalIOBypass: cfg.ExternalIOBypass,
	})
	if err != nil {
		return fmt.Errorf("orca: start orchestrator: %w", err)
	}

	shared := auth.NewSharedSecretVerifier(cfg.AuthToken)
	var tokens *auth.TokenService
	if cfg.JWTSigningKey != "" {
		tokens = auth.NewTokenService([]byte(cfg.JWTSigningKey), cfg.JWTTokenTTL)
	}
	interceptor := auth.NewInterceptor(shared, tokens)

	rateLimiter := orchestrator.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	rateLimiter.StartCleanup(cleanupCtx, rateLimiterCleanupInterval, rateLimiterStaleAfter)

	orcapb.RegisterCodec()

	tlsCfg, err := tlsConfig(certFile, keyFile, clientCAFile)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Logger:       logger,
		Orchestrator: orch,
		Auth:         interceptor,
		RateLimiter:  rateLimiter,
		Metrics:      registry,
		ListenAddr:   cfg.ListenAddr,
		MetricsAddr:  metricsAddr,
		TLSConfig:    tlsCfg,
	})

	logger.Info("orca serving", "listen_addr", cfg.ListenAddr, "metrics_addr", metricsAddr)
	return srv.Serve(ctx)
}
