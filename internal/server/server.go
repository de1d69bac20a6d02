package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/ziXnOrg/ORCA/api/orcapb"
	"github.com/ziXnOrg/ORCA/internal/auth"
	"github.com/ziXnOrg/ORCA/internal/logging"
	"github.com/ziXnOrg/ORCA/internal/metrics"
	"github.com/ziXnOrg/ORCA/internal/orchestrator"
)

// Config describes one Server's dependencies and listen settings.
// Grounded on the teacher's server.Config shape (logger, auth, TLS),
// trimmed of the cert-manager/raft/home-dir fields ORCA has no
// analogue for.
type Config struct {
	Logger *slog.Logger

	Orchestrator *orchestrator.Service
	Auth         *auth.Interceptor
	RateLimiter  *orchestrator.RateLimiter
	Metrics      *metrics.Registry

	// ListenAddr serves the gRPC orchestrator surface.
	ListenAddr string
	// MetricsAddr serves /metrics and /healthz in plaintext HTTP. Empty
	// disables the metrics listener.
	MetricsAddr string
	TLSConfig   *tls.Config // nil serves the gRPC port in plaintext
}

// Server hosts the gRPC orchestrator surface on one listener and the
// HTTP /metrics endpoint on another. Graceful shutdown mirrors the
// teacher's server.Server: stop accepting new work, then let in-flight
// calls drain before returning.
type Server struct {
	logger *slog.Logger

	grpcServer  *grpc.Server
	metricsHTTP *http.Server

	listenAddr  string
	metricsAddr string
	tlsConfig   *tls.Config

	startTime time.Time
}

// New builds a Server. It does not start listening; call Serve.
func New(cfg Config) *Server {
	logger := logging.Default(cfg.Logger).With("component", "server")

	unary := []grpc.UnaryServerInterceptor{rateLimitUnary(cfg.RateLimiter)}
	stream := []grpc.StreamServerInterceptor{rateLimitStream(cfg.RateLimiter)}
	if cfg.Auth != nil {
		unary = append(unary, cfg.Auth.Unary())
		stream = append(stream, cfg.Auth.Stream())
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(cfg.TLSConfig)))
	}

	grpcServer := grpc.NewServer(opts...)
	orcapb.RegisterOrchestratorServer(grpcServer, newOrchestratorAdapter(cfg.Orchestrator))

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if cfg.Metrics != nil {
			cfg.Metrics.WriteText(w)
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		logger:      logger,
		grpcServer:  grpcServer,
		metricsHTTP: &http.Server{Addr: cfg.MetricsAddr, Handler: mux},
		listenAddr:  cfg.ListenAddr,
		metricsAddr: cfg.MetricsAddr,
		tlsConfig:   cfg.TLSConfig,
		startTime:   time.Now(),
	}
}

// Serve binds both listeners and blocks until ctx is cancelled or
// either listener fails unrecoverably.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.listenAddr, err)
	}
	if s.tlsConfig != nil {
		lis = tls.NewListener(lis, s.tlsConfig)
	}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("serving grpc", "addr", lis.Addr().String(), "tls", s.tlsConfig != nil)
		errCh <- s.grpcServer.Serve(lis)
	}()

	if s.metricsAddr != "" {
		mlis, err := net.Listen("tcp", s.metricsAddr)
		if err != nil {
			return fmt.Errorf("server: listen metrics %s: %w", s.metricsAddr, err)
		}
		go func() {
			s.logger.Info("serving metrics", "addr", mlis.Addr().String())
			if err := s.metricsHTTP.Serve(mlis); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if err != nil && err != grpc.ErrServerStopped {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	}
}

// Stop drains in-flight gRPC calls with GracefulStop, then shuts down
// the metrics listener, bounded by ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}

	if s.metricsAddr == "" {
		return nil
	}
	return s.metricsHTTP.Shutdown(ctx)
}

// rateLimitUnary enforces SPEC_FULL.md §4.3's per-client rate limit on
// SubmitTask and StartRun, keyed by the peer's IP — adapted from the
// teacher's per-IP auth-endpoint limiter via
// internal/orchestrator.RateLimiter. A nil limiter disables the check.
func rateLimitUnary(rl *orchestrator.RateLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if rl == nil || !rateLimited(info.FullMethod) {
			return handler(ctx, req)
		}
		if !rl.Allow(peerKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "server: rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func rateLimitStream(rl *orchestrator.RateLimiter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if rl == nil || !rateLimited(info.FullMethod) {
			return handler(srv, ss)
		}
		if !rl.Allow(peerKey(ss.Context())) {
			return status.Error(codes.ResourceExhausted, "server: rate limit exceeded")
		}
		return handler(srv, ss)
	}
}

// rateLimited restricts the limiter to the two mutating RPCs
// (SPEC_FULL.md §4.3 "rate limiting applies to SubmitTask/StartRun
// only"); StreamEvents and FetchResult are read paths.
func rateLimited(fullMethod string) bool {
	return fullMethod == orcapb.ServiceName+"/SubmitTask" || fullMethod == orcapb.ServiceName+"/StartRun"
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
