// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/solatis/choicetree/internal/core/api"
	"github.com/solatis/choicetree/internal/core/auth"
	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/logging"
)

// shutdownGrace bounds GracefulStop before in-flight calls are cut off.
const shutdownGrace = 30 * time.Second

// RPCObserver records handled requests; satisfied by *metrics.Metrics.
type RPCObserver interface {
	ObserveRPC(method string, code codes.Code, elapsed time.Duration)
}

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.ServiceConfig
	logger   *slog.Logger
}

// Options carries the optional collaborators of the server.
type Options struct {
	// Authenticator enables API key checks; nil serves unauthenticated.
	Authenticator *auth.Authenticator
	Observer      RPCObserver
	Logger        *slog.Logger
}

// NewGRPCServer creates the gRPC server with interceptors, RuleService and
// the standard health service.
func NewGRPCServer(cfg *config.ServiceConfig, service api.RuleServiceServer, opts Options) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Outermost first: every request is timed and logged, including ones the
	// authenticator rejects.
	interceptors := []grpc.UnaryServerInterceptor{
		observeInterceptor(logger, opts.Observer),
		timeoutInterceptor(cfg.RequestTimeout),
	}
	if opts.Authenticator != nil {
		interceptors = append(interceptors, opts.Authenticator.UnaryInterceptor())
	} else {
		logger.Warn("API key authentication disabled")
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterRuleServiceServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	s.logger.Info("gRPC server listening", slog.String("addr", listener.Addr().String()))
	return s.server.Serve(listener)
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, forcing a
// stop when ctx ends or the grace period runs out.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownGrace):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// timeoutInterceptor bounds each request by the configured timeout.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// observeInterceptor attaches a request logger to the context and records
// the outcome of every request.
func observeInterceptor(logger *slog.Logger, observer RPCObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqLogger := logger.With(slog.String("method", info.FullMethod))
		ctx = logging.WithLogger(ctx, reqLogger)

		resp, err := handler(ctx, req)

		elapsed := time.Since(start)
		code := status.Code(err)
		if observer != nil {
			observer.ObserveRPC(info.FullMethod, code, elapsed)
		}

		attrs := []any{slog.String("code", code.String()), slog.Duration("elapsed", elapsed)}
		if err != nil {
			attrs = append(attrs, slog.String("error", status.Convert(err).Message()))
		}
		reqLogger.DebugContext(ctx, "request handled", attrs...)
		return resp, err
	}
}
