// Package healthserver exposes the engine's admission state through the
// standard gRPC health service.
package healthserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"intradayBot/internal/ports"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name clients query for engine admission.
const ServiceName = "intradayBot.Engine"

// StateSource reports whether the engine is accepting new entries.
type StateSource interface {
	Admitting() bool
}

// Config holds the health server settings.
type Config struct {
	Addr         string // e.g. ":8081"
	PollInterval time.Duration
	Logger       ports.Logger
}

// Server reports SERVING while the source admits entries and NOT_SERVING while
// a kill switch or emergency stop is latched. The overall ("") status stays
// SERVING so liveness probes pass while the process is up.
type Server struct {
	addr     string
	interval time.Duration
	source   StateSource
	logger   ports.Logger

	grpcServer *grpc.Server
	health     *health.Server
	last       healthpb.HealthCheckResponse_ServingStatus
}

// New creates a health server polling source.
func New(source StateSource, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for health server")
	}
	if source == nil {
		return nil, fmt.Errorf("%w: health state source is required", ports.ErrConfigurationError)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		addr:       cfg.Addr,
		interval:   cfg.PollInterval,
		source:     source,
		logger:     cfg.Logger,
		grpcServer: gs,
		health:     hs,
		last:       healthpb.HealthCheckResponse_UNKNOWN,
	}
	s.Refresh(context.Background())
	return s, nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("health server listen on %s failed: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, refreshing the status every poll interval.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpcServer.Serve(lis) }()
	s.logger.Info(ctx, "Health server started", map[string]interface{}{"addr": lis.Addr().String()})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			s.logger.Info(ctx, "Health server stopped")
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("health server failed: %w", err)
			}
			return nil
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh reads the source and publishes the engine status.
func (s *Server) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.source.Admitting() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	if status == s.last {
		return
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, status)
	if s.last != healthpb.HealthCheckResponse_UNKNOWN {
		s.logger.Warn(ctx, "Engine health status changed", map[string]interface{}{
			"from": s.last.String(),
			"to":   status.String(),
		})
	}
	s.last = status
}

// Check answers a health query in-process.
func (s *Server) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
