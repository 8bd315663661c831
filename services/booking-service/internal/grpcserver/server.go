// Package grpcserver runs the service's gRPC listener. It exposes the standard
// health service, kept in step with the same dependency checks as /readyz.
package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 10 * time.Second

// Health mirrors ready checks into grpc.health.v1 for the overall server ("")
// and for the named service.
type Health struct {
	srv      *health.Server
	service  string
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealth(logger *slog.Logger, service string, interval time.Duration, checks ...runtime.ReadyCheck) *Health {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	h := &Health{
		srv:      health.NewServer(),
		service:  service,
		checks:   checks,
		interval: interval,
		logger:   logger,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Probe runs the checks once and publishes the result.
func (h *Health) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	failures := runtime.RunChecks(ctx, h.checks)

	h.mu.Lock()
	defer h.mu.Unlock()
	status := healthpb.HealthCheckResponse_SERVING
	if len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if h.last != status {
			h.logger.Warn("grpc health degraded", "failures", strings.Join(failures, "; "))
		}
	}
	h.set(status)
	return status
}

// Run probes every interval until ctx is done, then marks everything not serving.
func (h *Health) Run(ctx context.Context) {
	h.Probe(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

// set must be called with mu held, or before the Health is shared.
func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", status)
	if h.service != "" {
		h.srv.SetServingStatus(h.service, status)
	}
	h.last = status
}

// Start listens on addr and serves until ctx is cancelled. It returns the bound
// address so callers may pass ":0".
func Start(ctx context.Context, logger *slog.Logger, addr string, h *Health) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer(grpcx.ServerOptions()...)
	h.Register(srv)
	go h.Run(ctx)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return lis.Addr(), nil
}

// Check asks the health service at addr for the status of service ("" for the
// whole server). The call carries a request id so it can be found in server logs.
func Check(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpcx.NewClient(addr, grpcx.DialOptions{})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()

	if httpx.RequestIDFromContext(ctx) == "" {
		ctx = httpx.ContextWithRequestID(ctx, httpx.NewRequestID())
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
