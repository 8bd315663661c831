package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func startHealth(t *testing.T, checks ...runtime.ReadyCheck) (*Health, net.Addr) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHealth(slog.New(slog.DiscardHandler), "booking-service", time.Hour, checks...)
	addr, err := Start(ctx, slog.New(slog.DiscardHandler), "127.0.0.1:0", h)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return h, addr
}

func TestHealthTracksReadyChecks(t *testing.T) {
	var failing atomic.Bool
	check := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	}}
	h, addr := startHealth(t, check)

	status := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		got, err := Check(ctx, addr.String(), service)
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		return got
	}

	if got := h.Probe(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
	if got := status("booking-service"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING over grpc, got %v", got)
	}

	failing.Store(true)
	h.Probe(context.Background())
	if got := status(""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
}

func TestCheckFailsWithoutServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := Check(ctx, addr, ""); err == nil {
		t.Fatal("expected an error when nothing listens")
	}
}

func TestRequestIDCrossesTheCall(t *testing.T) {
	_, addr := startHealth(t)

	conn, err := grpcx.NewClient(addr.String(), grpcx.DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = httpx.ContextWithRequestID(ctx, "req-42")

	var header metadata.MD
	if _, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header)); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := header.Get(grpcx.RequestIDMetadataKey); len(got) != 1 || got[0] != "req-42" {
		t.Fatalf("expected the caller's request id echoed back, got %v", got)
	}
}
