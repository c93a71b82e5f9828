// Package worker runs the background sweeper: it advances matches whose
// phase deadlines lapsed without player traffic and prunes expired
// idempotency records. The engine transitions matches inline on every
// mutation, so the sweeper only matters for quiet tables.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/moonfall.town/internal/services/match/runtime"
)

// RuntimeConfig holds the sweeper's runtime settings. The engine settings
// must match the game service's so both compute the same deadlines.
type RuntimeConfig struct {
	HealthAddr   string
	DBPath       string
	PollInterval time.Duration
	Engine       runtime.EngineSettings
}

const defaultPollInterval = 2 * time.Second

// Run sweeps on the poll interval until context cancellation, serving gRPC
// health checks on the side.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	store, err := runtime.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close match store: %v", err)
		}
	}()

	engine, err := runtime.BuildEngine(store, cfg.Engine)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log.Printf("sweeper polling every %v (health at %v)", interval, listener.Addr())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			healthServer.Shutdown()
			grpcServer.GracefulStop()
			err := <-serveErr
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC health: %w", err)
		case err := <-serveErr:
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC health: %w", err)
		case <-ticker.C:
			resp, err := engine.Sweep(ctx)
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if resp.Transitioned > 0 || resp.PrunedRecords > 0 {
				log.Printf("sweep: checked=%d transitioned=%d pruned=%d",
					resp.Checked, resp.Transitioned, resp.PrunedRecords)
			}
		}
	}
}
