package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/internal/config"
	natsconn "github.com/wehubfusion/Stagehand/internal/nats"
	"github.com/wehubfusion/Stagehand/pkg/concurrency"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/storage"
)

// openHost builds the handle given to stage instances. Without a NATS URL the
// control plane is unavailable; the blob store defaults to memory.
func openHost(ctx context.Context, cfg *config.Config, logger *zap.Logger) (host.Handle, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var cp host.ControlPlane
	if cfg.NATS.Connection.URL != "" {
		conn, err := natsconn.Connect(ctx, cfg.NATS.Connection, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect control plane: %w", err)
		}
		closers = append(closers, func() {
			if err := natsconn.Close(conn); err != nil {
				logger.Warn("Failed to drain NATS connection", zap.Error(err))
			}
		})

		plane, err := host.NewNATSControlPlane(conn, cfg.NATS.ControlPlane, logger)
		if err != nil {
			return nil, cleanup, err
		}
		breaker := concurrency.NewCircuitBreaker(cfg.NATS.Breaker)
		breaker.OnStateChange(func(from, to concurrency.CircuitBreakerState) {
			logger.Warn("Control plane circuit changed state",
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		})
		cp = plane.WithBreaker(breaker)
	}

	var blobs host.BlobStore
	switch cfg.Blob.Driver {
	case config.BlobAzure:
		store, err := storage.NewAzureBlobStore(cfg.Blob.Azure, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open blob store: %w", err)
		}
		blobs = store
	default:
		blobs = host.NewMemoryBlobStore()
	}

	return host.NewHandle(cp, blobs), cleanup, nil
}
