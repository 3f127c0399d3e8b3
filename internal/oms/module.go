package oms

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/oms/persistence"
)

// defaultFlushInterval bounds how long a batched write can sit buffered
// before it is forced out even if the batch never fills (spec §4.3: a
// backlogged batch still drains, it never waits forever).
const defaultFlushInterval = 200 * time.Millisecond

// NewDefaultStore provides the in-memory persistence.Store. Deployments
// that need durability across restarts override this binding with
// persistence.NewPostgresStore via fx.Replace at the composition root.
func NewDefaultStore() persistence.Store {
	return persistence.NewMemoryStore()
}

// NewServiceFromConfig wires cfg.Engine.PersistBatchSize into the OMS's
// batching writer (spec §6). A configured size of 1 or less keeps every
// write synchronous, matching NewService's zero-value default; otherwise an
// fx lifecycle hook stops the background flush loop on shutdown.
func NewServiceFromConfig(lc fx.Lifecycle, store persistence.Store, cfg *config.Config, logger *zap.Logger) *Service {
	var svc *Service
	if cfg.Engine.PersistBatchSize > 1 {
		svc = NewService(store, logger, WithBatching(cfg.Engine.PersistBatchSize, defaultFlushInterval))
	} else {
		svc = NewService(store, logger)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.Close()
			return nil
		},
	})
	return svc
}

// Module provides the OMS service and its default persistence store for fx.
var Module = fx.Options(
	fx.Provide(NewDefaultStore),
	fx.Provide(NewServiceFromConfig),
)
