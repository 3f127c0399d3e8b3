package router

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/gateway/reportbus"
	"github.com/tradsys/core/internal/metrics"
	"github.com/tradsys/core/internal/router/algo"
	"github.com/tradsys/core/internal/venue"
)

// NewRegistry wires every built-in Algorithm implementation against its
// AlgoType (spec §4.4's six routing strategies).
func NewRegistry() Registry {
	return Registry{
		AlgoSmart:   algo.Smart{},
		AlgoTWAP:    algo.TWAP{},
		AlgoVWAP:    algo.VWAP{},
		AlgoPOV:     algo.POV{},
		AlgoIceberg: algo.Iceberg{},
		AlgoPeg:     algo.Peg{},
	}
}

// NewVenueSet builds the router's venue set from configuration, wrapping
// every named venue in a circuit breaker (spec §4.4: a venue repeatedly
// timing out or erroring must stop receiving new child orders until it
// recovers). Production deployments register real venue adapters in place
// of the simulated one this provider defaults to; this engine ships no
// FIX/REST venue integration of its own (spec Non-goals). A breaker state
// change publishes a degradation report and updates the breaker-open gauge
// (spec §9 supplemented feature: venue degradation alerting).
func NewVenueSet(cfg *config.Config, bus *reportbus.Bus, met *metrics.Registry, logger *zap.Logger) VenueSet {
	set := make(VenueSet, len(cfg.Venue.Names))
	breakerCfg := venue.DefaultBreakerConfig()
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		open := 0.0
		if to == gobreaker.StateOpen {
			open = 1.0
		}
		met.VenueBreakerOpen.WithLabelValues(name).Set(open)
		bus.Publish(reportbus.Report{
			Venue:     name,
			EventKind: reportbus.EventVenueDegraded,
			NewStatus: to.String(),
		})
		logger.Warn("venue circuit breaker state change",
			zap.String("venue", name), zap.String("from", from.String()), zap.String("to", to.String()))
	}
	for _, name := range cfg.Venue.Names {
		sim := venue.NewSimulatedAdapter(name)
		set[name] = venue.NewGuardedAdapter(sim, breakerCfg, logger)
	}
	return set
}

// NewRouterFromConfig constructs the Router and registers an fx lifecycle
// hook that checks every configured venue's protocol version and connects
// it before the gateway starts accepting traffic. cfg.Venue.StalenessWindowMillis governs the
// eligibility filter applied to every tick (spec §4.4 venue selection).
func NewRouterFromConfig(lc fx.Lifecycle, registry Registry, venues VenueSet, cfg *config.Config, logger *zap.Logger) (*Router, error) {
	routerCfg := DefaultConfig()
	if cfg.Venue.StalenessWindowMillis > 0 {
		routerCfg.StalenessWindow = time.Duration(cfg.Venue.StalenessWindowMillis) * time.Millisecond
	}
	r, err := NewRouter(registry, venues, routerCfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for name, adapter := range venues {
				if err := venue.CheckProtocolCompatibility(adapter.Descriptor().ProtocolVersion); err != nil {
					logger.Error("venue protocol incompatible", zap.String("venue", name), zap.Error(err))
					return err
				}
				if err := adapter.Connect(ctx); err != nil {
					logger.Error("venue connect failed", zap.String("venue", name), zap.Error(err))
					return err
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Close()
			return nil
		},
	})
	return r, nil
}

// Module provides the smart order router, its algorithm registry and venue
// set for fx.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(NewVenueSet),
	fx.Provide(NewRouterFromConfig),
)
