package metrics

import "go.uber.org/fx"

// Module provides the process-wide Prometheus Registry for fx.
var Module = fx.Options(
	fx.Provide(NewRegistry),
)
