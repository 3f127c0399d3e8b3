package reportbus

import "go.uber.org/fx"

// Module provides the execution-report pub-sub bus for fx.
var Module = fx.Options(
	fx.Provide(New),
)
