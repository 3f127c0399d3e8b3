package auth

import "go.uber.org/fx"

// Module provides the authentication service and gateway middleware for fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(NewMiddleware),
)
