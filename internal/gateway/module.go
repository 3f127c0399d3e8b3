package gateway

import (
	"go.uber.org/fx"

	"github.com/tradsys/core/internal/gateway/stream"
)

// Module provides the API Gateway module for fx: the HTTP server, the
// in-process Execution Gateway orchestrator, its REST handlers and router,
// the report-stream websocket, and the rate-limit/security middleware.
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Provide(NewHandlers),
	fx.Provide(NewRouter),
	fx.Provide(NewMiddleware),
	fx.Provide(stream.New),
)
