package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/auth"
)

// RouterParams contains the parameters for creating a new router.
type RouterParams struct {
	fx.In

	Logger         *zap.Logger
	Server         *Server
	AuthMiddleware *auth.Middleware
	Handlers       *Handlers
}

// Router registers the gateway's REST routes onto the gin engine.
type Router struct {
	logger   *zap.Logger
	engine   *gin.Engine
	handlers *Handlers
}

// NewRouter creates a new router with fx dependency injection.
func NewRouter(p RouterParams) *Router {
	router := &Router{
		logger:   p.Logger,
		engine:   p.Server.Router(),
		handlers: p.Handlers,
	}

	router.registerHealthRoutes()
	router.registerAuthRoutes(p.AuthMiddleware)
	router.registerOrderRoutes(p.AuthMiddleware)

	return router
}

// registerHealthRoutes registers health check routes.
func (r *Router) registerHealthRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// registerAuthRoutes registers authentication routes.
func (r *Router) registerAuthRoutes(authMiddleware *auth.Middleware) {
	group := r.engine.Group("/auth")
	group.POST("/login", authMiddleware.LoginHandler())
	group.POST("/refresh", authMiddleware.RefreshHandler())
}

// registerOrderRoutes mounts the Execution Gateway's submit/cancel/modify/get
// operations (spec §6) directly onto the in-process Engine — there is no
// separate orders microservice to forward to, unlike the teacher's
// registry-backed ForwardToService routing.
func (r *Router) registerOrderRoutes(authMiddleware *auth.Middleware) {
	v1 := r.engine.Group("/v1")
	v1.Use(authMiddleware.AuthRequired())

	orders := v1.Group("/orders")
	{
		orders.POST("", r.handlers.SubmitOrder)
		orders.GET("", r.handlers.GetOrder) // ?client_order_id=...
		orders.GET("/:id", r.handlers.GetOrder)
		orders.PATCH("/:id", r.handlers.ModifyOrder)
		orders.DELETE("/:id", r.handlers.CancelOrder)
	}

	v1.GET("/metrics", r.handlers.Metrics)
	v1.GET("/books/:symbol/analytics", r.handlers.BookAnalytics)
}
