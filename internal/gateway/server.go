package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/gateway/stream"
	"github.com/tradsys/core/internal/metrics"
)

// ServerParams contains the parameters for creating a new API Gateway server.
type ServerParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Logger     *zap.Logger
	Config     *config.Config
	Metrics    *metrics.Registry
	Middleware *Middleware
	Stream     *stream.Handler
}

// Server represents the API Gateway HTTP server: a gin engine carrying the
// REST surface plus a Prometheus scrape endpoint.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
	server *http.Server
}

// NewServer creates a new API Gateway server with fx dependency injection.
func NewServer(p ServerParams) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(p.Middleware.RequestID())
	router.Use(RequestLogger(p.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(p.Middleware.SecurityHeaders())
	router.Use(p.Middleware.RateLimitByIP())
	router.Use(p.Middleware.RateLimitByPath())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Metrics.Gatherer(), promhttp.HandlerOpts{})))

	// The report stream is a long-lived websocket upgrade, which gin's
	// own router doesn't natively serve; gorilla/mux handles the upgrade
	// and everything else falls through to gin.
	streamRouter := mux.NewRouter()
	p.Stream.Register(streamRouter)

	server := &Server{
		router: router,
		logger: p.Logger,
		config: p.Config,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", p.Config.Gateway.Host, p.Config.Gateway.Port),
			Handler: dispatch(streamRouter, router),
		},
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				p.Logger.Info("starting API gateway server", zap.String("address", server.server.Addr))
				if err := server.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					p.Logger.Error("API gateway server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping API gateway server")
			return server.server.Shutdown(ctx)
		},
	})

	return server
}

// RequestLogger returns a gin middleware that logs every request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		logger.Info("gateway request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", path),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// dispatch routes the websocket upgrade path to the gorilla/mux stream
// router and everything else to gin; the two routers can't share one
// mux since gorilla/mux owns the upgrade's hijacked connection directly.
func dispatch(streamRouter *mux.Router, rest http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/reports/stream" {
			streamRouter.ServeHTTP(w, r)
			return
		}
		rest.ServeHTTP(w, r)
	})
}
