// Package stream serves the long-lived "Stream execution reports"
// subscription (spec §6) over a websocket upgrade, with optional
// strategy_id/symbol/account query filters.
package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/gateway/reportbus"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The engine is accessed through a reverse proxy or gateway load
	// balancer in every deployment topology we target; origin checking
	// is delegated there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades a request to a websocket and streams filtered
// execution reports until the client disconnects.
type Handler struct {
	bus    *reportbus.Bus
	logger *zap.Logger
}

// New constructs a Handler backed by bus.
func New(bus *reportbus.Bus, logger *zap.Logger) *Handler {
	return &Handler{bus: bus, logger: logger}
}

// Register mounts the stream route on router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/v1/reports/stream", h.serveWS).Methods(http.MethodGet)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	q := r.URL.Query()
	filter := reportbus.Filter{
		StrategyID: q.Get("strategy_id"),
		Symbol:     q.Get("symbol"),
		Account:    q.Get("account"),
	}

	ctx := r.Context()
	reports, err := h.bus.Subscribe(ctx, filter)
	if err != nil {
		h.logger.Error("stream: subscribe failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Drain client-initiated frames (close, pong) on a dedicated goroutine
	// so a client disconnect is detected promptly instead of only on the
	// next outbound write.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(report); err != nil {
				h.logger.Debug("stream: write failed, closing", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
