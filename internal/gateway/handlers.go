package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/apperr"
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms"
	"github.com/tradsys/core/internal/risk"
)

// httpStatusForKind maps a gateway error Kind (spec §7) onto the HTTP status
// that best reflects whether a retry, a client-side fix, or neither is
// appropriate.
func httpStatusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindOrderNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindOverfillDetected:
		return http.StatusConflict
	case apperr.KindCapacityExceeded:
		return http.StatusTooManyRequests
	case apperr.KindRiskCheckFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindNoVenuesAvailable, apperr.KindVenueNotConnected, apperr.KindMarketDataUnavailable, apperr.KindPersistenceError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// Handlers adapts gin requests onto an Engine. It is the thin translation
// layer spec §4.5 describes: decode, delegate, encode.
type Handlers struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandlers constructs the REST handler set.
func NewHandlers(engine *Engine, logger *zap.Logger) *Handlers {
	return &Handlers{engine: engine, logger: logger}
}

// accountIDFromContext reads the account identity AuthRequired middleware
// set in gin's context, falling back to the request header for callers that
// authenticate upstream of this process.
func accountIDFromContext(c *gin.Context) string {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader("X-Account-ID")
}

// accountState derives the best-effort AccountState snapshot the OMS can
// supply for a pre-submit risk check. The OMS is the sole owner of
// positions (spec §5); daily P&L and margin tracking are out of this
// core's scope (spec Non-goals), so those fields default to zero, which
// makes their corresponding risk checks permissive rather than blocking.
func (h *Handlers) accountState(accountID, symbol string) (risk.AccountState, int) {
	state := risk.AccountState{NetPositions: make(map[string]numerics.Qty)}
	openPositions := 0
	if pos, ok := h.engine.oms.Position(accountID, symbol); ok {
		state.NetPositions[symbol] = pos.NetQty
		if pos.NetQty != 0 {
			openPositions = 1
		}
	}
	return state, openPositions
}

// SubmitOrder handles POST /v1/orders.
func (h *Handlers) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SubmitOrderResponse{InitialStatus: "rejected", Message: err.Error()})
		return
	}

	accountID := accountIDFromContext(c)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, SubmitOrderResponse{InitialStatus: "rejected", Message: "missing account identity"})
		return
	}

	state, openPositions := h.accountState(accountID, req.Symbol)
	o, err := h.engine.SubmitOrder(c.Request.Context(), req, accountID, state, openPositions)
	if err != nil {
		kind := apperr.KindOf(err)
		resp := SubmitOrderResponse{Kind: string(kind), Message: err.Error()}
		if o != nil {
			resp.OrderID = o.OrderID
			resp.InitialStatus = string(o.Status)
		} else {
			resp.InitialStatus = "rejected"
		}
		c.JSON(httpStatusForKind(kind), resp)
		return
	}

	c.JSON(http.StatusAccepted, SubmitOrderResponse{
		OrderID:       o.OrderID,
		InitialStatus: string(o.Status),
	})
}

// CancelOrder handles DELETE /v1/orders/:id.
func (h *Handlers) CancelOrder(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	o, err := h.engine.CancelOrder(c.Request.Context(), orderID)
	if err != nil {
		kind := apperr.KindOf(err)
		c.JSON(httpStatusForKind(kind), CancelOrderResponse{Success: false, Kind: string(kind), Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, CancelOrderResponse{Success: true, NewStatus: string(o.Status)})
}

// ModifyOrder handles PATCH /v1/orders/:id.
func (h *Handlers) ModifyOrder(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ModifyOrderResponse{Success: false, Message: err.Error()})
		return
	}

	newQty := numerics.Qty(0)
	if req.NewQuantity > 0 {
		newQty = numerics.QtyFromFloat(req.NewQuantity)
	}
	newPrice := numerics.Price(0)
	if req.NewPrice > 0 {
		newPrice = numerics.PriceFromFloat(req.NewPrice)
	}

	o, err := h.engine.ModifyOrder(c.Request.Context(), orderID, newQty, newPrice)
	if err != nil {
		kind := apperr.KindOf(err)
		c.JSON(httpStatusForKind(kind), ModifyOrderResponse{Success: false, Kind: string(kind), Message: err.Error()})
		return
	}
	view := newOrderView(o)
	c.JSON(http.StatusOK, ModifyOrderResponse{Success: true, Order: &view})
}

// GetOrder handles GET /v1/orders/:id, or /v1/orders?client_order_id=...
// when :id is absent.
func (h *Handlers) GetOrder(c *gin.Context) {
	var (
		o   *oms.Order
		err error
	)
	if idParam := c.Param("id"); idParam != "" {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}
		o, err = h.engine.GetOrder(orderID)
	} else {
		clientOrderID := c.Query("client_order_id")
		accountID := accountIDFromContext(c)
		if clientOrderID == "" || accountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client_order_id and account identity are required"})
			return
		}
		o, err = h.engine.GetOrderByClientID(accountID, clientOrderID)
	}
	if err != nil {
		kind := apperr.KindOf(err)
		c.JSON(httpStatusForKind(kind), gin.H{"error": err.Error(), "kind": string(kind)})
		return
	}
	c.JSON(http.StatusOK, newOrderView(o))
}

// Metrics handles GET /v1/metrics: a JSON summary view, distinct from the
// Prometheus-format /metrics scrape endpoint mounted separately.
func (h *Handlers) Metrics(c *gin.Context) {
	mfs, err := h.engine.met.Gatherer().Gather()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summary := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		summary[mf.GetName()] = total
	}
	c.JSON(http.StatusOK, summary)
}

// BookAnalytics handles GET /v1/books/:symbol/analytics.
func (h *Handlers) BookAnalytics(c *gin.Context) {
	symbol := c.Param("symbol")
	snap, ok := h.engine.BookAnalytics(symbol, 10)
	if !ok {
		c.JSON(httpStatusForKind(apperr.KindMarketDataUnavailable), gin.H{"error": "no internal book for symbol", "kind": string(apperr.KindMarketDataUnavailable)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":         symbol,
		"imbalance_top":  snap.ImbalanceTop,
		"weighted_mid":   snap.WeightedMid.Float(),
		"spread_bps":     snap.SpreadBps,
		"toxicity_score": snap.ToxicityScore,
	})
}

func parseOrderID(c *gin.Context) (int64, bool) {
	var id int64
	if _, err := fmt.Sscan(c.Param("id"), &id); err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}
