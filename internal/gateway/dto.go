package gateway

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms"
	"github.com/tradsys/core/internal/orderbook"
)

// SubmitOrderRequest is the external submit-order request shape (spec §6).
// Price/quantity fields are human-facing decimals; Engine converts them to
// internal/numerics fixed-point at the boundary.
type SubmitOrderRequest struct {
	ClientOrderID     string  `json:"client_order_id" binding:"required"`
	Symbol            string  `json:"symbol" binding:"required"`
	Side              string  `json:"side" binding:"required,oneof=buy sell"`
	Quantity          float64 `json:"quantity" binding:"required,gt=0"`
	OrderType         string  `json:"order_type" binding:"required,oneof=market limit stop stop_limit"`
	LimitPrice        float64 `json:"limit_price" binding:"omitempty,gt=0"`
	StopPrice         float64 `json:"stop_price" binding:"omitempty,gt=0"`
	TimeInForce       string  `json:"time_in_force" binding:"required,oneof=day gtc ioc fok gtt"`
	GTTDeadlineNs      int64   `json:"gtt_deadline_ns" binding:"omitempty,gt=0"`
	Venue             string  `json:"venue"`
	Algorithm         string  `json:"algorithm" binding:"omitempty,oneof=smart twap vwap pov iceberg peg"`
	StrategyID        string  `json:"strategy_id"`
	Urgency           float64 `json:"urgency" binding:"omitempty,gte=0,lte=1"`
	ParticipationRate float64 `json:"participation_rate" binding:"omitempty,gt=0,lte=1"`
}

func (r SubmitOrderRequest) side() orderbook.Side {
	if r.Side == "sell" {
		return orderbook.SideSell
	}
	return orderbook.SideBuy
}

func (r SubmitOrderRequest) orderType() oms.OrderType {
	if r.OrderType == "market" {
		return oms.TypeMarket
	}
	return oms.TypeLimit
}

func (r SubmitOrderRequest) tif() oms.TimeInForce {
	switch r.TimeInForce {
	case "gtc":
		return oms.TIFGTC
	case "ioc":
		return oms.TIFIOC
	case "fok":
		return oms.TIFFOK
	case "gtt":
		return oms.TIFGTT
	default:
		return oms.TIFDay
	}
}

func (r SubmitOrderRequest) limitPrice() numerics.Price {
	if r.LimitPrice <= 0 {
		return 0
	}
	return numerics.PriceFromFloat(r.LimitPrice)
}

func (r SubmitOrderRequest) stopPrice() numerics.Price {
	if r.StopPrice <= 0 {
		return 0
	}
	return numerics.PriceFromFloat(r.StopPrice)
}

func (r SubmitOrderRequest) qty() numerics.Qty {
	return numerics.QtyFromFloat(r.Quantity)
}

func (r SubmitOrderRequest) gttDeadline() numerics.Timestamp {
	return numerics.Timestamp(r.GTTDeadlineNs)
}

// SubmitOrderResponse mirrors spec §6's submit-order response tuple. Kind is
// set only on failure, carrying the machine-readable category from spec
// §7's error table (apperr.Kind) alongside the human-readable Message.
type SubmitOrderResponse struct {
	OrderID       int64  `json:"order_id"`
	InitialStatus string `json:"initial_status"`
	Kind          string `json:"kind,omitempty"`
	Message       string `json:"message,omitempty"`
}

// CancelOrderResponse mirrors spec §6's cancel-order response tuple.
type CancelOrderResponse struct {
	Success   bool   `json:"success"`
	NewStatus string `json:"new_status"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ModifyOrderRequest is the external modify-order request shape.
type ModifyOrderRequest struct {
	NewQuantity float64 `json:"new_quantity" binding:"omitempty,gt=0"`
	NewPrice    float64 `json:"new_price" binding:"omitempty,gt=0"`
}

// ModifyOrderResponse mirrors spec §6's modify-order response tuple.
type ModifyOrderResponse struct {
	Success bool       `json:"success"`
	Order   *OrderView `json:"order,omitempty"`
	Kind    string     `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
}

// OrderView is the external, human-facing snapshot of an OMS order.
type OrderView struct {
	OrderID       int64   `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	AccountID     string  `json:"account_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Status        string  `json:"status"`
	Quantity      float64 `json:"quantity"`
	FilledQty     float64 `json:"filled_qty"`
	RemainingQty  float64 `json:"remaining_qty"`
	AvgFillPrice  float64 `json:"avg_fill_price"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	StopPrice     float64 `json:"stop_price,omitempty"`
	StrategyID    string  `json:"strategy_id,omitempty"`
	Venue         string  `json:"venue,omitempty"`
	RejectReason  string  `json:"reject_reason,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
}

func newOrderView(o *oms.Order) OrderView {
	return OrderView{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		AccountID:     o.AccountID,
		Symbol:        o.Symbol,
		Side:          o.Side.String(),
		Status:        string(o.Status),
		Quantity:      o.Qty.Float(),
		FilledQty:     o.FilledQty.Float(),
		RemainingQty:  o.RemainingQty.Float(),
		AvgFillPrice:  o.AvgFillPrice.Float(),
		LimitPrice:    o.LimitPrice.Float(),
		StopPrice:     o.StopPrice.Float(),
		StrategyID:    o.StrategyID,
		Venue:         o.Venue,
		RejectReason:  o.RejectReason,
		CreatedAt:     int64(o.CreatedAt),
		UpdatedAt:     int64(o.UpdatedAt),
	}
}
