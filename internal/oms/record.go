package oms

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms/persistence"
	"github.com/tradsys/core/internal/orderbook"
)

func toRecord(o *Order) persistence.OrderRecord {
	fills := make([]persistence.FillRecord, len(o.Fills))
	for i, f := range o.Fills {
		fills[i] = persistence.FillRecord{
			FillID:  f.FillID,
			OrderID: f.OrderID,
			Price:   int64(f.Price),
			Qty:     int64(f.Qty),
			Venue:   f.Venue,
			IsMaker: f.IsMaker,
			Seq:     f.Seq,
			At:      int64(f.At),
		}
	}
	return persistence.OrderRecord{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		AccountID:     o.AccountID,
		Symbol:        o.Symbol,
		Side:          int(o.Side),
		Type:          int(o.Type),
		TIF:           int(o.TIF),
		LimitPrice:    int64(o.LimitPrice),
		StopPrice:     int64(o.StopPrice),
		Qty:           int64(o.Qty),
		StrategyID:    o.StrategyID,
		Venue:         o.Venue,
		Status:        string(o.Status),
		Version:       o.Version,
		FilledQty:     int64(o.FilledQty),
		RemainingQty:  int64(o.RemainingQty),
		AvgFillPrice:  int64(o.AvgFillPrice),
		RejectReason:  o.RejectReason,
		CreatedAt:     int64(o.CreatedAt),
		UpdatedAt:     int64(o.UpdatedAt),
		GTTDeadline:   int64(o.GTTDeadline),
		Fills:         fills,
	}
}

func fromRecord(r persistence.OrderRecord) *Order {
	fills := make([]Fill, len(r.Fills))
	for i, f := range r.Fills {
		fills[i] = Fill{
			FillID:  f.FillID,
			OrderID: f.OrderID,
			Price:   numerics.Price(f.Price),
			Qty:     numerics.Qty(f.Qty),
			Venue:   f.Venue,
			IsMaker: f.IsMaker,
			Seq:     f.Seq,
			At:      numerics.Timestamp(f.At),
		}
	}
	return &Order{
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		AccountID:     r.AccountID,
		Symbol:        r.Symbol,
		Side:          orderbook.Side(r.Side),
		Type:          OrderType(r.Type),
		TIF:           TimeInForce(r.TIF),
		LimitPrice:    numerics.Price(r.LimitPrice),
		StopPrice:     numerics.Price(r.StopPrice),
		Qty:           numerics.Qty(r.Qty),
		StrategyID:    r.StrategyID,
		Venue:         r.Venue,
		Status:        Status(r.Status),
		Version:       r.Version,
		FilledQty:     numerics.Qty(r.FilledQty),
		RemainingQty:  numerics.Qty(r.RemainingQty),
		AvgFillPrice:  numerics.Price(r.AvgFillPrice),
		RejectReason:  r.RejectReason,
		CreatedAt:     numerics.Timestamp(r.CreatedAt),
		UpdatedAt:     numerics.Timestamp(r.UpdatedAt),
		GTTDeadline:   numerics.Timestamp(r.GTTDeadline),
		Fills:         fills,
	}
}
