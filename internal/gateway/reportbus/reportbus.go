// Package reportbus fans execution reports out to subscribers, with
// topic-based filtering by strategy, symbol, or account (spec §4.5 / §6
// "Stream execution reports"). It is built on watermill so the transport
// is pluggable: an in-process gochannel by default, a NATS backbone when
// report delivery needs to cross process boundaries.
package reportbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// EventKind enumerates the execution-report events an OMS transition or
// fill can produce.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventSubmitted EventKind = "submitted"
	EventFill      EventKind = "fill"
	EventRejected  EventKind = "rejected"
	EventCancelled EventKind = "cancelled"
	EventExpired   EventKind = "expired"
	EventAmended   EventKind = "amended"
	// EventVenueDegraded reports a venue circuit breaker state change,
	// published on the same topic space as execution reports so operators
	// observe degradation through the same subscription surface (spec §9
	// supplemented feature).
	EventVenueDegraded EventKind = "venue_degraded"
)

// Report is the wire shape of one execution report, carrying the
// monotonic per-order sequence number subscribers use to de-duplicate an
// at-least-once delivered stream.
type Report struct {
	Sequence      int64     `json:"sequence"`
	OrderID       int64     `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	StrategyID    string    `json:"strategy_id"`
	Symbol        string    `json:"symbol"`
	Account       string    `json:"account"`
	Venue         string    `json:"venue,omitempty"`
	EventKind     EventKind `json:"event_kind"`
	NewStatus     string    `json:"new_status"`
	Executed      int64     `json:"executed"`
	Remaining     int64     `json:"remaining"`
	AvgPrice      int64     `json:"avg_price"`
	TimestampNs   int64     `json:"timestamp_ns"`
}

const topic = "execution-reports"

// Bus wraps a watermill Publisher/Subscriber pair. Publish is called by
// internal/gateway's Engine after each OMS transition it drives, and by the
// router's venue breaker hook; Subscribe is called by the stream
// package (and any other in-process consumer) to register a filtered
// reader.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *zap.Logger
}

// New constructs a Bus backed by an in-process gochannel pub/sub. Pass a
// different Publisher/Subscriber pair (e.g. a NATS-backed one) via NewWith
// when reports must fan out across processes.
func New(logger *zap.Logger) *Bus {
	gc := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            1024,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, watermill.NewStdLogger(false, false))
	return &Bus{pub: gc, sub: gc, logger: logger}
}

// NewWith constructs a Bus over caller-supplied Publisher/Subscriber
// implementations, e.g. watermill-nats's nats.Publisher/nats.Subscriber.
func NewWith(pub message.Publisher, sub message.Subscriber, logger *zap.Logger) *Bus {
	return &Bus{pub: pub, sub: sub, logger: logger}
}

// Publish encodes and publishes one report. Errors are logged rather than
// surfaced to the OMS transition path: report fan-out is a non-critical,
// suspendable concern (spec §5), never allowed to block or fail a state
// transition that already committed.
func (b *Bus) Publish(r Report) {
	payload, err := json.Marshal(r)
	if err != nil {
		b.logger.Error("reportbus: marshal report", zap.Error(err))
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pub.Publish(topic, msg); err != nil {
		b.logger.Warn("reportbus: publish failed", zap.Error(err))
	}
}

// Filter narrows a subscription to reports matching every non-empty field.
type Filter struct {
	StrategyID string
	Symbol     string
	Account    string
}

func (f Filter) matches(r Report) bool {
	if f.StrategyID != "" && f.StrategyID != r.StrategyID {
		return false
	}
	if f.Symbol != "" && f.Symbol != r.Symbol {
		return false
	}
	if f.Account != "" && f.Account != r.Account {
		return false
	}
	return true
}

// Subscribe returns a channel of reports matching filter. The returned
// channel is closed when ctx is cancelled. Every message is Ack'd
// immediately after being handed to the channel (or dropped by the
// filter) — at-least-once delivery means a consumer that dies mid-read
// may see a report redelivered on reconnect, not lost silently.
func (b *Bus) Subscribe(ctx context.Context, filter Filter) (<-chan Report, error) {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("reportbus: subscribe: %w", err)
	}

	out := make(chan Report, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var r Report
				if err := json.Unmarshal(msg.Payload, &r); err != nil {
					b.logger.Warn("reportbus: drop undecodable message", zap.Error(err))
					msg.Ack()
					continue
				}
				if !filter.matches(r) {
					msg.Ack()
					continue
				}
				select {
				case out <- r:
					msg.Ack()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying transport.
func (b *Bus) Close() error {
	if closer, ok := b.pub.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
