package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderDelivered = "OrderDelivered"
	EventStockAdjusted  = "StockAdjusted"
)

const (
	TopicOrderPlaced    = "shop.order.placed"
	TopicOrderCancelled = "shop.order.cancelled"
	TopicOrderDelivered = "shop.order.delivered"
	TopicStockAdjusted  = "shop.stock.adjusted"
)

// Topics lists everything the projector subscribes to.
var Topics = []string{TopicOrderPlaced, TopicOrderCancelled, TopicOrderDelivered, TopicStockAdjusted}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id, or product id for stock events
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type Line struct {
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size_label"`
	Qty       int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Items       []Line          `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
}

type OrderStatusPayload struct {
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	ActorID   int64  `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Items     []Line `json:"items,omitempty"` // stock given back on cancellation
}

type StockAdjustedPayload struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size_label"`
	Stock     int    `json:"stock"`
	ActorID   int64  `json:"actor_id"`
}

// Publisher delivers envelopes to a topic. Implementations must not block on
// the broker; failures are reported, not retried.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, []byte, Envelope) error { return nil }

func New(eventType, producer, traceID string, correlationID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(correlationID, 10),
		Payload:       b,
	}, nil
}

// Key is the partition key; every event of one order lands on one partition.
func Key(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }

func Decode[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type traceKey struct{}

// WithTrace carries the inbound request id down to event envelopes.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
