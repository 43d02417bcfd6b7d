package events

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WrapsPayload(t *testing.T) {
	env, err := New(EventOrderPlaced, "shop-api", "req-1", 17, OrderPlacedPayload{
		OrderID:     17,
		UserID:      3,
		Items:       []Line{{ProductID: 1, Size: "M", Qty: 2, Price: decimal.RequireFromString("20.00")}},
		TotalAmount: decimal.RequireFromString("40.00"),
		Status:      "Pending",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "17", env.CorrelationID)
	assert.Equal(t, "req-1", env.TraceID)

	p, err := Decode[OrderPlacedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(17), p.OrderID)
	assert.True(t, p.TotalAmount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "M", p.Items[0].Size)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode[OrderStatusPayload]([]byte(`{"order_id":"x"`))
	assert.Error(t, err)
}

func TestTraceID(t *testing.T) {
	assert.Equal(t, "", TraceID(context.Background()))
	assert.Equal(t, "abc", TraceID(WithTrace(context.Background(), "abc")))
	assert.Equal(t, []byte("42"), Key(42))
}
