package projector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-clothing-orders/internal/events"
	kafkax "github.com/ariefcatur/go-clothing-orders/internal/kafka"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Redis: rdb, Name: "test", Log: logx.Discard()}, mr
}

func message(t *testing.T, topic, eventType string, id int64, payload any) (kafkago.Message, events.Envelope) {
	t.Helper()
	env, err := events.New(eventType, "api", "trace-1", id, payload)
	require.NoError(t, err)
	m, err := kafkax.Encode(topic, events.Key(id), env)
	require.NoError(t, err)
	return m, env
}

func placedMsg(t *testing.T) kafkago.Message {
	m, _ := message(t, events.TopicOrderPlaced, events.EventOrderPlaced, 7, events.OrderPlacedPayload{
		OrderID: 7, UserID: 3, Status: "Pending", TotalAmount: decimal.NewFromInt(40),
		Items: []events.Line{{ProductID: 1, Size: "M", Qty: 2, Price: decimal.NewFromInt(20)}},
	})
	return m
}

func cancelledMsg(t *testing.T) kafkago.Message {
	m, _ := message(t, events.TopicOrderCancelled, events.EventOrderCancelled, 7, events.OrderStatusPayload{
		OrderID: 7, UserID: 3, Status: "Cancelled", ActorID: 3, ActorRole: "customer",
		Items: []events.Line{{ProductID: 1, Size: "M", Qty: 2}},
	})
	return m
}

func TestOrderPlacedCachesStatusAndDropsStock(t *testing.T) {
	svc, mr := setup(t)
	ctx := context.Background()
	mr.HSet(fmt.Sprintf(redisx.KeyStock, 1), "M", "2")

	require.NoError(t, svc.HandleMessage(ctx, placedMsg(t)))

	st, found, err := StatusCache{Redis: svc.Redis}.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Pending", st.Status)
	assert.Equal(t, int64(3), st.UserID)
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyStock, 1)))
	assert.InDelta(t, redisx.TTLStatusCache.Seconds(), mr.TTL(fmt.Sprintf(redisx.KeyOrderStatus, 7)).Seconds(), 1)
}

func TestLatePlacedDoesNotHideCancel(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleMessage(ctx, cancelledMsg(t)))
	require.NoError(t, svc.HandleMessage(ctx, placedMsg(t)))

	st, found, err := StatusCache{Redis: svc.Redis}.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Cancelled", st.Status)
}

func TestDuplicateEventAppliedOnce(t *testing.T) {
	svc, mr := setup(t)
	ctx := context.Background()
	m, env := message(t, events.TopicStockAdjusted, events.EventStockAdjusted, 1, events.StockAdjustedPayload{ProductID: 1, Size: "M", Stock: 9})

	require.NoError(t, svc.HandleMessage(ctx, m))
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "test", env.EventID)))

	mr.HSet(fmt.Sprintf(redisx.KeyStock, 1), "M", "9")
	require.NoError(t, svc.HandleMessage(ctx, m))
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyStock, 1)), "duplicate must not be applied again")
}

func TestFailedApplyReleasesDedup(t *testing.T) {
	svc, mr := setup(t)
	ctx := context.Background()
	m, env := message(t, events.TopicOrderPlaced, events.EventOrderPlaced, 8, "not an object")

	err := svc.HandleMessage(ctx, m)
	require.Error(t, err)
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "test", env.EventID)))
}

func TestPoisonMessageIsSkipped(t *testing.T) {
	svc, _ := setup(t)
	err := svc.HandleMessage(context.Background(), kafkago.Message{Topic: events.TopicOrderPlaced, Value: []byte("{")})
	assert.NoError(t, err)
}

func TestWrittenThroughCancelSurvivesLatePlaced(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	c := StatusCache{Redis: svc.Redis}

	require.NoError(t, svc.HandleMessage(ctx, cancelledMsg(t)))
	// The API writes the committed status after its own cancel.
	require.NoError(t, c.Put(ctx, OrderStatus{OrderID: 7, UserID: 3, Status: "Cancelled", UpdatedAt: time.Now()}))
	require.NoError(t, svc.HandleMessage(ctx, placedMsg(t)))

	st, found, err := c.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Cancelled", st.Status)
}
