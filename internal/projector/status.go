package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// OrderStatus is the cached read model behind GET /orders/{id}/status.
type OrderStatus struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s OrderStatus) terminal() bool { return orders.Status(s.Status).Terminal() }

type StatusCache struct {
	Redis *redis.Client
}

func (c StatusCache) Get(ctx context.Context, orderID int64) (OrderStatus, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	var st OrderStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return OrderStatus{}, false, err
	}
	return st, true, nil
}

// Put stores st unless the cache already holds a terminal status; events
// from different topics can arrive out of order and a late OrderPlaced must
// not hide a cancellation.
func (c StatusCache) Put(ctx context.Context, st OrderStatus) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, st.OrderID)
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var prev OrderStatus
			if json.Unmarshal(cur, &prev) == nil && prev.terminal() && !st.terminal() {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, redisx.TTLStatusCache)
			return nil
		})
		return err
	}, key)
}
