package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/events"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// loadedField marks a cached hash as complete, so a product without any
// stock entry still counts as a cache hit.
const loadedField = "__loaded"

type TxRunner interface {
	WithinStockTx(ctx context.Context, fn func(StockTx) error) error
}

type Service struct {
	Store       TxRunner
	Redis       *redis.Client    // optional stock cache
	Events      events.Publisher // optional
	ServiceName string
	Log         *slog.Logger
}

// StockFor returns size -> stock for one product, served from Redis when
// possible.
func (s *Service) StockFor(ctx context.Context, productID int64) (map[string]int, error) {
	if levels, ok := s.cached(ctx, productID); ok {
		return levels, nil
	}
	ver, verOK := s.version(ctx, productID)

	var levels map[string]int
	err := s.Store.WithinStockTx(ctx, func(tx StockTx) error {
		var err error
		levels, err = NewLedger(tx).StockFor(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if verOK {
		s.fill(ctx, productID, ver, levels)
	}
	return levels, nil
}

// SetStock is the admin overwrite of one (product, size) entry.
func (s *Service) SetStock(ctx context.Context, who auth.Requester, productID int64, size string, value int) error {
	if err := auth.RequireAdmin(who); err != nil {
		return err
	}
	size, err := NormalizeSize(size)
	if err != nil {
		return err
	}
	err = s.Store.WithinStockTx(ctx, func(tx StockTx) error {
		return NewLedger(tx).SetStock(ctx, productID, size, value)
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, productID)
	s.log().Info("stock set", "product_id", productID, "size", size, "stock", value, "admin_id", who.UserID)

	if s.Events == nil {
		return nil
	}
	env, err := events.New(events.EventStockAdjusted, s.ServiceName, events.TraceID(ctx), productID,
		events.StockAdjustedPayload{ProductID: productID, Size: size, Stock: value, ActorID: who.UserID})
	if err == nil {
		err = s.Events.Publish(ctx, events.TopicStockAdjusted, events.Key(productID), env)
	}
	if err != nil {
		s.log().Warn("publish stock adjusted", "product_id", productID, "err", err)
	}
	return nil
}

// Invalidate drops cached stock for the given products. Cache errors are
// logged only; the database stays the source of truth.
func (s *Service) Invalidate(ctx context.Context, productIDs ...int64) {
	if s.Redis == nil || len(productIDs) == 0 {
		return
	}
	if err := redisx.DropStock(ctx, s.Redis, productIDs...); err != nil {
		s.log().Warn("invalidate stock cache", "product_ids", productIDs, "err", err)
	}
}

func (s *Service) cached(ctx context.Context, productID int64) (map[string]int, bool) {
	if s.Redis == nil {
		return nil, false
	}
	h, err := s.Redis.HGetAll(ctx, fmt.Sprintf(redisx.KeyStock, productID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log().Warn("read stock cache", "product_id", productID, "err", err)
		}
		return nil, false
	}
	if _, ok := h[loadedField]; !ok {
		return nil, false
	}
	out := make(map[string]int, len(h)-1)
	for size, v := range h {
		if size == loadedField {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		out[size] = n
	}
	return out, true
}

func (s *Service) version(ctx context.Context, productID int64) (int64, bool) {
	if s.Redis == nil {
		return 0, false
	}
	v, err := redisx.StockVersion(ctx, s.Redis, productID)
	if err != nil {
		s.log().Warn("read stock cache version", "product_id", productID, "err", err)
		return 0, false
	}
	return v, true
}

// fill caches levels read at version ver. An invalidation since then means
// levels may be stale, and the fill is skipped.
func (s *Service) fill(ctx context.Context, productID, ver int64, levels map[string]int) {
	key := fmt.Sprintf(redisx.KeyStock, productID)
	verKey := fmt.Sprintf(redisx.KeyStockVersion, productID)
	fields := make(map[string]any, len(levels)+1)
	for size, n := range levels {
		fields[size] = n
	}
	fields[loadedField] = 1

	err := s.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.HSet(ctx, key, fields)
			p.Expire(ctx, key, redisx.TTLStockCache)
			return nil
		})
		return err
	}, verKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		s.log().Warn("fill stock cache", "product_id", productID, "err", err)
	}
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
