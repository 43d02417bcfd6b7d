// Package projector consumes order and stock events and keeps the Redis read
// models in step with them.
package projector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-clothing-orders/internal/events"
	kafkax "github.com/ariefcatur/go-clothing-orders/internal/kafka"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Service struct {
	Redis *redis.Client
	Name  string // dedup namespace
	Log   *slog.Logger
}

// HandleMessage is the consumer handler. Each event id is applied once; a
// failed event releases its dedup mark so redelivery can retry it.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// Poison message: log and let the offset move on.
		s.log().Error("drop message", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.name(), env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		s.log().Debug("duplicate event", "event_id", env.EventID, "event", env.EventType)
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		if derr := s.Redis.Del(ctx, dkey).Err(); derr != nil {
			s.log().Warn("release dedup mark", "event_id", env.EventID, "err", derr)
		}
		return fmt.Errorf("apply %s %s: %w", env.EventType, env.EventID, err)
	}
	s.log().Info("event applied", "event", env.EventType, "event_id", env.EventID,
		"correlation_id", env.CorrelationID, "trace_id", env.TraceID)
	return nil
}

func (s *Service) apply(ctx context.Context, env events.Envelope) error {
	cache := StatusCache{Redis: s.Redis}
	switch env.EventType {
	case events.EventOrderPlaced:
		p, err := events.Decode[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := cache.Put(ctx, OrderStatus{OrderID: p.OrderID, UserID: p.UserID, Status: p.Status, UpdatedAt: env.OccurredAt}); err != nil {
			return err
		}
		return s.dropStock(ctx, p.Items)

	case events.EventOrderCancelled, events.EventOrderDelivered:
		p, err := events.Decode[events.OrderStatusPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := cache.Put(ctx, OrderStatus{OrderID: p.OrderID, UserID: p.UserID, Status: p.Status, UpdatedAt: env.OccurredAt}); err != nil {
			return err
		}
		return s.dropStock(ctx, p.Items)

	case events.EventStockAdjusted:
		p, err := events.Decode[events.StockAdjustedPayload](env.Payload)
		if err != nil {
			return err
		}
		return redisx.DropStock(ctx, s.Redis, p.ProductID)

	default:
		s.log().Debug("ignore event", "event", env.EventType)
		return nil
	}
}

// dropStock removes cached stock hashes the event made stale. The API also
// does this right after commit; doing it again here covers API instances
// that failed to reach Redis at that moment.
func (s *Service) dropStock(ctx context.Context, lines []events.Line) error {
	if len(lines) == 0 {
		return nil
	}
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return redisx.DropStock(ctx, s.Redis, ids...)
}

func (s *Service) name() string {
	if s.Name != "" {
		return s.Name
	}
	return "projector"
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
