package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/ariefcatur/go-clothing-orders/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sessions maps opaque bearer tokens to a Requester. Issuing tokens is left to
// whatever verifies credentials; this store only remembers the outcome.
type Sessions struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (s *Sessions) Issue(ctx context.Context, who Requester) (string, error) {
	if !who.Authenticated() {
		return "", fmt.Errorf("issue session: %w", ErrUnauthenticated)
	}
	b, err := json.Marshal(who)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeySession, token), b, s.ttl()).Err(); err != nil {
		return "", storage.Wrap("issue session", err)
	}
	return token, nil
}

func (s *Sessions) Resolve(ctx context.Context, token string) (Requester, error) {
	if token == "" {
		return Requester{}, ErrUnauthenticated
	}
	raw, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeySession, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Requester{}, ErrUnauthenticated
	}
	if err != nil {
		return Requester{}, storage.Wrap("resolve session", err)
	}
	var who Requester
	if err := json.Unmarshal(raw, &who); err != nil || !who.Authenticated() {
		return Requester{}, ErrUnauthenticated
	}
	return who, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeySession, token)).Err()
}

func (s *Sessions) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return redisx.TTLSession
}
