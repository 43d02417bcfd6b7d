package mocks

import (
	"context"

	"github.com/ariefcatur/go-clothing-orders/internal/events"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key []byte, env events.Envelope) error {
	args := m.Called(ctx, topic, key, env)
	return args.Error(0)
}

type MockStockCache struct {
	mock.Mock
}

func (m *MockStockCache) Invalidate(ctx context.Context, productIDs ...int64) {
	m.Called(ctx, productIDs)
}
