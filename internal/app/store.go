// Package app wires configuration into the concrete store and services the
// binaries share.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/config"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/memstore"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/postgres"
)

// Store is what every service needs from the backing database.
type Store interface {
	orders.Store
	inventory.TxRunner
	catalog.Store
}

// OpenStore returns the configured store and a function that releases it.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), func() {}, nil
	case config.StoreDriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		return &postgres.Store{DB: pool}, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
