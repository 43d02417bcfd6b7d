package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// schema is idempotent; Migrate runs it on every start.
const schema = `
CREATE TABLE IF NOT EXISTS cloth_types (
	id          BIGSERIAL PRIMARY KEY,
	type_name   TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	price         NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	cloth_type_id BIGINT,
	image_url     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'products_cloth_type_fk') THEN
		ALTER TABLE products ADD CONSTRAINT products_cloth_type_fk
			FOREIGN KEY (cloth_type_id) REFERENCES cloth_types(id);
	END IF;
END $$;

CREATE TABLE IF NOT EXISTS stock_entries (
	product_id BIGINT NOT NULL REFERENCES products(id),
	size_label VARCHAR(10) NOT NULL,
	stock      INT NOT NULL CHECK (stock >= 0),
	PRIMARY KEY (product_id, size_label)
);

CREATE TABLE IF NOT EXISTS orders (
	id           BIGSERIAL PRIMARY KEY,
	user_id      BIGINT NOT NULL,
	order_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
	total_amount NUMERIC(12,2) NOT NULL,
	status       TEXT NOT NULL,
	checkout_key TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS orders_user_checkout_key
	ON orders (user_id, checkout_key) WHERE checkout_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS orders_user_id ON orders (user_id);

CREATE TABLE IF NOT EXISTS order_items (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id),
	product_id BIGINT NOT NULL REFERENCES products(id),
	size_label VARCHAR(10) NOT NULL,
	quantity   INT NOT NULL CHECK (quantity > 0),
	price      NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order_id ON order_items (order_id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
