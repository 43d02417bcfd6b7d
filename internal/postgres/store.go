package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store backs catalog, inventory and orders with one pgx pool.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) WithinTx(ctx context.Context, fn func(orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storage.Wrap("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.Wrap("commit", err)
	}
	return nil
}

func (s *Store) WithinStockTx(ctx context.Context, fn func(inventory.StockTx) error) error {
	return s.WithinTx(ctx, func(t orders.Tx) error { return fn(t) })
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Summary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.id, p.name, p.price, COALESCE(p.cloth_type_id, 0), p.image_url, p.created_at,
		       COALESCE(SUM(se.stock), 0)
		FROM products p
		LEFT JOIN stock_entries se ON se.product_id = p.id
		GROUP BY p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, storage.Wrap("list products", err)
	}
	defer rows.Close()

	var out []catalog.Summary
	for rows.Next() {
		var sm catalog.Summary
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Price, &sm.ClothTypeID, &sm.ImageURL, &sm.CreatedAt, &sm.TotalStock); err != nil {
			return nil, storage.Wrap("list products", err)
		}
		out = append(out, sm)
	}
	return out, storage.Wrap("list products", rows.Err())
}

func (s *Store) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	return getProduct(ctx, s.DB, id)
}

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	var clothType *int64
	if p.ClothTypeID != 0 {
		clothType = &p.ClothTypeID
	}
	err := s.DB.QueryRow(ctx, `
		INSERT INTO products(name, price, cloth_type_id, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		p.Name, p.Price, clothType, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt)
	if pgCode(err) == foreignKeyViolation {
		return fmt.Errorf("%w: unknown cloth type %d", catalog.ErrInvalidProduct, p.ClothTypeID)
	}
	return storage.Wrap("create product", err)
}

func (s *Store) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	ct, err := s.DB.Exec(ctx, `UPDATE products SET price = $2 WHERE id = $1`, id, price)
	if err != nil {
		return storage.Wrap("update price", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (s *Store) ListClothTypes(ctx context.Context) ([]catalog.ClothType, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, type_name, description FROM cloth_types ORDER BY id DESC`)
	if err != nil {
		return nil, storage.Wrap("list cloth types", err)
	}
	defer rows.Close()

	out := []catalog.ClothType{}
	for rows.Next() {
		var ct catalog.ClothType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Description); err != nil {
			return nil, storage.Wrap("list cloth types", err)
		}
		out = append(out, ct)
	}
	return out, storage.Wrap("list cloth types", rows.Err())
}

func (s *Store) CreateClothType(ctx context.Context, ct *catalog.ClothType) error {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO cloth_types(type_name, description) VALUES ($1, $2)
		RETURNING id`, ct.Name, ct.Description,
	).Scan(&ct.ID)
	if pgCode(err) == uniqueViolation {
		return catalog.ErrClothTypeExists
	}
	return storage.Wrap("create cloth type", err)
}

func (s *Store) DeleteClothType(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM cloth_types WHERE id = $1`, id)
	if pgCode(err) == foreignKeyViolation {
		return catalog.ErrClothTypeInUse
	}
	if err != nil {
		return storage.Wrap("delete cloth type", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrClothTypeNotFound
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProduct(ctx context.Context, q querier, id int64) (catalog.Product, error) {
	var p catalog.Product
	err := q.QueryRow(ctx, `
		SELECT id, name, price, COALESCE(cloth_type_id, 0), image_url, created_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.ClothTypeID, &p.ImageURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, storage.Wrap("get product", err)
	}
	return p, nil
}
