package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrClothTypeNotFound = errors.New("cloth type not found")
	ErrClothTypeExists   = errors.New("cloth type already exists")
	ErrClothTypeInUse    = errors.New("cloth type is used by products")
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ClothTypeID int64           `json:"cloth_type_id,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ClothType groups products (shirts, outerwear, ...). Names are unique.
type ClothType struct {
	ID          int64  `json:"id"`
	Name        string `json:"type_name"`
	Description string `json:"description,omitempty"`
}

// Summary is a catalog row with stock summed over every size.
type Summary struct {
	Product
	TotalStock int `json:"total_stock"`
}

type Store interface {
	ListProducts(ctx context.Context) ([]Summary, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error

	ListClothTypes(ctx context.Context) ([]ClothType, error)
	// CreateClothType returns ErrClothTypeExists for a taken name.
	CreateClothType(ctx context.Context, ct *ClothType) error
	// DeleteClothType returns ErrClothTypeInUse while products reference it.
	DeleteClothType(ctx context.Context, id int64) error
}

type Service struct {
	Store Store
	Log   *slog.Logger
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.Store.ListProducts(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.Store.GetProduct(ctx, id)
}

func (s *Service) Create(ctx context.Context, who auth.Requester, p Product) (Product, error) {
	if err := auth.RequireAdmin(who); err != nil {
		return Product{}, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	p.Price = p.Price.Round(2)
	if err := s.Store.CreateProduct(ctx, &p); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.log().Info("product created", "product_id", p.ID, "admin_id", who.UserID)
	return p, nil
}

// ListClothTypes returns every cloth type, newest first.
func (s *Service) ListClothTypes(ctx context.Context) ([]ClothType, error) {
	return s.Store.ListClothTypes(ctx)
}

func (s *Service) CreateClothType(ctx context.Context, who auth.Requester, ct ClothType) (ClothType, error) {
	if err := auth.RequireAdmin(who); err != nil {
		return ClothType{}, err
	}
	ct.Name = strings.TrimSpace(ct.Name)
	ct.Description = strings.TrimSpace(ct.Description)
	if ct.Name == "" {
		return ClothType{}, fmt.Errorf("%w: type name is required", ErrInvalidProduct)
	}
	if err := s.Store.CreateClothType(ctx, &ct); err != nil {
		return ClothType{}, err
	}
	s.log().Info("cloth type created", "cloth_type_id", ct.ID, "name", ct.Name, "admin_id", who.UserID)
	return ct, nil
}

func (s *Service) DeleteClothType(ctx context.Context, who auth.Requester, id int64) error {
	if err := auth.RequireAdmin(who); err != nil {
		return err
	}
	if err := s.Store.DeleteClothType(ctx, id); err != nil {
		return err
	}
	s.log().Info("cloth type deleted", "cloth_type_id", id, "admin_id", who.UserID)
	return nil
}

// UpdatePrice changes the catalog price. Orders keep the price they were
// placed with.
func (s *Service) UpdatePrice(ctx context.Context, who auth.Requester, id int64, price decimal.Decimal) (Product, error) {
	if err := auth.RequireAdmin(who); err != nil {
		return Product{}, err
	}
	if price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if err := s.Store.UpdatePrice(ctx, id, price.Round(2)); err != nil {
		return Product{}, err
	}
	s.log().Info("product repriced", "product_id", id, "price", price.StringFixed(2), "admin_id", who.UserID)
	return s.Store.GetProduct(ctx, id)
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
