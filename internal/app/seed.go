package app

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/shopspring/decimal"
)

type demoProduct struct {
	name      string
	clothType string
	price     string
	stock     map[string]int
}

var demoCatalog = []demoProduct{
	{"Basic Tee", "Tops", "20.00", map[string]int{"S": 10, "M": 12, "L": 8}},
	{"Oxford Shirt", "Tops", "45.50", map[string]int{"M": 5, "L": 5, "XL": 3}},
	{"Denim Jacket", "Outerwear", "89.90", map[string]int{"M": 4, "L": 2}},
	{"Chino Pants", "Bottoms", "39.99", map[string]int{"30": 6, "32": 6, "34": 4}},
}

// SeedDemo creates the demo catalog with stock, acting as admin. Cloth
// types that already exist are reused.
func SeedDemo(ctx context.Context, admin auth.Requester, cat *catalog.Service, inv *inventory.Service) ([]catalog.Product, error) {
	types, err := clothTypes(ctx, admin, cat)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(demoCatalog))
	for _, d := range demoCatalog {
		p, err := cat.Create(ctx, admin, catalog.Product{
			Name:        d.name,
			ClothTypeID: types[d.clothType],
			Price:       decimal.RequireFromString(d.price),
		})
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", d.name, err)
		}
		for size, n := range d.stock {
			if err := inv.SetStock(ctx, admin, p.ID, size, n); err != nil {
				return nil, fmt.Errorf("seed %s stock %s: %w", d.name, size, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func clothTypes(ctx context.Context, admin auth.Requester, cat *catalog.Service) (map[string]int64, error) {
	if err := auth.RequireAdmin(admin); err != nil {
		return nil, err
	}
	existing, err := cat.ListClothTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed cloth types: %w", err)
	}
	ids := make(map[string]int64, len(existing))
	for _, ct := range existing {
		ids[ct.Name] = ct.ID
	}
	for _, d := range demoCatalog {
		if _, ok := ids[d.clothType]; ok {
			continue
		}
		ct, err := cat.CreateClothType(ctx, admin, catalog.ClothType{Name: d.clothType})
		if err != nil {
			return nil, fmt.Errorf("seed cloth type %s: %w", d.clothType, err)
		}
		ids[ct.Name] = ct.ID
	}
	return ids, nil
}
