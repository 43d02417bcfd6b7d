package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CatalogHandler struct {
	Catalog   *catalog.Service
	Inventory *inventory.Service
}

type setStockReq struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Size      string `json:"size_label" validate:"required,max=10"`
	Value     *int   `json:"value" validate:"required,gte=0"`
}

type stockResp struct {
	ProductID int64          `json:"product_id"`
	Sizes     map[string]int `json:"sizes"`
}

type createProductReq struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Price       decimal.Decimal `json:"price"`
	ClothTypeID int64           `json:"cloth_type_id" validate:"gte=0"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
}

type clothTypeReq struct {
	Name        string `json:"type_name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type priceReq struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Get("/products/{id}/stock", h.stock)
	r.Post("/admin/stock", h.setStock)
	r.Post("/admin/products", h.create)
	r.Put("/admin/products/{id}/price", h.updatePrice)
	r.Get("/cloth-types", h.listClothTypes)
	r.Post("/admin/cloth-types", h.createClothType)
	r.Delete("/admin/cloth-types/{id}", h.deleteClothType)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []catalog.Summary{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) stock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sizes, err := h.Inventory.StockFor(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResp{ProductID: id, Sizes: sizes})
}

func (h *CatalogHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req setStockReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Inventory.SetStock(ctx, requester(r), req.ProductID, req.Size, *req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Catalog.Create(ctx, requester(r), catalog.Product{
		Name:        req.Name,
		Price:       req.Price,
		ClothTypeID: req.ClothTypeID,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req priceReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Catalog.UpdatePrice(ctx, requester(r), id, *req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listClothTypes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Catalog.ListClothTypes(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) createClothType(w http.ResponseWriter, r *http.Request) {
	var req clothTypeReq
	if !bind(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ct, err := h.Catalog.CreateClothType(ctx, requester(r), catalog.ClothType{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ct)
}

func (h *CatalogHandler) deleteClothType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Catalog.DeleteClothType(ctx, requester(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
