package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eightstore/commerce/internal/catalog"
)

type ProductsHandler struct {
	Catalog catalog.Store
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Get("/products/featured", h.featured)
	r.Get("/products/categories", h.categories)
	r.Get("/products/{id}", h.get)
	r.Post("/products/{id}/reviews", h.addReview)
}

type productListResp struct {
	Products   []catalog.Product `json:"products"`
	Pagination pagination        `json:"pagination"`
}

type pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

func paginate(page, limit, total int) pagination {
	pages := (total + limit - 1) / limit
	return pagination{Current: page, Pages: pages, Total: total, Limit: limit}
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := atoiDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := atoiDefault(q.Get("limit"), 12)
	if limit < 1 || limit > 100 {
		limit = 12
	}

	f := catalog.ListFilter{
		Category:     catalog.Category(q.Get("category")),
		Search:       q.Get("search"),
		FeaturedOnly: q.Get("featured") == "true",
		InStockOnly:  q.Get("in_stock") == "true",
		Sort:         q.Get("sort"),
		Desc:         q.Get("order") != "asc",
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if f.Category != "" && !f.Category.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category"})
		return
	}
	if v := q.Get("min_price_cents"); v != "" {
		f.MinPriceCents = int64(atoiDefault(v, 0))
	}
	if v := q.Get("max_price_cents"); v != "" {
		f.MaxPriceCents = int64(atoiDefault(v, 0))
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, total, err := h.Catalog.ListProducts(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, productListResp{
		Products:   products,
		Pagination: paginate(page, limit, total),
	})
}

func (h *ProductsHandler) featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := h.Catalog.FeaturedProducts(ctx, atoiDefault(r.URL.Query().Get("limit"), 8))
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductsHandler) categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	counts, err := h.Catalog.CategoryCounts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	// Inactive products are indistinguishable from missing ones here.
	if !p.IsActive {
		writeError(w, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type reviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ProductsHandler) addReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req reviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Catalog.AddReview(ctx, catalog.Review{
		ProductID: chi.URLParam(r, "id"),
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "review added"})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
