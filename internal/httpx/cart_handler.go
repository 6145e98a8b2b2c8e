package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eightstore/commerce/internal/cart"
)

type CartHandler struct {
	Engine *cart.Engine
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.get)
	r.Post("/cart/add", h.add)
	r.Put("/cart/update", h.update)
	r.Delete("/cart/remove", h.remove)
	r.Delete("/cart/clear", h.clear)
	r.Post("/cart/merge", h.merge)
}

type cartResp struct {
	Items           []cart.Line `json:"items"`
	TotalItems      int         `json:"total_items"`
	TotalPriceCents int64       `json:"total_price_cents"`
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Engine.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	items := c.Items
	if items == nil {
		items = []cart.Line{}
	}
	writeJSON(w, http.StatusOK, cartResp{
		Items:           items,
		TotalItems:      c.TotalItems(),
		TotalPriceCents: c.TotalPriceCents(),
	})
}

type addReq struct {
	ProductID  string     `json:"product_id"`
	Quantity   int        `json:"quantity"`
	Size       string     `json:"size"`
	Color      cart.Color `json:"color"`
	PriceCents int64      `json:"price_cents"`
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req addReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" || req.Size == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product id and size are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.AddItem(ctx, id, req.ProductID, req.Quantity, req.Size, req.Color, req.PriceCents); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item added to cart"})
}

type updateReq struct {
	ProductID string     `json:"product_id"`
	Size      string     `json:"size"`
	Color     cart.Color `json:"color"`
	Quantity  int        `json:"quantity"`
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" || req.Size == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product id and size are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.UpdateQuantity(ctx, id, req.ProductID, req.Size, req.Color, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart updated"})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" || req.Size == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product id and size are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.RemoveItem(ctx, id, req.ProductID, req.Size, req.Color); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Clear(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

// merge folds the caller's anonymous session cart into their user cart
// after login. Both headers are required.
func (h *CartHandler) merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(r)
	sessionID := r.Header.Get(HeaderSessionID)
	if !ok || sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user id and session id required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Merge(ctx, cart.ForSession(sessionID), cart.ForUser(userID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
