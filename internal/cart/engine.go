package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eightstore/commerce/internal/catalog"
)

// CatalogReader is the catalog surface the engine needs: current stock and
// availability at mutation time.
type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Store interface {
	// Load returns ErrNotFound when no cart exists for the identity.
	Load(ctx context.Context, id Identity) (*Cart, error)
	// Save persists the cart and refreshes its expiry.
	Save(ctx context.Context, c *Cart) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Engine struct {
	Catalog CatalogReader
	Store   Store
}

// Get never fails on a missing cart; an identity without one has an empty
// cart.
func (e *Engine) Get(ctx context.Context, id Identity) (*Cart, error) {
	if !id.Valid() {
		return nil, ErrInvalidIdentity
	}
	c, err := e.Store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return &Cart{Identity: id}, nil
	}
	return c, err
}

// AddItem validates the size and current stock, then merges into an
// existing line or appends a new one. Quantities are clamped to
// MaxLineQuantity; exceeding the clamp alone is never an error.
func (e *Engine) AddItem(ctx context.Context, id Identity, productID string, qty int, size string, color Color, priceCents int64) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}

	p, err := e.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return catalog.ErrUnavailable
	}
	stock, err := p.SizeStockOf(size)
	if err != nil {
		return err
	}

	c, err := e.Store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		c = &Cart{ID: uuid.NewString(), Identity: id}
	} else if err != nil {
		return err
	}

	k := keyOf(productID, size, color)
	if line := c.findLine(k); line != nil {
		newTotal := line.Quantity + qty
		if !stock.Covers(newTotal) {
			return catalog.ErrInsufficientStock
		}
		line.Quantity = min(newTotal, MaxLineQuantity)
	} else {
		if !stock.Covers(qty) {
			return catalog.ErrInsufficientStock
		}
		c.Items = append(c.Items, Line{
			ProductID:  productID,
			Quantity:   min(qty, MaxLineQuantity),
			Size:       size,
			Color:      color,
			PriceCents: priceCents,
		})
	}

	return e.Store.Save(ctx, c)
}

// RemoveItem deletes every line matching the identity key. Removing a line
// that is not in the cart is a no-op.
func (e *Engine) RemoveItem(ctx context.Context, id Identity, productID, size string, color Color) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	c, err := e.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	c.removeLines(keyOf(productID, size, color))
	return e.Store.Save(ctx, c)
}

// UpdateQuantity with qty <= 0 behaves exactly as RemoveItem. Updating a
// line that is not in the cart is a no-op.
func (e *Engine) UpdateQuantity(ctx context.Context, id Identity, productID, size string, color Color, qty int) error {
	if qty <= 0 {
		return e.RemoveItem(ctx, id, productID, size, color)
	}
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	c, err := e.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	if line := c.findLine(keyOf(productID, size, color)); line != nil {
		line.Quantity = min(qty, MaxLineQuantity)
	}
	return e.Store.Save(ctx, c)
}

// Clear empties the line list but keeps the cart record.
func (e *Engine) Clear(ctx context.Context, id Identity) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}
	c, err := e.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	c.Items = nil
	return e.Store.Save(ctx, c)
}

type SkippedLine struct {
	Line   Line   `json:"line"`
	Reason string `json:"reason"`
}

type MergeResult struct {
	Merged  int           `json:"merged"`
	Skipped []SkippedLine `json:"skipped,omitempty"`
}

// Merge replays every source line through AddItem on the target,
// re-validating stock against the current catalog. Lines that no longer
// fit are skipped, not fatal. The source cart is cleared unconditionally,
// even when some lines were skipped.
func (e *Engine) Merge(ctx context.Context, from, to Identity) (MergeResult, error) {
	if !from.Valid() || !to.Valid() {
		return MergeResult{}, ErrInvalidIdentity
	}

	src, err := e.Store.Load(ctx, from)
	if errors.Is(err, ErrNotFound) {
		return MergeResult{}, nil
	}
	if err != nil {
		return MergeResult{}, err
	}
	if len(src.Items) == 0 {
		return MergeResult{}, nil
	}

	var res MergeResult
	for _, l := range src.Items {
		err := e.AddItem(ctx, to, l.ProductID, l.Quantity, l.Size, l.Color, l.PriceCents)
		switch {
		case err == nil:
			res.Merged++
		case errors.Is(err, catalog.ErrInsufficientStock),
			errors.Is(err, catalog.ErrSizeUnavailable),
			errors.Is(err, catalog.ErrUnavailable),
			errors.Is(err, catalog.ErrNotFound):
			res.Skipped = append(res.Skipped, SkippedLine{Line: l, Reason: err.Error()})
		default:
			return res, err
		}
	}

	src.Items = nil
	if err := e.Store.Save(ctx, src); err != nil {
		return res, err
	}
	return res, nil
}
