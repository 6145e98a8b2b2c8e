package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightstore/commerce/internal/catalog"
)

type fakeCatalog struct {
	products map[string]*catalog.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

type memStore struct {
	mu    sync.Mutex
	carts map[Identity]*Cart
}

func newMemStore() *memStore { return &memStore{carts: make(map[Identity]*Cart)} }

func (m *memStore) Load(ctx context.Context, id Identity) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Line(nil), c.Items...)
	return &cp, nil
}

func (m *memStore) Save(ctx context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Items = append([]Line(nil), c.Items...)
	m.carts[c.Identity] = &cp
	return nil
}

func (m *memStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.carts {
		if c.ExpiresAt.Before(now) && !c.ExpiresAt.IsZero() {
			delete(m.carts, id)
			n++
		}
	}
	return n, nil
}

func product(id string, priceCents int64, sizes ...catalog.SizeStock) *catalog.Product {
	return &catalog.Product{
		ID:         id,
		Name:       "Product " + id,
		PriceCents: priceCents,
		Category:   catalog.CategoryMens,
		Sizes:      sizes,
		IsActive:   true,
	}
}

func newEngine(products ...*catalog.Product) (*Engine, *memStore) {
	byID := make(map[string]*catalog.Product)
	for _, p := range products {
		byID[p.ID] = p
	}
	store := newMemStore()
	return &Engine{Catalog: &fakeCatalog{products: byID}, Store: store}, store
}

func mustGet(t *testing.T, e *Engine, id Identity) *Cart {
	t.Helper()
	c, err := e.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestAddItem_StockCeiling(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	id := ForUser("u1")

	require.NoError(t, e.AddItem(ctx, id, "p1", 3, "M", Color{}, 1000))
	assert.Equal(t, 3, mustGet(t, e, id).Items[0].Quantity)

	// 3 + 3 = 6 > 5 available
	err := e.AddItem(ctx, id, "p1", 3, "M", Color{}, 1000)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, 3, mustGet(t, e, id).Items[0].Quantity)

	require.NoError(t, e.AddItem(ctx, id, "p1", 2, "M", Color{}, 1000))
	assert.Equal(t, 5, mustGet(t, e, id).Items[0].Quantity)
}

func TestAddItem_QuantityCapIsSilent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(50)}))
	id := ForUser("u1")

	require.NoError(t, e.AddItem(ctx, id, "p1", 7, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, id, "p1", 7, "M", Color{}, 1000))

	c := mustGet(t, e, id)
	require.Len(t, c.Items, 1)
	assert.Equal(t, MaxLineQuantity, c.Items[0].Quantity)
}

func TestAddItem_UnlimitedStock(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Unlimited()}))
	id := ForUser("u1")

	require.NoError(t, e.AddItem(ctx, id, "p1", 15, "M", Color{}, 1000))
	assert.Equal(t, MaxLineQuantity, mustGet(t, e, id).Items[0].Quantity)
}

func TestAddItem_SizeUnavailable(t *testing.T) {
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	err := e.AddItem(context.Background(), ForUser("u1"), "p1", 1, "XL", Color{}, 1000)
	assert.ErrorIs(t, err, catalog.ErrSizeUnavailable)
}

func TestAddItem_InactiveProduct(t *testing.T) {
	p := product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)})
	p.IsActive = false
	e, _ := newEngine(p)
	err := e.AddItem(context.Background(), ForUser("u1"), "p1", 1, "M", Color{}, 1000)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	err := e.AddItem(context.Background(), ForUser("u1"), "p1", 0, "M", Color{}, 1000)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItem_ColorDistinguishesLines(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(10)}))
	id := ForUser("u1")

	require.NoError(t, e.AddItem(ctx, id, "p1", 1, "M", Color{Name: "Red"}, 1000))
	require.NoError(t, e.AddItem(ctx, id, "p1", 1, "M", Color{Name: "Blue"}, 1000))
	// empty color name folds into "Default"
	require.NoError(t, e.AddItem(ctx, id, "p1", 1, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, id, "p1", 1, "M", Color{Name: "Default"}, 1000))

	c := mustGet(t, e, id)
	require.Len(t, c.Items, 3)
	assert.Equal(t, 2, c.Items[2].Quantity)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	id := ForUser("u1")

	require.NoError(t, e.AddItem(ctx, id, "p1", 2, "M", Color{}, 1000))
	require.NoError(t, e.RemoveItem(ctx, id, "p1", "M", Color{}))
	assert.Empty(t, mustGet(t, e, id).Items)

	// second removal of the same key is a no-op, not an error
	require.NoError(t, e.RemoveItem(ctx, id, "p1", "M", Color{}))
	assert.Empty(t, mustGet(t, e, id).Items)
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	id := ForUser("u1")
	require.NoError(t, e.AddItem(ctx, id, "p1", 2, "M", Color{}, 1000))

	require.NoError(t, e.UpdateQuantity(ctx, id, "p1", "M", Color{}, 4))
	assert.Equal(t, 4, mustGet(t, e, id).Items[0].Quantity)

	// clamped, no stock re-check on update
	require.NoError(t, e.UpdateQuantity(ctx, id, "p1", "M", Color{}, 25))
	assert.Equal(t, MaxLineQuantity, mustGet(t, e, id).Items[0].Quantity)

	// unknown line is a no-op
	require.NoError(t, e.UpdateQuantity(ctx, id, "p1", "L", Color{}, 2))
	require.Len(t, mustGet(t, e, id).Items, 1)

	// zero behaves exactly as remove
	require.NoError(t, e.UpdateQuantity(ctx, id, "p1", "M", Color{}, 0))
	assert.Empty(t, mustGet(t, e, id).Items)
}

func TestClear_KeepsCartRecord(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(5)}))
	id := ForUser("u1")
	require.NoError(t, e.AddItem(ctx, id, "p1", 2, "M", Color{}, 1000))

	require.NoError(t, e.Clear(ctx, id))
	c, ok := store.carts[id]
	require.True(t, ok, "cart record must survive clear")
	assert.Empty(t, c.Items)
}

func TestGet_UnknownIdentityIsEmptyCart(t *testing.T) {
	e, _ := newEngine()
	c, err := e.Get(context.Background(), ForSession("s1"))
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.TotalItems())
	assert.Zero(t, c.TotalPriceCents())
}

func TestMerge_DisjointAndOverlapping(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(
		product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(20)}),
		product("p2", 2000, catalog.SizeStock{Size: "L", Stock: catalog.Limited(20)}),
	)
	user, sess := ForUser("u1"), ForSession("s1")

	require.NoError(t, e.AddItem(ctx, user, "p1", 4, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, sess, "p1", 3, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, sess, "p2", 2, "L", Color{}, 2000))

	res, err := e.Merge(ctx, sess, user)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merged)
	assert.Empty(t, res.Skipped)

	c := mustGet(t, e, user)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 7, c.Items[0].Quantity) // overlapping key: additive
	assert.Equal(t, 2, c.Items[1].Quantity)

	assert.Empty(t, mustGet(t, e, sess).Items, "source cart cleared after merge")
}

func TestMerge_PartialFailureStillClearsSource(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(
		product("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(2)}),
		product("p2", 2000, catalog.SizeStock{Size: "L", Stock: catalog.Limited(20)}),
	)
	user, sess := ForUser("u1"), ForSession("s1")

	// user already holds all remaining stock of p1/M
	require.NoError(t, e.AddItem(ctx, user, "p1", 2, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, sess, "p1", 2, "M", Color{}, 1000))
	require.NoError(t, e.AddItem(ctx, sess, "p2", 1, "L", Color{}, 2000))

	res, err := e.Merge(ctx, sess, user)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "p1", res.Skipped[0].Line.ProductID)

	c := mustGet(t, e, user)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 2, c.Items[0].Quantity) // unchanged

	assert.Empty(t, mustGet(t, e, sess).Items, "source cleared even on partial merge")
}

func TestMerge_MissingSourceIsNoop(t *testing.T) {
	e, _ := newEngine()
	res, err := e.Merge(context.Background(), ForSession("nope"), ForUser("u1"))
	require.NoError(t, err)
	assert.Zero(t, res.Merged)
}
