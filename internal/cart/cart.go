package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrInvalidIdentity = errors.New("exactly one of user id or session id required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// MaxLineQuantity caps a single line. Exceeding it on add is not an error,
// the quantity is silently clamped.
const MaxLineQuantity = 10

// Identity keys a cart by exactly one of an authenticated user or an
// anonymous session.
type Identity struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func ForUser(id string) Identity    { return Identity{UserID: id} }
func ForSession(id string) Identity { return Identity{SessionID: id} }

func (i Identity) Valid() bool { return (i.UserID == "") != (i.SessionID == "") }

type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex,omitempty"`
}

type Line struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Size       string `json:"size"`
	Color      Color  `json:"color"`
	PriceCents int64  `json:"price_cents"`
}

// lineKey is the merge identity of a line: two lines with the same key are
// the same line and must never be duplicated.
type lineKey struct {
	productID string
	size      string
	colorName string
}

func keyOf(productID, size string, color Color) lineKey {
	name := color.Name
	if name == "" {
		name = "Default"
	}
	return lineKey{productID: productID, size: size, colorName: name}
}

func (l Line) key() lineKey { return keyOf(l.ProductID, l.Size, l.Color) }

type Cart struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	Items     []Line    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

func (c *Cart) TotalPriceCents() int64 {
	var total int64
	for _, l := range c.Items {
		total += int64(l.Quantity) * l.PriceCents
	}
	return total
}

func (c *Cart) findLine(k lineKey) *Line {
	for i := range c.Items {
		if c.Items[i].key() == k {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) removeLines(k lineKey) {
	kept := c.Items[:0]
	for _, l := range c.Items {
		if l.key() != k {
			kept = append(kept, l)
		}
	}
	c.Items = kept
}
