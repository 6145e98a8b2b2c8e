package catalog

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrUnavailable       = errors.New("product not available")
	ErrSizeUnavailable   = errors.New("size not available")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateReview   = errors.New("review already exists")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

type Category string

const (
	CategoryMens        Category = "mens"
	CategoryWomens      Category = "womens"
	CategoryAccessories Category = "accessories"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMens, CategoryWomens, CategoryAccessories:
		return true
	}
	return false
}

// Stock is either a bounded unit count or unlimited. Unlimited maps to a
// NULL stock column; it satisfies any requested quantity.
type Stock struct {
	unlimited bool
	units     int
}

func Limited(n int) Stock {
	if n < 0 {
		n = 0
	}
	return Stock{units: n}
}

func Unlimited() Stock { return Stock{unlimited: true} }

func (s Stock) IsUnlimited() bool { return s.unlimited }

// Units returns the bounded count; zero for unlimited stock, callers must
// check IsUnlimited first.
func (s Stock) Units() int { return s.units }

func (s Stock) Covers(qty int) bool { return s.unlimited || qty <= s.units }

func (s Stock) MarshalJSON() ([]byte, error) {
	if s.unlimited {
		return []byte("null"), nil
	}
	return json.Marshal(s.units)
}

func (s *Stock) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Unlimited()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Limited(n)
	return nil
}

// stockFrom converts a nullable column value.
func stockFrom(n *int32) Stock {
	if n == nil {
		return Unlimited()
	}
	return Limited(int(*n))
}

type SizeStock struct {
	Size  string `json:"size"`
	Stock Stock  `json:"stock"`
}

type ColorStock struct {
	Name  string `json:"name"`
	Hex   string `json:"hex"`
	Stock Stock  `json:"stock"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Product struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	PriceCents         int64        `json:"price_cents"`
	OriginalPriceCents *int64       `json:"original_price_cents,omitempty"`
	Category           Category     `json:"category"`
	Subcategory        string       `json:"subcategory,omitempty"`
	Images             []Image      `json:"images"`
	Sizes              []SizeStock  `json:"sizes"`
	Colors             []ColorStock `json:"colors"`
	IsActive           bool         `json:"is_active"`
	IsFeatured         bool         `json:"is_featured"`
	Rating             Rating       `json:"rating"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// SizeStockOf returns the stock for a named size, or ErrSizeUnavailable
// when the product does not offer it.
func (p *Product) SizeStockOf(size string) (Stock, error) {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Stock, nil
		}
	}
	return Stock{}, ErrSizeUnavailable
}

type Review struct {
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type ListFilter struct {
	Category      Category
	MinPriceCents int64
	MaxPriceCents int64
	Search        string
	FeaturedOnly  bool
	InStockOnly   bool
	Sort          string // created_at | price | name | rating
	Desc          bool
	Limit         int
	Offset        int
}
