package order

import (
	"errors"
	"time"

	"github.com/eightstore/commerce/internal/cart"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidInput      = errors.New("missing required order information")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrEmptyOrder        = errors.New("order has no items")
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Payment struct {
	Method string        `json:"method"`
	Status PaymentStatus `json:"status"`
}

type Address struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Complete() bool {
	return a.FullName != "" && a.Line1 != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// Item is an immutable snapshot of a product at order time: name, image
// and unit price are captured, not referenced.
type Item struct {
	ProductID  string     `json:"product_id"`
	Name       string     `json:"name"`
	PriceCents int64      `json:"price_cents"`
	Quantity   int        `json:"quantity"`
	Size       string     `json:"size"`
	Color      cart.Color `json:"color"`
	ImageURL   string     `json:"image_url,omitempty"`
}

type Pricing struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type TimelineEntry struct {
	Status Status    `json:"status"`
	Note   string    `json:"note"`
	At     time.Time `json:"at"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []Item          `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Pricing         Pricing         `json:"pricing"`
	Payment         Payment         `json:"payment"`
	Status          Status          `json:"status"`
	Timeline        []TimelineEntry `json:"timeline"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type LineInput struct {
	ProductID string     `json:"product_id"`
	Quantity  int        `json:"quantity"`
	Size      string     `json:"size"`
	Color     cart.Color `json:"color"`
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
