package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eightstore/commerce/internal/cart"
	"github.com/eightstore/commerce/internal/catalog"
)

type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Store interface {
	// CreateOrder persists the order and decrements stock for every line
	// in a single transaction: a shortage on any line rolls everything
	// back. clear names the originating cart to empty inside the same
	// transaction; nil means none.
	CreateOrder(ctx context.Context, o *Order, clear *cart.Identity) error

	GetOrder(ctx context.Context, id, userID string) (*Order, error)
	// GetOrderAny skips the owner scope (privileged callers).
	GetOrderAny(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, int, error)

	// CancelOrder marks the order cancelled, appends the timeline entry
	// and restores stock for every line, atomically. Returns
	// ErrInvalidTransition when the stored status moved out of a
	// cancellable state concurrently.
	CancelOrder(ctx context.Context, o *Order, entry TimelineEntry) error

	// UpdateStatus sets the status and appends the timeline entry. No
	// stock movement.
	UpdateStatus(ctx context.Context, o *Order, entry TimelineEntry) error
}

type Service struct {
	Catalog CatalogReader
	Store   Store
	Events  *Emitter
}

type CreateInput struct {
	UserID          string
	Items           []LineInput
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	TraceID         string
}

type CreateResult struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Status     Status `json:"status"`
}

// Create snapshots each line against the product's current price, computes
// pricing, and persists order + stock decrements + cart clear as one
// transaction. Prices captured in the cart are deliberately ignored here.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if in.UserID == "" || in.PaymentMethod == "" ||
		!in.ShippingAddress.Complete() || !in.BillingAddress.Complete() {
		return CreateResult{}, ErrInvalidInput
	}
	if len(in.Items) == 0 {
		return CreateResult{}, ErrEmptyOrder
	}

	var subtotal int64
	items := make([]Item, 0, len(in.Items))
	for _, li := range in.Items {
		if li.Quantity < 1 {
			return CreateResult{}, fmt.Errorf("%w: quantity for product %s", ErrInvalidInput, li.ProductID)
		}
		p, err := s.Catalog.GetProduct(ctx, li.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			// Missing and inactive products fail the same way here.
			return CreateResult{}, fmt.Errorf("%w: %s", catalog.ErrUnavailable, li.ProductID)
		}
		if err != nil {
			return CreateResult{}, err
		}
		if !p.IsActive {
			return CreateResult{}, fmt.Errorf("%w: %s", catalog.ErrUnavailable, p.Name)
		}
		stock, err := p.SizeStockOf(li.Size)
		if err != nil {
			return CreateResult{}, fmt.Errorf("%w: %s size %s", err, p.Name, li.Size)
		}
		// Advisory check; the transaction below is authoritative.
		if !stock.Covers(li.Quantity) {
			return CreateResult{}, fmt.Errorf("%w: %s size %s", catalog.ErrInsufficientStock, p.Name, li.Size)
		}

		item := Item{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   li.Quantity,
			Size:       li.Size,
			Color:      li.Color,
		}
		if len(p.Images) > 0 {
			item.ImageURL = p.Images[0].URL
		}
		items = append(items, item)
		subtotal += p.PriceCents * int64(li.Quantity)
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Pricing:         ComputePricing(subtotal),
		Payment:         Payment{Method: in.PaymentMethod, Status: PaymentPending},
		Status:          StatusPending,
		Timeline:        []TimelineEntry{{Status: StatusPending, Note: "Order placed", At: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	owner := cart.ForUser(in.UserID)
	if err := s.Store.CreateOrder(ctx, o, &owner); err != nil {
		return CreateResult{}, err
	}

	s.Events.OrderCreated(o, in.TraceID)
	return CreateResult{OrderID: o.ID, TotalCents: o.Pricing.TotalCents, Status: o.Status}, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*Order, error) {
	return s.Store.GetOrder(ctx, id, userID)
}

// GetAny is the privileged read: no owner scope.
func (s *Service) GetAny(ctx context.Context, id string) (*Order, error) {
	return s.Store.GetOrderAny(ctx, id)
}

func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.Store.ListOrders(ctx, userID, f)
}

// Cancel is the only path that restores stock. It is reachable from
// pending and processing only.
func (s *Service) Cancel(ctx context.Context, id, userID, trace string) error {
	o, err := s.Store.GetOrder(ctx, id, userID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrInvalidTransition
	}

	entry := TimelineEntry{
		Status: StatusCancelled,
		Note:   "Order cancelled by customer",
		At:     time.Now().UTC(),
	}
	if err := s.Store.CancelOrder(ctx, o, entry); err != nil {
		return err
	}

	s.Events.OrderCancelled(o, trace)
	return nil
}

// UpdateStatus is the privileged path. It validates the status value but
// intentionally bypasses the transition graph: any status may follow any
// other, matching the admin surface this replaces. Cancel keeps the strict
// graph.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status, note, trace string) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.Store.GetOrderAny(ctx, id)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if note == "" {
		note = fmt.Sprintf("Order status updated to %s", to)
	}
	entry := TimelineEntry{Status: to, Note: note, At: time.Now().UTC()}
	if err := s.Store.UpdateStatus(ctx, o, entry); err != nil {
		return nil, err
	}

	s.Events.StatusChangedTo(o, from, note, trace)
	return o, nil
}
