package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/eightstore/commerce/internal/kafka"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
	EventStatusChanged  = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type CreatedPayload struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
}

type CancelledPayload struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	Restored []ItemQty `json:"restored"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Note    string `json:"note,omitempty"`
}

// Publisher is what the async Kafka producer exposes.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Emitter fans order lifecycle events out to per-topic producers. A nil
// Emitter, or a nil producer for a topic, drops the event.
type Emitter struct {
	Service       string
	Created       Publisher
	Cancelled     Publisher
	StatusChanged Publisher
}

func (e *Emitter) OrderCreated(o *Order, trace string) {
	if e == nil || e.Created == nil {
		return
	}
	e.emit(e.Created, EventOrderCreated, o.ID, trace, CreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      itemQtys(o.Items),
		TotalCents: o.Pricing.TotalCents,
	})
}

func (e *Emitter) OrderCancelled(o *Order, trace string) {
	if e == nil || e.Cancelled == nil {
		return
	}
	e.emit(e.Cancelled, EventOrderCancelled, o.ID, trace, CancelledPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Restored: itemQtys(o.Items),
	})
}

func (e *Emitter) StatusChangedTo(o *Order, from Status, note, trace string) {
	if e == nil || e.StatusChanged == nil {
		return
	}
	e.emit(e.StatusChanged, EventStatusChanged, o.ID, trace, StatusChangedPayload{
		OrderID: o.ID,
		From:    from,
		To:      o.Status,
		Note:    note,
	})
}

func (e *Emitter) emit(p Publisher, eventType, orderID, trace string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func itemQtys(items []Item) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, Size: it.Size, Qty: it.Quantity})
	}
	return out
}
