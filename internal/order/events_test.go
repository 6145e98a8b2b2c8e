package order

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightstore/commerce/internal/catalog"
	kafkax "github.com/eightstore/commerce/internal/kafka"
)

type capturedEvent struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type capturePublisher struct {
	events []capturedEvent
}

func (c *capturePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	c.events = append(c.events, capturedEvent{key: key, value: value, headers: headers})
}

func (c *capturePublisher) last(t *testing.T) (Envelope, capturedEvent) {
	t.Helper()
	require.NotEmpty(t, c.events)
	ev := c.events[len(c.events)-1]
	var env Envelope
	require.NoError(t, json.Unmarshal(ev.value, &env))
	return env, ev
}

func TestLifecycleEvents(t *testing.T) {
	b := newBackend(testProduct("p1", 1000, catalog.SizeStock{Size: "M", Stock: catalog.Limited(10)}))
	created := &capturePublisher{}
	cancelled := &capturePublisher{}
	changed := &capturePublisher{}
	svc := &Service{
		Catalog: b,
		Store:   b,
		Events: &Emitter{
			Service:       "commerce-api-test",
			Created:       created,
			Cancelled:     cancelled,
			StatusChanged: changed,
		},
	}
	ctx := context.Background()

	res, err := svc.Create(ctx, validInput("u1", LineInput{ProductID: "p1", Quantity: 2, Size: "M"}))
	require.NoError(t, err)

	env, raw := created.last(t)
	assert.Equal(t, EventOrderCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "commerce-api-test", env.Producer)
	assert.Equal(t, res.OrderID, env.CorrelationID)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, PartitionKey(res.OrderID), raw.key)

	p, err := kafkax.UnwrapPayload[CreatedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, p.OrderID)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, res.TotalCents, p.TotalCents)
	require.Len(t, p.Items, 1)
	assert.Equal(t, ItemQty{ProductID: "p1", Size: "M", Qty: 2}, p.Items[0])

	_, err = svc.UpdateStatus(ctx, res.OrderID, StatusShipped, "Left the warehouse", "trace-1")
	require.NoError(t, err)

	env, _ = changed.last(t)
	assert.Equal(t, EventStatusChanged, env.EventType)
	assert.Equal(t, "trace-1", env.TraceID)
	sp, err := kafkax.UnwrapPayload[StatusChangedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sp.From)
	assert.Equal(t, StatusShipped, sp.To)
	assert.Equal(t, "Left the warehouse", sp.Note)

	// shipped blocks cancel, so no cancelled event either
	require.Error(t, svc.Cancel(ctx, res.OrderID, "u1", ""))
	assert.Empty(t, cancelled.events)

	res2, err := svc.Create(ctx, validInput("u1", LineInput{ProductID: "p1", Quantity: 1, Size: "M"}))
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, res2.OrderID, "u1", ""))

	env, _ = cancelled.last(t)
	assert.Equal(t, EventOrderCancelled, env.EventType)
	cp, err := kafkax.UnwrapPayload[CancelledPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, res2.OrderID, cp.OrderID)
	require.Len(t, cp.Restored, 1)
	assert.Equal(t, 1, cp.Restored[0].Qty)
}

func TestEmitter_NilIsSilent(t *testing.T) {
	var e *Emitter
	o := &Order{ID: "o1", Status: StatusPending}
	e.OrderCreated(o, "")
	e.OrderCancelled(o, "")
	e.StatusChangedTo(o, StatusPending, "", "")

	// a topic without a producer drops the event rather than panicking
	half := &Emitter{Service: "t", Created: &capturePublisher{}}
	half.OrderCancelled(o, "")
	half.StatusChangedTo(o, StatusPending, "", "")
}
