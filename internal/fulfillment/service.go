package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/eightstore/commerce/internal/kafka"
	"github.com/eightstore/commerce/internal/order"
	"github.com/eightstore/commerce/internal/redisx"
)

// Service confirms freshly placed orders: it consumes order.created and
// advances pending orders to processing through the privileged status path.
type Service struct {
	Orders *order.Service
	Redis  *redis.Client
	Name   string
	Log    zerolog.Logger
}

// HandleOrderCreated is installed as the consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env order.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != order.EventOrderCreated {
		return nil
	}

	// Dedup on event id; redelivery is normal with manual commits.
	dkey := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[order.CreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	o, err := s.Orders.GetAny(ctx, p.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		s.Log.Warn().Str("order_id", p.OrderID).Msg("order.created for unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status != order.StatusPending {
		return nil // already advanced or cancelled
	}

	if _, err := s.Orders.UpdateStatus(ctx, p.OrderID, order.StatusProcessing, "Order confirmed", env.TraceID); err != nil {
		return err
	}
	s.Log.Info().Str("order_id", p.OrderID).Msg("order confirmed")
	return nil
}
