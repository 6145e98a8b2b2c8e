package cart

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes carts past their expiry on an interval. Expiry itself is
// passive; nothing else in the engine consults expires_at.
type Sweeper struct {
	Store    Store
	Interval time.Duration
	Log      zerolog.Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Store.DeleteExpired(ctx, now)
			if err != nil {
				s.Log.Error().Err(err).Msg("cart sweep failed")
				continue
			}
			if n > 0 {
				s.Log.Info().Int64("removed", n).Msg("expired carts swept")
			}
		}
	}
}
