package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	DB *pgxpool.Pool
	// TTL is the rolling expiry window; every Save pushes expires_at out
	// by this much.
	TTL time.Duration
}

func (s *PGStore) Load(ctx context.Context, id Identity) (*Cart, error) {
	if !id.Valid() {
		return nil, ErrInvalidIdentity
	}

	var row pgx.Row
	const cols = `id, COALESCE(user_id, ''), COALESCE(session_id, ''), created_at, updated_at, expires_at`
	if id.UserID != "" {
		row = s.DB.QueryRow(ctx, `SELECT `+cols+` FROM carts WHERE user_id=$1`, id.UserID)
	} else {
		row = s.DB.QueryRow(ctx, `SELECT `+cols+` FROM carts WHERE session_id=$1`, id.SessionID)
	}

	var c Cart
	err := row.Scan(&c.ID, &c.Identity.UserID, &c.Identity.SessionID,
		&c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, quantity, size, color_name, color_hex, price_cents
		FROM cart_items WHERE cart_id=$1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Size, &l.Color.Name, &l.Color.Hex, &l.PriceCents); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, l)
	}
	return &c, rows.Err()
}

func (s *PGStore) Save(ctx context.Context, c *Cart) error {
	if !c.Identity.Valid() {
		return ErrInvalidIdentity
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.ExpiresAt = time.Now().Add(s.TTL)

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO carts(id, user_id, session_id, expires_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4)
		ON CONFLICT (id) DO UPDATE
		SET updated_at = now(), expires_at = EXCLUDED.expires_at`,
		c.ID, c.Identity.UserID, c.Identity.SessionID, c.ExpiresAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, c.ID); err != nil {
		return err
	}
	for i, l := range c.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO cart_items(cart_id, position, product_id, quantity, size, color_name, color_hex, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ID, i, l.ProductID, l.Quantity, l.Size, l.Color.Name, l.Color.Hex, l.PriceCents)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.DB.Exec(ctx, `DELETE FROM carts WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
