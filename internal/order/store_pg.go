package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eightstore/commerce/internal/cart"
	"github.com/eightstore/commerce/internal/catalog"
)

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) CreateOrder(ctx context.Context, o *Order, clear *cart.Identity) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, payment_method, payment_status,
			subtotal_cents, shipping_cents, tax_cents, total_cents,
			shipping_address, billing_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		o.ID, o.UserID, o.Status, o.Payment.Method, o.Payment.Status,
		o.Pricing.SubtotalCents, o.Pricing.ShippingCents, o.Pricing.TaxCents, o.Pricing.TotalCents,
		string(shipping), string(billing), o.CreatedAt)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, name, price_cents, quantity, size, color_name, color_hex, image_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			o.ID, i, it.ProductID, it.Name, it.PriceCents, it.Quantity, it.Size, it.Color.Name, it.Color.Hex, it.ImageURL)
		if err != nil {
			return err
		}

		// Conditional decrement; a shortage here rolls back every prior
		// line's decrement along with the order rows.
		if err := catalog.DecrementSizeStock(ctx, tx, it.ProductID, it.Size, it.Quantity); err != nil {
			return fmt.Errorf("%w: %s size %s", err, it.Name, it.Size)
		}
	}

	for i, e := range o.Timeline {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_timeline(order_id, position, status, note, created_at)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, i, e.Status, e.Note, e.At)
		if err != nil {
			return err
		}
	}

	if clear != nil && clear.Valid() {
		_, err := tx.Exec(ctx, `
			DELETE FROM cart_items WHERE cart_id IN (
				SELECT id FROM carts
				WHERE ($1 <> '' AND user_id = $1) OR ($2 <> '' AND session_id = $2))`,
			clear.UserID, clear.SessionID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, user_id, status, payment_method, payment_status,
	subtotal_cents, shipping_cents, tax_cents, total_cents,
	shipping_address, billing_address, created_at, updated_at`

func (s *PGStore) GetOrder(ctx context.Context, id, userID string) (*Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID)
	return s.loadOrder(ctx, row)
}

func (s *PGStore) GetOrderAny(ctx context.Context, id string) (*Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return s.loadOrder(ctx, row)
}

func (s *PGStore) loadOrder(ctx context.Context, row pgx.Row) (*Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	if err := s.loadTimeline(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var shipping, billing []byte
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Payment.Method, &o.Payment.Status,
		&o.Pricing.SubtotalCents, &o.Pricing.ShippingCents, &o.Pricing.TaxCents, &o.Pricing.TotalCents,
		&shipping, &billing, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) loadItems(ctx context.Context, o *Order) error {
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, name, price_cents, quantity, size, color_name, color_hex, image_url
		FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.PriceCents, &it.Quantity,
			&it.Size, &it.Color.Name, &it.Color.Hex, &it.ImageURL); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (s *PGStore) loadTimeline(ctx context.Context, o *Order) error {
	rows, err := s.DB.Query(ctx, `
		SELECT status, note, created_at
		FROM order_timeline WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.Status, &e.Note, &e.At); err != nil {
			return err
		}
		o.Timeline = append(o.Timeline, e)
	}
	return rows.Err()
}

func (s *PGStore) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, int, error) {
	cond := `user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		cond += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if err := s.loadItems(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
		if err := s.loadTimeline(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *PGStore) CancelOrder(ctx context.Context, o *Order, entry TimelineEntry) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Guard against a concurrent transition out of a cancellable state.
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status IN ('pending','processing')`,
		o.ID, StatusCancelled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_timeline(order_id, position, status, note, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(position),0)+1 FROM order_timeline WHERE order_id=$1), $2, $3, $4)`,
		o.ID, entry.Status, entry.Note, entry.At)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if err := catalog.IncrementSizeStock(ctx, tx, it.ProductID, it.Size, it.Quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.Status = StatusCancelled
	o.Timeline = append(o.Timeline, entry)
	return nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, o *Order, entry TimelineEntry) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		o.ID, entry.Status); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_timeline(order_id, position, status, note, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(position),0)+1 FROM order_timeline WHERE order_id=$1), $2, $3, $4)`,
		o.ID, entry.Status, entry.Note, entry.At)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.Status = entry.Status
	o.Timeline = append(o.Timeline, entry)
	return nil
}
