package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, f ListFilter) ([]Product, int, error)
	FeaturedProducts(ctx context.Context, limit int) ([]Product, error)
	CategoryCounts(ctx context.Context) ([]CategoryCount, error)

	// DecrementStock is a conditional atomic decrement: it fails with
	// ErrInsufficientStock instead of driving stock negative.
	DecrementStock(ctx context.Context, productID, size string, qty int) error
	// IncrementStock restores stock (order cancellation). Best-effort:
	// unlimited sizes are left untouched.
	IncrementStock(ctx context.Context, productID, size string, qty int) error

	AddReview(ctx context.Context, r Review) error
}

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so stock mutations can run standalone or inside a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DecrementSizeStock decrements a size's stock only if enough remains.
// A NULL (unlimited) stock stays NULL: NULL - qty is NULL in SQL.
func DecrementSizeStock(ctx context.Context, q Querier, productID, size string, qty int) error {
	ct, err := q.Exec(ctx, `
		UPDATE product_sizes
		SET stock = stock - $3
		WHERE product_id = $1 AND size = $2 AND (stock IS NULL OR stock >= $3)`,
		productID, size, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing size from a shortage.
	var n *int32
	err = q.QueryRow(ctx, `SELECT stock FROM product_sizes WHERE product_id=$1 AND size=$2`,
		productID, size).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSizeUnavailable
	}
	if err != nil {
		return err
	}
	return ErrInsufficientStock
}

func IncrementSizeStock(ctx context.Context, q Querier, productID, size string, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE product_sizes
		SET stock = stock + $3
		WHERE product_id = $1 AND size = $2 AND stock IS NOT NULL`,
		productID, size, qty)
	return err
}
