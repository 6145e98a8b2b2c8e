package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct{ DB *pgxpool.Pool }

const productColumns = `id, name, description, price_cents, original_price_cents, category,
	subcategory, image_url, image_alt, is_active, is_featured,
	rating_average, rating_count, created_at, updated_at`

func (s *PGStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadVariants(ctx, []*Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PGStore) ListProducts(ctx context.Context, f ListFilter) ([]Product, int, error) {
	where := []string{"is_active"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.MinPriceCents > 0 {
		where = append(where, "price_cents >= "+arg(f.MinPriceCents))
	}
	if f.MaxPriceCents > 0 {
		where = append(where, "price_cents <= "+arg(f.MaxPriceCents))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if f.FeaturedOnly {
		where = append(where, "is_featured")
	}
	if f.InStockOnly {
		where = append(where, `EXISTS (
			SELECT 1 FROM product_sizes ps
			WHERE ps.product_id = products.id AND (ps.stock IS NULL OR ps.stock > 0))`)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := sortColumn(f.Sort)
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 12
	}
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		productColumns, cond, order, dir, arg(limit), arg(offset))
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := s.loadVariantsFor(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func sortColumn(s string) string {
	switch s {
	case "price":
		return "price_cents"
	case "name":
		return "name"
	case "rating":
		return "rating_average"
	default:
		return "created_at"
	}
}

func (s *PGStore) FeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 8
	}
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+`
		FROM products WHERE is_active AND is_featured
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadVariantsFor(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.DB.Query(ctx, `SELECT category, COUNT(*)
		FROM products WHERE is_active
		GROUP BY category ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) DecrementStock(ctx context.Context, productID, size string, qty int) error {
	return DecrementSizeStock(ctx, s.DB, productID, size, qty)
}

func (s *PGStore) IncrementStock(ctx context.Context, productID, size string, qty int) error {
	return IncrementSizeStock(ctx, s.DB, productID, size, qty)
}

func (s *PGStore) AddReview(ctx context.Context, r Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, r.ProductID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO product_reviews(product_id, user_id, rating, comment)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (product_id, user_id) DO NOTHING`,
		r.ProductID, r.UserID, r.Rating, r.Comment)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrDuplicateReview
	}

	_, err = tx.Exec(ctx, `
		UPDATE products SET
			rating_average = agg.avg,
			rating_count   = agg.cnt,
			updated_at     = now()
		FROM (
			SELECT AVG(rating)::float8 AS avg, COUNT(*) AS cnt
			FROM product_reviews WHERE product_id = $1
		) agg
		WHERE id = $1`, r.ProductID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var imageURL, imageAlt *string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.OriginalPriceCents,
		&p.Category, &p.Subcategory, &imageURL, &imageAlt, &p.IsActive, &p.IsFeatured,
		&p.Rating.Average, &p.Rating.Count, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL != nil {
		alt := p.Name
		if imageAlt != nil {
			alt = *imageAlt
		}
		p.Images = []Image{{URL: *imageURL, Alt: alt}}
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PGStore) loadVariantsFor(ctx context.Context, ps []Product) error {
	refs := make([]*Product, len(ps))
	for i := range ps {
		refs[i] = &ps[i]
	}
	return s.loadVariants(ctx, refs)
}

func (s *PGStore) loadVariants(ctx context.Context, ps []*Product) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]string, 0, len(ps))
	byID := make(map[string]*Product, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := s.DB.Query(ctx, `SELECT product_id, size, stock
		FROM product_sizes WHERE product_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var pid, size string
		var n *int32
		if err := rows.Scan(&pid, &size, &n); err != nil {
			rows.Close()
			return err
		}
		if p := byID[pid]; p != nil {
			p.Sizes = append(p.Sizes, SizeStock{Size: size, Stock: stockFrom(n)})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.DB.Query(ctx, `SELECT product_id, name, hex, stock
		FROM product_colors WHERE product_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pid, name, hex string
		var n *int32
		if err := rows.Scan(&pid, &name, &hex, &n); err != nil {
			return err
		}
		if p := byID[pid]; p != nil {
			p.Colors = append(p.Colors, ColorStock{Name: name, Hex: hex, Stock: stockFrom(n)})
		}
	}
	return rows.Err()
}
