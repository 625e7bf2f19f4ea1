package lot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested lot could not be located.
var ErrNotFound = errors.New("lot not found")

// Row is a lot record as persisted.
type Row struct {
	ID            pgtype.UUID
	Title         string
	Slug          string
	Status        string
	CommissionPct pgtype.Float8
	ClosesAt      pgtype.Timestamptz
	CreatedAt     time.Time
}

// ProductRow is a product inside a lot together with the aggregated confirmed
// units for that product (sum of non-cancelled order item quantities).
type ProductRow struct {
	ID             pgtype.UUID
	LotID          pgtype.UUID
	Title          string
	RefCode        string
	BasePrice      float64
	AdditionalPct  pgtype.Float8
	MaxUnits       pgtype.Int4
	ImageURL       pgtype.Text
	ConfirmedUnits int
}

// Store issues lot catalog queries against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const confirmedUnitsJoin = `
LEFT JOIN (
    SELECT oi.lot_product_id, SUM(oi.qty)::int AS units
    FROM order_items oi
    JOIN orders o ON o.id = oi.order_id
    WHERE o.status <> 'CANCELLED'
    GROUP BY oi.lot_product_id
) c ON c.lot_product_id = p.id`

// ListOpen returns open lots ordered by closing date.
func (s *Store) ListOpen(ctx context.Context, limit, offset int32) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, slug, status, commission_pct, closes_at, created_at
		FROM lots
		WHERE status = 'OPEN'
		ORDER BY closes_at NULLS LAST, created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Title, &r.Slug, &r.Status, &r.CommissionPct, &r.ClosesAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountOpen returns the number of open lots.
func (s *Store) CountOpen(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lots WHERE status = 'OPEN'`).Scan(&total)
	return total, err
}

// GetBySlug loads a single lot.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Row, error) {
	var r Row
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, slug, status, commission_pct, closes_at, created_at
		FROM lots WHERE slug = $1`, slug).
		Scan(&r.ID, &r.Title, &r.Slug, &r.Status, &r.CommissionPct, &r.ClosesAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, err
	}
	return r, nil
}

// GetByID loads a single lot by identifier.
func (s *Store) GetByID(ctx context.Context, id pgtype.UUID) (Row, error) {
	var r Row
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, slug, status, commission_pct, closes_at, created_at
		FROM lots WHERE id = $1`, id).
		Scan(&r.ID, &r.Title, &r.Slug, &r.Status, &r.CommissionPct, &r.ClosesAt, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, err
	}
	return r, nil
}

// ListProducts returns the products of a lot with confirmed units already
// aggregated so availability is a pure derivation downstream.
func (s *Store) ListProducts(ctx context.Context, lotID pgtype.UUID) ([]ProductRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.lot_id, p.title, p.ref_code, p.base_price, p.additional_pct,
		       p.max_units, p.image_url, COALESCE(c.units, 0)
		FROM lot_products p`+confirmedUnitsJoin+`
		WHERE p.lot_id = $1
		ORDER BY p.title`, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.LotID, &p.Title, &p.RefCode, &p.BasePrice, &p.AdditionalPct,
			&p.MaxUnits, &p.ImageURL, &p.ConfirmedUnits); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct loads one lot product with its confirmed units.
func (s *Store) GetProduct(ctx context.Context, id pgtype.UUID) (ProductRow, error) {
	var p ProductRow
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.lot_id, p.title, p.ref_code, p.base_price, p.additional_pct,
		       p.max_units, p.image_url, COALESCE(c.units, 0)
		FROM lot_products p`+confirmedUnitsJoin+`
		WHERE p.id = $1`, id).
		Scan(&p.ID, &p.LotID, &p.Title, &p.RefCode, &p.BasePrice, &p.AdditionalPct,
			&p.MaxUnits, &p.ImageURL, &p.ConfirmedUnits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductRow{}, ErrNotFound
		}
		return ProductRow{}, err
	}
	return p, nil
}
