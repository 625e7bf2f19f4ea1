package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order not found")

// OrderRow is a romaneio header as persisted.
type OrderRow struct {
	ID            pgtype.UUID
	LotID         pgtype.UUID
	CustomerName  string
	CustomerPhone pgtype.Text
	Status        string
	Subtotal      float64
	Fee           float64
	Total         float64
	PixTxID       string
	CreatedAt     time.Time
}

// OrderItemRow is a single romaneio line.
type OrderItemRow struct {
	ID           pgtype.UUID
	OrderID      pgtype.UUID
	LotProductID pgtype.UUID
	Title        string
	Qty          int32
	UnitPrice    float64
	Subtotal     float64
}

// Store persists orders and their lines.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateOrder inserts the order header and its items in one transaction and
// returns the header with generated identifiers filled in.
func (s *Store) CreateOrder(ctx context.Context, order OrderRow, items []OrderItemRow) (OrderRow, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderRow{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (lot_id, customer_name, customer_phone, status, subtotal, fee, total, pix_tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		order.LotID, order.CustomerName, order.CustomerPhone, order.Status,
		order.Subtotal, order.Fee, order.Total, order.PixTxID).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return OrderRow{}, err
	}
	for _, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, lot_product_id, title, qty, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.LotProductID, item.Title, item.Qty, item.UnitPrice, item.Subtotal)
		if err != nil {
			return OrderRow{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return OrderRow{}, err
	}
	return order, nil
}

// GetOrder loads an order header.
func (s *Store) GetOrder(ctx context.Context, id pgtype.UUID) (OrderRow, error) {
	var o OrderRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, lot_id, customer_name, customer_phone, status, subtotal, fee, total, pix_tx_id, created_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.LotID, &o.CustomerName, &o.CustomerPhone, &o.Status,
			&o.Subtotal, &o.Fee, &o.Total, &o.PixTxID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRow{}, ErrNotFound
		}
		return OrderRow{}, err
	}
	return o, nil
}

// GetOrderByTxID loads an order header by its PIX transaction id. Webhook
// settlement resolves orders this way because providers echo the txid back
// as the external reference.
func (s *Store) GetOrderByTxID(ctx context.Context, txID string) (OrderRow, error) {
	var o OrderRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, lot_id, customer_name, customer_phone, status, subtotal, fee, total, pix_tx_id, created_at
		FROM orders WHERE pix_tx_id = $1`, txID).
		Scan(&o.ID, &o.LotID, &o.CustomerName, &o.CustomerPhone, &o.Status,
			&o.Subtotal, &o.Fee, &o.Total, &o.PixTxID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRow{}, ErrNotFound
		}
		return OrderRow{}, err
	}
	return o, nil
}

// MarkPaid settles a pending order. It reports whether a row transitioned,
// so replayed webhooks are detected by the caller.
func (s *Store) MarkPaid(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = 'PAID', paid_at = now()
		WHERE id = $1 AND status = 'PENDING'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves a pending order to a terminal failure state.
func (s *Store) MarkFailed(ctx context.Context, id pgtype.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $2
		WHERE id = $1 AND status = 'PENDING'`, id, status)
	return err
}
