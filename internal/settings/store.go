package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumapratas/backend-luma/internal/fee"
	"github.com/lumapratas/backend-luma/internal/pix"
)

// Keys of the integration settings this service reads and writes.
const (
	KeyPixBeneficiary = "pix.beneficiary"
	KeyFeeTiers       = "checkout.fee_tiers"
)

// ErrNotFound indicates the requested setting has never been saved.
var ErrNotFound = errors.New("setting not found")

// Store persists integration settings as key/value rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the raw value for a settings key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM integration_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set upserts the value for a settings key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO integration_settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}

// PixBeneficiary loads the configured PIX beneficiary. The fallback is used
// when no record exists, so a fresh deployment can run from environment
// configuration alone.
func (s *Store) PixBeneficiary(ctx context.Context, fallback pix.Beneficiary) (pix.Beneficiary, error) {
	raw, err := s.Get(ctx, KeyPixBeneficiary)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fallback, nil
		}
		return pix.Beneficiary{}, err
	}
	var b pix.Beneficiary
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return pix.Beneficiary{}, err
	}
	if !b.Configured() {
		return fallback, nil
	}
	return b, nil
}

// SetPixBeneficiary stores the PIX beneficiary record.
func (s *Store) SetPixBeneficiary(ctx context.Context, b pix.Beneficiary) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyPixBeneficiary, string(data))
}

// FeeTiers loads the dynamic fee table from its editable text form. A missing
// record falls back to the provided default text.
func (s *Store) FeeTiers(ctx context.Context, fallbackText string) ([]fee.Tier, error) {
	raw, err := s.Get(ctx, KeyFeeTiers)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fee.Parse(fallbackText), nil
		}
		return nil, err
	}
	return fee.Parse(raw), nil
}

// FeeTiersText returns the stored tier table text without parsing.
func (s *Store) FeeTiersText(ctx context.Context, fallbackText string) (string, error) {
	raw, err := s.Get(ctx, KeyFeeTiers)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return strings.TrimSpace(fallbackText), nil
		}
		return "", err
	}
	return raw, nil
}

// SetFeeTiersText stores the tier table text as edited by the admin.
func (s *Store) SetFeeTiersText(ctx context.Context, text string) error {
	return s.Set(ctx, KeyFeeTiers, text)
}
