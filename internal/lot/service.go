package lot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lumapratas/backend-luma/internal/common"
	"github.com/lumapratas/backend-luma/internal/obs"
	"github.com/lumapratas/backend-luma/internal/pricing"
)

// Querier abstracts the lot store for the catalog service.
type Querier interface {
	ListOpen(ctx context.Context, limit, offset int32) ([]Row, error)
	CountOpen(ctx context.Context) (int64, error)
	GetBySlug(ctx context.Context, slug string) (Row, error)
	ListProducts(ctx context.Context, lotID pgtype.UUID) ([]ProductRow, error)
}

// Service assembles the public lot catalog: lots, their products with
// customer-facing prices, and derived availability.
type Service struct {
	Store Querier
	Cache *Cache
	// DefaultCommissionPct applies when a lot carries no commission of its
	// own. Zero means no markup fallback.
	DefaultCommissionPct float64
	DefaultPerPage       int
	MaxPerPage           int
}

// Summary is the public list representation of a lot.
type Summary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Status        string     `json:"status"`
	CommissionPct *float64   `json:"commissionPct,omitempty"`
	ClosesAt      *time.Time `json:"closesAt,omitempty"`
}

// Product is the public representation of a product within a lot. Available
// is nil when the supplier maximum is not tracked (unlimited).
type Product struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	RefCode      string  `json:"refCode"`
	ImageURL     *string `json:"imageUrl,omitempty"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"priceDisplay"`
	Available    *int    `json:"available"`
	SoldOut      bool    `json:"soldOut"`
}

// Detail aggregates a lot with its purchasable products.
type Detail struct {
	Summary
	Products []Product `json:"products"`
}

// ListResult carries list data plus pagination metadata.
type ListResult struct {
	Items []Summary
	Total int64
	Page  int
	Limit int
}

// ListOpen returns open lots ordered by closing date.
func (s *Service) ListOpen(ctx context.Context, page, perPage int) (ListResult, error) {
	if s == nil || s.Store == nil {
		return ListResult{}, errors.New("lot service not configured")
	}
	if page < 1 {
		page = 1
	}
	perPage = s.clampPerPage(perPage)

	useCache := page == 1 && perPage == s.defaultPerPage()
	if useCache {
		var cached ListResult
		if ok, err := s.Cache.GetJSON(ctx, listCacheKey(), &cached); err == nil && ok {
			cached.Page = page
			cached.Limit = perPage
			return cached, nil
		}
	}

	total, err := s.Store.CountOpen(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("count lots: %w", err)
	}
	offset := int32((page - 1) * perPage)
	rows, err := s.Store.ListOpen(ctx, int32(perPage), offset)
	if err != nil {
		return ListResult{}, fmt.Errorf("list lots: %w", err)
	}
	items := make([]Summary, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.summary(row))
	}
	result := ListResult{Items: items, Total: total, Page: page, Limit: perPage}
	if useCache {
		_ = s.Cache.SetJSON(ctx, listCacheKey(), result)
	}
	return result, nil
}

// GetDetail returns a lot with its products priced and availability derived.
func (s *Service) GetDetail(ctx context.Context, slug string) (Detail, error) {
	if s == nil || s.Store == nil {
		return Detail{}, errors.New("lot service not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Detail{}, &common.AppError{Code: "BAD_REQUEST", Message: "slug is required", HTTPStatus: http.StatusBadRequest}
	}
	cacheKey := detailCacheKey(slug)
	var cached Detail
	if ok, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		countCacheSource("cache")
		return cached, nil
	}
	countCacheSource("store")

	row, err := s.Store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, &common.AppError{Code: "NOT_FOUND", Message: "lot not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Detail{}, fmt.Errorf("get lot by slug: %w", err)
	}
	products, err := s.Store.ListProducts(ctx, row.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list lot products: %w", err)
	}
	detail := Detail{Summary: s.summary(row)}
	commission := s.effectiveCommission(row)
	detail.Products = make([]Product, 0, len(products))
	for _, p := range products {
		detail.Products = append(detail.Products, buildProduct(p, commission))
	}
	_ = s.Cache.SetJSON(ctx, cacheKey, detail)
	return detail, nil
}

// InvalidateDetail drops the cached detail payload for a lot slug.
func (s *Service) InvalidateDetail(ctx context.Context, slug string) {
	if s == nil {
		return
	}
	_ = s.Cache.Invalidate(ctx, detailCacheKey(slug), listCacheKey())
}

func (s *Service) summary(row Row) Summary {
	out := Summary{
		ID:     UUIDString(row.ID),
		Title:  row.Title,
		Slug:   row.Slug,
		Status: row.Status,
	}
	if row.CommissionPct.Valid {
		pct := row.CommissionPct.Float64
		out.CommissionPct = &pct
	}
	if row.ClosesAt.Valid {
		closes := row.ClosesAt.Time
		out.ClosesAt = &closes
	}
	return out
}

// effectiveCommission resolves the markup applied to every product of the
// lot: the lot's own percentage when present, the configured default
// otherwise, nil when neither is set.
func (s *Service) effectiveCommission(row Row) *float64 {
	if row.CommissionPct.Valid {
		pct := row.CommissionPct.Float64
		return &pct
	}
	if s.DefaultCommissionPct > 0 {
		pct := s.DefaultCommissionPct
		return &pct
	}
	return nil
}

func buildProduct(p ProductRow, commission *float64) Product {
	var pcts []float64
	if p.AdditionalPct.Valid {
		pcts = append(pcts, p.AdditionalPct.Float64)
	}
	if commission != nil {
		pcts = append(pcts, *commission)
	}
	price := pricing.ComposeMarkups(p.BasePrice, pcts...)
	maxUnits := 0
	if p.MaxUnits.Valid {
		maxUnits = int(p.MaxUnits.Int32)
	}
	out := Product{
		ID:           UUIDString(p.ID),
		Title:        p.Title,
		RefCode:      p.RefCode,
		Price:        price,
		PriceDisplay: pricing.FormatBRL(price),
		Available:    DisplayAvailability(maxUnits, p.ConfirmedUnits),
		SoldOut:      IsSoldOut(maxUnits, p.ConfirmedUnits),
	}
	if p.ImageURL.Valid {
		img := p.ImageURL.String
		out.ImageURL = &img
	}
	return out
}

func (s *Service) defaultPerPage() int {
	if s == nil || s.DefaultPerPage < 1 {
		return 20
	}
	return s.DefaultPerPage
}

func (s *Service) clampPerPage(perPage int) int {
	if perPage < 1 {
		perPage = s.defaultPerPage()
	}
	max := s.MaxPerPage
	if max < 1 {
		max = 100
	}
	if perPage > max {
		perPage = max
	}
	return perPage
}

func countCacheSource(source string) {
	if obs.LotCacheHits != nil {
		obs.LotCacheHits.WithLabelValues(source).Inc()
	}
}

// ToUUID converts a string UUID into pgtype.UUID.
func ToUUID(value string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// UUIDString converts a pgtype.UUID into its canonical string form.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
