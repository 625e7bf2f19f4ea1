package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lumapratas/backend-luma/internal/common"
	"github.com/lumapratas/backend-luma/internal/fee"
	"github.com/lumapratas/backend-luma/internal/lot"
	"github.com/lumapratas/backend-luma/internal/obs"
	"github.com/lumapratas/backend-luma/internal/pix"
	"github.com/lumapratas/backend-luma/internal/pricing"
)

// OrderStore persists romaneios.
type OrderStore interface {
	CreateOrder(ctx context.Context, order OrderRow, items []OrderItemRow) (OrderRow, error)
	GetOrder(ctx context.Context, id pgtype.UUID) (OrderRow, error)
}

// LotReader loads lot and product records for quoting.
type LotReader interface {
	GetByID(ctx context.Context, id pgtype.UUID) (lot.Row, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (lot.ProductRow, error)
}

// ConfigSource resolves the fee table and the PIX beneficiary.
type ConfigSource interface {
	FeeTiers(ctx context.Context, fallbackText string) ([]fee.Tier, error)
	PixBeneficiary(ctx context.Context, fallback pix.Beneficiary) (pix.Beneficiary, error)
}

// Service computes quotes and places orders for the storefront.
type Service struct {
	Store    OrderStore
	Lots     LotReader
	Settings ConfigSource
	// DefaultFeeTiers is the tier table text used until an admin saves one.
	DefaultFeeTiers string
	PixFallback     pix.Beneficiary
	// DefaultCommissionPct applies when the lot carries no commission.
	DefaultCommissionPct float64
	Now                  func() time.Time
	// InvalidateLot drops catalog caches after confirmed units change.
	InvalidateLot func(ctx context.Context, slug string)
}

// QuoteItemInput identifies one requested product and quantity.
type QuoteItemInput struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,gte=1"`
}

// QuoteInput is the payload for quote and order requests.
type QuoteInput struct {
	LotID string           `json:"lotId" validate:"required,uuid"`
	Items []QuoteItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderInput extends QuoteInput with customer identification.
type OrderInput struct {
	QuoteInput
	CustomerName  string `json:"customerName" validate:"required,min=2"`
	CustomerPhone string `json:"customerPhone" validate:"omitempty,min=8"`
}

// QuoteItem is one priced line of a quote.
type QuoteItem struct {
	ProductID        string  `json:"productId"`
	Title            string  `json:"title"`
	RefCode          string  `json:"refCode"`
	Qty              int     `json:"qty"`
	UnitPrice        float64 `json:"unitPrice"`
	UnitPriceDisplay string  `json:"unitPriceDisplay"`
	Subtotal         float64 `json:"subtotal"`
}

// Quote aggregates priced lines with the dynamic fee and grand total.
type Quote struct {
	LotID           string      `json:"lotId"`
	Items           []QuoteItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	SubtotalDisplay string      `json:"subtotalDisplay"`
	Fee             float64     `json:"fee"`
	FeeDisplay      string      `json:"feeDisplay"`
	Total           float64     `json:"total"`
	TotalDisplay    string      `json:"totalDisplay"`
}

// PlacedOrder is the result of a successful checkout.
type PlacedOrder struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Quote         Quote  `json:"quote"`
	PixTxID       string `json:"pixTxId"`
	PixCode       string `json:"pixCode,omitempty"`
	PixConfigured bool   `json:"pixConfigured"`
}

// BuildQuote prices the requested items within a lot, resolves the dynamic
// fee from the subtotal, and returns the grand total. Quantities beyond a
// product's remaining availability are rejected.
func (s *Service) BuildQuote(ctx context.Context, in QuoteInput) (Quote, error) {
	if s == nil || s.Lots == nil || s.Settings == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	lotID, err := lot.ToUUID(in.LotID)
	if err != nil {
		return Quote{}, badRequest("lotId", "invalid lot id", err)
	}
	lotRow, err := s.Lots.GetByID(ctx, lotID)
	if err != nil {
		if errors.Is(err, lot.ErrNotFound) {
			return Quote{}, &common.AppError{Code: "NOT_FOUND", Message: "lot not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Quote{}, fmt.Errorf("load lot: %w", err)
	}
	if !strings.EqualFold(lotRow.Status, "OPEN") {
		return Quote{}, &common.AppError{Code: "LOT_CLOSED", Message: "lot is not open for orders", HTTPStatus: http.StatusUnprocessableEntity}
	}
	commission := s.effectiveCommission(lotRow)

	quote := Quote{LotID: in.LotID, Items: make([]QuoteItem, 0, len(in.Items))}
	var subtotal float64
	for _, item := range in.Items {
		productID, err := lot.ToUUID(item.ProductID)
		if err != nil {
			return Quote{}, badRequest("productId", "invalid product id", err)
		}
		product, err := s.Lots.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, lot.ErrNotFound) {
				return Quote{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
			}
			return Quote{}, fmt.Errorf("load product: %w", err)
		}
		if lot.UUIDString(product.LotID) != lot.UUIDString(lotRow.ID) {
			return Quote{}, badRequest("productId", "product does not belong to lot", nil)
		}
		if item.Qty < 1 {
			return Quote{}, badRequest("qty", "qty must be positive", nil)
		}
		maxUnits := 0
		if product.MaxUnits.Valid {
			maxUnits = int(product.MaxUnits.Int32)
		}
		if float64(item.Qty) > lot.Availability(maxUnits, product.ConfirmedUnits) {
			return Quote{}, &common.AppError{
				Code:       "INSUFFICIENT_AVAILABILITY",
				Message:    "requested quantity exceeds remaining capacity",
				HTTPStatus: http.StatusUnprocessableEntity,
				Details: map[string]any{
					"productId": item.ProductID,
					"remaining": lot.DisplayAvailability(maxUnits, product.ConfirmedUnits),
				},
			}
		}

		var pcts []float64
		if product.AdditionalPct.Valid {
			pcts = append(pcts, product.AdditionalPct.Float64)
		}
		if commission != nil {
			pcts = append(pcts, *commission)
		}
		unitPrice := pricing.ComposeMarkups(product.BasePrice, pcts...)
		lineSubtotal := pricing.Round(unitPrice * float64(item.Qty))
		subtotal += lineSubtotal
		quote.Items = append(quote.Items, QuoteItem{
			ProductID:        item.ProductID,
			Title:            product.Title,
			RefCode:          product.RefCode,
			Qty:              item.Qty,
			UnitPrice:        unitPrice,
			UnitPriceDisplay: pricing.FormatBRL(unitPrice),
			Subtotal:         lineSubtotal,
		})
	}

	quote.Subtotal = pricing.Round(subtotal)
	tiers, err := s.Settings.FeeTiers(ctx, s.DefaultFeeTiers)
	if err != nil {
		return Quote{}, fmt.Errorf("load fee tiers: %w", err)
	}
	quote.Fee = fee.Resolve(quote.Subtotal, tiers)
	quote.Total = pricing.Round(quote.Subtotal + quote.Fee)
	quote.SubtotalDisplay = pricing.FormatBRL(quote.Subtotal)
	quote.FeeDisplay = pricing.FormatBRL(quote.Fee)
	quote.TotalDisplay = pricing.FormatBRL(quote.Total)

	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues("ok").Inc()
	}
	return quote, nil
}

// PlaceOrder persists a pending romaneio from a fresh quote and issues the
// PIX payload for its total. A missing PIX configuration does not block the
// order; the response flags it so the storefront can prompt the admin.
func (s *Service) PlaceOrder(ctx context.Context, in OrderInput) (PlacedOrder, error) {
	if s == nil || s.Store == nil {
		return PlacedOrder{}, errors.New("checkout service not configured")
	}
	quote, err := s.BuildQuote(ctx, in.QuoteInput)
	if err != nil {
		return PlacedOrder{}, err
	}
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return PlacedOrder{}, badRequest("customerName", "customer name is required", nil)
	}
	lotID, err := lot.ToUUID(in.LotID)
	if err != nil {
		return PlacedOrder{}, badRequest("lotId", "invalid lot id", err)
	}

	txID := s.newTxID()
	order := OrderRow{
		LotID:        lotID,
		CustomerName: name,
		Status:       "PENDING",
		Subtotal:     quote.Subtotal,
		Fee:          quote.Fee,
		Total:        quote.Total,
		PixTxID:      txID,
	}
	if phone := strings.TrimSpace(in.CustomerPhone); phone != "" {
		order.CustomerPhone = pgtype.Text{String: phone, Valid: true}
	}
	items := make([]OrderItemRow, 0, len(quote.Items))
	for _, qi := range quote.Items {
		productID, err := lot.ToUUID(qi.ProductID)
		if err != nil {
			return PlacedOrder{}, badRequest("productId", "invalid product id", err)
		}
		items = append(items, OrderItemRow{
			LotProductID: productID,
			Title:        qi.Title,
			Qty:          int32(qi.Qty),
			UnitPrice:    qi.UnitPrice,
			Subtotal:     qi.Subtotal,
		})
	}
	created, err := s.Store.CreateOrder(ctx, order, items)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("create order: %w", err)
	}
	if s.InvalidateLot != nil {
		lotRow, lotErr := s.Lots.GetByID(ctx, lotID)
		if lotErr == nil {
			s.InvalidateLot(ctx, lotRow.Slug)
		}
	}

	placed := PlacedOrder{
		OrderID: lot.UUIDString(created.ID),
		Status:  created.Status,
		Quote:   quote,
		PixTxID: txID,
	}
	beneficiary, err := s.Settings.PixBeneficiary(ctx, s.PixFallback)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("load pix beneficiary: %w", err)
	}
	code, err := pix.Generate(quote.Total, beneficiary, txID)
	switch {
	case errors.Is(err, pix.ErrNotConfigured):
		placed.PixConfigured = false
	case err != nil:
		return PlacedOrder{}, fmt.Errorf("generate pix code: %w", err)
	default:
		placed.PixCode = code
		placed.PixConfigured = true
		if obs.PixGeneratedTotal != nil {
			obs.PixGeneratedTotal.Inc()
		}
	}
	return placed, nil
}

// PixForOrder re-issues the PIX payload for a pending order using the stored
// total and transaction id, so re-rendering the code never drifts from the
// original charge.
func (s *Service) PixForOrder(ctx context.Context, orderID string) (string, error) {
	if s == nil || s.Store == nil || s.Settings == nil {
		return "", errors.New("checkout service not configured")
	}
	id, err := lot.ToUUID(orderID)
	if err != nil {
		return "", badRequest("orderId", "invalid order id", err)
	}
	order, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &common.AppError{Code: "NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return "", fmt.Errorf("load order: %w", err)
	}
	if order.Status != "PENDING" {
		return "", &common.AppError{Code: "ORDER_NOT_PENDING", Message: "order is no longer awaiting payment", HTTPStatus: http.StatusConflict}
	}
	beneficiary, err := s.Settings.PixBeneficiary(ctx, s.PixFallback)
	if err != nil {
		return "", fmt.Errorf("load pix beneficiary: %w", err)
	}
	code, err := pix.Generate(order.Total, beneficiary, order.PixTxID)
	if err != nil {
		if errors.Is(err, pix.ErrNotConfigured) {
			return "", &common.AppError{Code: "PIX_NOT_CONFIGURED", Message: "pix beneficiary is not configured", HTTPStatus: http.StatusServiceUnavailable, Err: err}
		}
		return "", fmt.Errorf("generate pix code: %w", err)
	}
	if obs.PixGeneratedTotal != nil {
		obs.PixGeneratedTotal.Inc()
	}
	return code, nil
}

func (s *Service) effectiveCommission(row lot.Row) *float64 {
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

func (s *Service) newTxID() string {
	now := time.Now
	if s != nil && s.Now != nil {
		now = s.Now
	}
	id := fmt.Sprintf("ROM%d", now().UnixMilli())
	if len(id) > 25 {
		id = id[:25]
	}
	return id
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
