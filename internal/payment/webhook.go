package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"

	"github.com/lumapratas/backend-luma/internal/checkout"
	"github.com/lumapratas/backend-luma/internal/common"
	"github.com/lumapratas/backend-luma/internal/lock"
	"github.com/lumapratas/backend-luma/internal/lot"
	"github.com/lumapratas/backend-luma/internal/obs"
)

// OrderSettler resolves and transitions orders during webhook settlement.
type OrderSettler interface {
	GetOrderByTxID(ctx context.Context, txID string) (checkout.OrderRow, error)
	MarkPaid(ctx context.Context, id pgtype.UUID) (bool, error)
	MarkFailed(ctx context.Context, id pgtype.UUID, status string) error
}

// LotResolver loads the lot of a settled order so its caches can be dropped.
type LotResolver interface {
	GetByID(ctx context.Context, id pgtype.UUID) (lot.Row, error)
}

// Webhook handles payment provider callbacks, including signature
// verification, replay suppression and settlement.
type Webhook struct {
	Orders    OrderSettler
	Providers map[string]Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	// Lock serialises settlement per transaction id so distinct notifications
	// for the same order cannot race each other.
	Lock *lock.Locker
	Lots LotResolver
	// InvalidateLot drops catalog caches once a cancellation frees units.
	InvalidateLot func(ctx context.Context, slug string)
}

// Handle processes webhook callbacks for the configured payment provider(s).
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		h.count(providerKey, "invalid")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		h.count(providerKey, "invalid_signature")
		msg := "signature verification failed"
		if result.Err != nil {
			msg = result.Err.Error()
		}
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", msg, nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		ok, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			h.count(providerKey, "replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	if result.Reference == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REFERENCE", "missing external reference", nil)
		return
	}

	ctx := r.Context()
	settle := func(ctx context.Context) error { return h.settle(ctx, providerKey, result) }
	if h.Lock != nil {
		err = h.Lock.WithLock(ctx, "settle:"+result.Reference, 15*time.Second, settle)
	} else {
		err = settle(ctx)
	}
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "SETTLEMENT_ERROR", err.Error(), nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) settle(ctx context.Context, providerKey string, result WebhookVerifyResult) error {
	order, err := h.Orders.GetOrderByTxID(ctx, result.Reference)
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			return &common.AppError{Code: "ORDER_NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return &common.AppError{Code: "ORDER_FETCH_ERROR", Message: err.Error(), HTTPStatus: http.StatusInternalServerError, Err: err}
	}
	if result.Amount > 0 && math.Abs(result.Amount-order.Total) >= 0.005 {
		h.count(providerKey, "amount_mismatch")
		return &common.AppError{Code: "AMOUNT_MISMATCH", Message: "provider amount mismatch", HTTPStatus: http.StatusBadRequest}
	}

	switch result.Status {
	case "PAID":
		transitioned, err := h.Orders.MarkPaid(ctx, order.ID)
		if err != nil {
			return &common.AppError{Code: "ORDER_UPDATE_ERROR", Message: err.Error(), HTTPStatus: http.StatusInternalServerError, Err: err}
		}
		if transitioned {
			h.count(providerKey, "paid")
		} else {
			h.count(providerKey, "already_settled")
		}
	case "FAILED", "EXPIRED":
		if order.Status == "PENDING" {
			if err := h.Orders.MarkFailed(ctx, order.ID, "CANCELLED"); err != nil {
				return &common.AppError{Code: "ORDER_UPDATE_ERROR", Message: err.Error(), HTTPStatus: http.StatusInternalServerError, Err: err}
			}
			h.invalidate(ctx, order.LotID)
		}
		h.count(providerKey, strings.ToLower(result.Status))
	default:
		h.count(providerKey, "pending")
	}
	return nil
}

func (h Webhook) invalidate(ctx context.Context, lotID pgtype.UUID) {
	if h.Lots == nil || h.InvalidateLot == nil {
		return
	}
	if row, err := h.Lots.GetByID(ctx, lotID); err == nil {
		h.InvalidateLot(ctx, row.Slug)
	}
}

func (h Webhook) count(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}
