package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lumapratas/backend-luma/internal/checkout"
	"github.com/lumapratas/backend-luma/internal/lock"
	"github.com/lumapratas/backend-luma/internal/lot"
)

type stubProvider struct {
	result WebhookVerifyResult
}

func (s stubProvider) VerifyWebhook(*http.Request, []byte) (WebhookVerifyResult, error) {
	return s.result, nil
}

type fakeSettler struct {
	orders map[string]checkout.OrderRow
	paid   []string
	failed []string
}

func (f *fakeSettler) GetOrderByTxID(_ context.Context, txID string) (checkout.OrderRow, error) {
	o, ok := f.orders[txID]
	if !ok {
		return checkout.OrderRow{}, checkout.ErrNotFound
	}
	return o, nil
}

func (f *fakeSettler) MarkPaid(_ context.Context, id pgtype.UUID) (bool, error) {
	key := lot.UUIDString(id)
	for txID, o := range f.orders {
		if lot.UUIDString(o.ID) == key && o.Status == "PENDING" {
			o.Status = "PAID"
			f.orders[txID] = o
			f.paid = append(f.paid, txID)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSettler) MarkFailed(_ context.Context, id pgtype.UUID, status string) error {
	key := lot.UUIDString(id)
	for txID, o := range f.orders {
		if lot.UUIDString(o.ID) == key && o.Status == "PENDING" {
			o.Status = status
			f.orders[txID] = o
			f.failed = append(f.failed, txID)
		}
	}
	return nil
}

func newOrderRow(t *testing.T, txID string, total float64) checkout.OrderRow {
	t.Helper()
	id, err := lot.ToUUID(uuid.NewString())
	require.NoError(t, err)
	return checkout.OrderRow{ID: id, Status: "PENDING", Total: total, PixTxID: txID}
}

func serveWebhook(h Webhook, provider, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/webhooks/payment/{provider}", h.Handle)
	req := httptest.NewRequest("POST", "/webhooks/payment/"+provider, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookSettlesPaidOrder(t *testing.T) {
	settler := &fakeSettler{orders: map[string]checkout.OrderRow{
		"ROM1": newOrderRow(t, "ROM1", 59.00),
	}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM1", Amount: 59.00, Status: "PAID",
		}}},
	}

	rec := serveWebhook(h, "mercadopago", `{"data":{"id":"1"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"ROM1"}, settler.paid)
	require.Equal(t, "PAID", settler.orders["ROM1"].Status)
}

func TestWebhookPaidIsIdempotentOnOrderStatus(t *testing.T) {
	order := newOrderRow(t, "ROM1", 59.00)
	order.Status = "PAID"
	settler := &fakeSettler{orders: map[string]checkout.OrderRow{"ROM1": order}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM1", Status: "PAID",
		}}},
	}

	rec := serveWebhook(h, "mercadopago", `{"data":{"id":"1"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, settler.paid)
}

func TestWebhookCancelsOnFailure(t *testing.T) {
	settler := &fakeSettler{orders: map[string]checkout.OrderRow{
		"ROM2": newOrderRow(t, "ROM2", 30.00),
	}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM2", Status: "FAILED",
		}}},
	}

	rec := serveWebhook(h, "mercadopago", `{"data":{"id":"2"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "CANCELLED", settler.orders["ROM2"].Status)
}

func TestWebhookAmountMismatch(t *testing.T) {
	settler := &fakeSettler{orders: map[string]checkout.OrderRow{
		"ROM3": newOrderRow(t, "ROM3", 59.00),
	}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM3", Amount: 10.00, Status: "PAID",
		}}},
	}

	rec := serveWebhook(h, "mercadopago", `{"data":{"id":"3"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, settler.paid)
}

func TestWebhookRejectsUnknownProviderAndSignature(t *testing.T) {
	settler := &fakeSettler{orders: map[string]checkout.OrderRow{}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: false, Err: errors.New("missing data id"),
		}}},
	}

	rec := serveWebhook(h, "other", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveWebhook(h, "mercadopago", `{}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "missing data id")
}

func TestWebhookSettlesUnderLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	settler := &fakeSettler{orders: map[string]checkout.OrderRow{
		"ROM5": newOrderRow(t, "ROM5", 15.00),
	}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM5", Status: "PAID",
		}}},
		Lock: &lock.Locker{R: client, RetryBackoff: time.Millisecond},
	}

	rec := serveWebhook(h, "mercadopago", `{"data":{"id":"5"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"ROM5"}, settler.paid)
	require.False(t, mr.Exists("settle:ROM5"))
}

func TestWebhookReplaySuppression(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	settler := &fakeSettler{orders: map[string]checkout.OrderRow{
		"ROM4": newOrderRow(t, "ROM4", 20.00),
	}}
	h := Webhook{
		Orders: settler,
		Providers: map[string]Provider{"mercadopago": stubProvider{result: WebhookVerifyResult{
			Valid: true, Reference: "ROM4", Status: "PAID",
		}}},
		Replay:    client,
		ReplayTTL: time.Minute,
	}

	body := `{"data":{"id":"4"}}`
	rec := serveWebhook(h, "mercadopago", body)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serveWebhook(h, "mercadopago", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, settler.paid, 1)
}
