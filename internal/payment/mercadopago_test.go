package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func signMercadoPago(t *testing.T, secret, dataID, requestID, ts string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestMercadoPagoVerifyWebhook(t *testing.T) {
	provider := MercadoPago{WebhookSecret: "topsecret"}
	body := []byte(`{
		"action": "payment.updated",
		"type": "payment",
		"data": {
			"id": "12345678901",
			"status": "approved",
			"external_reference": "ROM1700000000123",
			"transaction_amount": 59.00
		}
	}`)

	r := httptest.NewRequest("POST", "/api/v1/webhooks/payment/mercadopago?data.id=12345678901", strings.NewReader(string(body)))
	r.Header.Set("x-request-id", "req-abc")
	v1 := signMercadoPago(t, "topsecret", "12345678901", "req-abc", "1700000001")
	r.Header.Set("x-signature", "ts=1700000001,v1="+v1)

	result, err := provider.VerifyWebhook(r, body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "ROM1700000000123", result.Reference)
	require.Equal(t, 59.00, result.Amount)
	require.Equal(t, "PAID", result.Status)
}

func TestMercadoPagoRejectsBadSignature(t *testing.T) {
	provider := MercadoPago{WebhookSecret: "topsecret"}
	body := []byte(`{"data":{"id":"12345678901","status":"approved"}}`)

	r := httptest.NewRequest("POST", "/hook?data.id=12345678901", strings.NewReader(string(body)))
	r.Header.Set("x-request-id", "req-abc")
	r.Header.Set("x-signature", "ts=1700000001,v1=deadbeef")

	result, err := provider.VerifyWebhook(r, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestMercadoPagoRejectsMalformedHeader(t *testing.T) {
	provider := MercadoPago{WebhookSecret: "topsecret"}
	body := []byte(`{"data":{"id":"12345678901"}}`)

	r := httptest.NewRequest("POST", "/hook", strings.NewReader(string(body)))
	r.Header.Set("x-signature", "garbage")

	result, err := provider.VerifyWebhook(r, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Error(t, result.Err)
}

func TestMercadoPagoStatusMapping(t *testing.T) {
	cases := map[string]string{
		"approved":     "PAID",
		"accredited":   "PAID",
		"pending":      "PENDING",
		"in_process":   "PENDING",
		"rejected":     "FAILED",
		"cancelled":    "FAILED",
		"expired":      "EXPIRED",
		"refunded":     "REFUNDED",
		"charged_back": "REFUNDED",
		"whatever":     "PENDING",
	}
	for input, want := range cases {
		require.Equal(t, want, normaliseMercadoPagoStatus(input), "status %q", input)
	}
}
