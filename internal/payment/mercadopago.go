package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MercadoPago implements the Provider interface for Mercado Pago PIX
// notifications. Signatures follow the x-signature scheme: the header carries
// "ts=<unix>,v1=<hmac>" and the HMAC-SHA256 manifest is
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
type MercadoPago struct {
	WebhookSecret string
}

type mercadoPagoNotification struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID                string  `json:"id"`
		Status            string  `json:"status"`
		ExternalReference string  `json:"external_reference"`
		TransactionAmount float64 `json:"transaction_amount"`
	} `json:"data"`
}

// VerifyWebhook validates the Mercado Pago signature and normalises the
// payload into WebhookVerifyResult.
func (m MercadoPago) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	var payload mercadoPagoNotification
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}

	dataID := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("data.id")))
	if dataID == "" {
		dataID = strings.ToLower(strings.TrimSpace(payload.Data.ID))
	}
	if dataID == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing data id")}, nil
	}

	ts, v1, err := parseSignatureHeader(r.Header.Get("x-signature"))
	if err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	expected := m.computeSignature(dataID, r.Header.Get("x-request-id"), ts)
	if expected == "" || !hmac.Equal([]byte(expected), []byte(v1)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		Reference:       strings.TrimSpace(payload.Data.ExternalReference),
		Amount:          payload.Data.TransactionAmount,
		Status:          normaliseMercadoPagoStatus(payload.Data.Status),
		ProviderPayload: body,
	}, nil
}

func (m MercadoPago) computeSignature(dataID, requestID, ts string) string {
	secret := strings.TrimSpace(m.WebhookSecret)
	if secret == "" {
		return ""
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, strings.TrimSpace(requestID), ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (ts, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return "", "", errors.New("malformed x-signature header")
	}
	return ts, v1, nil
}

func normaliseMercadoPagoStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved", "accredited":
		return "PAID"
	case "pending", "in_process", "authorized":
		return "PENDING"
	case "rejected", "cancelled":
		return "FAILED"
	case "expired":
		return "EXPIRED"
	case "refunded", "charged_back":
		return "REFUNDED"
	default:
		return "PENDING"
	}
}
