package payment

import "net/http"

// WebhookVerifyResult contains the normalised data extracted from a webhook
// notification after signature verification.
type WebhookVerifyResult struct {
	Valid bool
	// Reference is the external reference echoed by the provider, which this
	// service sets to the order's PIX transaction id.
	Reference       string
	Amount          float64
	Status          string
	ProviderPayload []byte
	Err             error
}

// Provider abstracts webhook verification for an upstream payment provider.
type Provider interface {
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
