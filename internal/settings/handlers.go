package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lumapratas/backend-luma/internal/common"
	"github.com/lumapratas/backend-luma/internal/fee"
	"github.com/lumapratas/backend-luma/internal/pix"
)

// Provider abstracts the settings store for the admin handlers.
type Provider interface {
	PixBeneficiary(ctx context.Context, fallback pix.Beneficiary) (pix.Beneficiary, error)
	SetPixBeneficiary(ctx context.Context, b pix.Beneficiary) error
	FeeTiersText(ctx context.Context, fallbackText string) (string, error)
	SetFeeTiersText(ctx context.Context, text string) error
}

// Handler exposes the admin configuration endpoints for fee tiers and the
// PIX beneficiary.
type Handler struct {
	Store           Provider
	PixFallback     pix.Beneficiary
	DefaultFeeTiers string
}

type feeTiersPayload struct {
	Text    string     `json:"text"`
	Tiers   []fee.Tier `json:"tiers"`
	Skipped []string   `json:"skipped,omitempty"`
}

// GetFeeTiers handles GET /api/v1/admin/fee-tiers.
func (h *Handler) GetFeeTiers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	text, err := h.Store.FeeTiersText(r.Context(), h.DefaultFeeTiers)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "load fee tiers", nil)
		return
	}
	tiers, skipped := fee.ParseStrict(text)
	common.JSON(w, http.StatusOK, map[string]any{"data": feeTiersPayload{Text: text, Tiers: tiers, Skipped: skipped}})
}

// PutFeeTiers handles PUT /api/v1/admin/fee-tiers. Malformed lines are
// tolerated and reported back so the admin UI can flag them.
func (h *Handler) PutFeeTiers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	tiers, skipped := fee.ParseStrict(body.Text)
	if err := h.Store.SetFeeTiersText(r.Context(), body.Text); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "save fee tiers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": feeTiersPayload{Text: body.Text, Tiers: tiers, Skipped: skipped}})
}

// GetPix handles GET /api/v1/admin/integrations/pix.
func (h *Handler) GetPix(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	b, err := h.Store.PixBeneficiary(r.Context(), h.PixFallback)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "load pix beneficiary", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b, "configured": b.Configured()})
}

// PutPix handles PUT /api/v1/admin/integrations/pix. Saving requires the
// mandatory key and name so checkout never emits a malformed payment code.
func (h *Handler) PutPix(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	var b pix.Beneficiary
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	b.Key = strings.TrimSpace(b.Key)
	b.Name = strings.TrimSpace(b.Name)
	b.City = strings.TrimSpace(b.City)
	if !b.Configured() {
		common.JSONError(w, http.StatusUnprocessableEntity, "PIX_NOT_CONFIGURED", "key and name are required", nil)
		return
	}
	if err := h.Store.SetPixBeneficiary(r.Context(), b); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "save pix beneficiary", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b, "configured": true})
}
