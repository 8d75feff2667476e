package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

// Stripe caps event payloads well below this; anything larger is suspect.
const maxWebhookBodySize = 256 * 1024

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	webhooks services.PaymentWebhookService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(webhooks services.PaymentWebhookService) *WebhookHandlers {
	return &WebhookHandlers{webhooks: webhooks}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

type webhookResponse struct {
	Received  bool   `json:"received"`
	EventType string `json:"event_type,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.webhooks == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_service_unavailable", "webhook service unavailable", http.StatusServiceUnavailable))
		return
	}

	signature := strings.TrimSpace(r.Header.Get(stripeSignatureHeader))
	if signature == "" {
		httpx.WriteError(ctx, w, httpx.NewError("signature_missing", "signature header missing", http.StatusBadRequest))
		return
	}

	payload, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.webhooks.HandleWebhook(ctx, payload, signature)
	if err != nil {
		writeWebhookError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookResponse{
		Received:  true,
		EventType: result.EventType,
		OrderID:   result.OrderID,
		Ignored:   result.Ignored,
	})
}

func writeWebhookError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWebhookSignature):
		httpx.WriteError(ctx, w, httpx.NewError("signature_invalid", "webhook signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		// Unknown order references get a 200 so the provider stops retrying; the
		// mismatch is logged by the service layer.
		writeJSONResponse(w, http.StatusOK, webhookResponse{Received: true, Ignored: true})
	case errors.Is(err, services.ErrOrderInvalidState), errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order could not accept this event", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
	}
}
