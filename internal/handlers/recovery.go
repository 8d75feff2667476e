package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const (
	defaultRecoveryRateLimit  = 60
	defaultRecoveryRateWindow = time.Minute
)

// RecoveryHandlers resolves reminder links from abandonment emails. The
// endpoint is public (the token is the credential) so it carries a per-IP
// rate limit.
type RecoveryHandlers struct {
	recovery services.RecoveryService
	limiter  rateLimiter
}

// RecoveryOption customises RecoveryHandlers construction.
type RecoveryOption func(*RecoveryHandlers)

// WithRecoveryRateLimit overrides the per-IP resolution budget.
func WithRecoveryRateLimit(limit int, window time.Duration) RecoveryOption {
	return func(h *RecoveryHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewRecoveryHandlers constructs a new RecoveryHandlers instance.
func NewRecoveryHandlers(recovery services.RecoveryService, opts ...RecoveryOption) *RecoveryHandlers {
	h := &RecoveryHandlers{
		recovery: recovery,
		limiter:  newSimpleRateLimiter(defaultRecoveryRateLimit, defaultRecoveryRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /recover endpoints.
func (h *RecoveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{token}", h.resolve)
}

type resolutionResponse struct {
	Outcome     string       `json:"outcome"`
	Family      string       `json:"family"`
	OrderID     string       `json:"order_id,omitempty"`
	CheckoutURL string       `json:"checkout_url,omitempty"`
	Cart        *cartPayload `json:"cart,omitempty"`
	BookingStep string       `json:"booking_step,omitempty"`
}

func (h *RecoveryHandlers) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.recovery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("recovery_service_unavailable", "recovery service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many recovery attempts", http.StatusTooManyRequests))
		return
	}

	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "recovery token is required", http.StatusBadRequest))
		return
	}

	resolution, err := h.recovery.Resolve(ctx, token)
	if err != nil {
		writeRecoveryError(ctx, w, err)
		return
	}

	response := resolutionResponse{
		Outcome:     string(resolution.Outcome),
		Family:      string(resolution.Family),
		OrderID:     strings.TrimSpace(resolution.OrderID),
		CheckoutURL: strings.TrimSpace(resolution.CheckoutURL),
		BookingStep: strings.TrimSpace(resolution.BookingStep),
	}
	if resolution.Cart != nil {
		cart := buildCartPayload(*resolution.Cart)
		response.Cart = &cart
	}

	writeJSONResponse(w, http.StatusOK, response)
}

func writeRecoveryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrRecoveryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("recovery_not_found", "recovery link not recognised", http.StatusNotFound))
	case errors.Is(err, services.ErrRecoveryExpired):
		httpx.WriteError(ctx, w, httpx.NewError("recovery_expired", "recovery link has expired", http.StatusGone))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("recovery_error", "failed to resolve recovery link", http.StatusInternalServerError))
	}
}
