package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const maxCartBodySize = 32 * 1024

// CartHandlers exposes the autosaved draft cart endpoints.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs a new CartHandlers instance.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity())
	}
	r.Put("/", h.saveCart)
	r.Get("/", h.getCart)
	r.Delete("/", h.deleteCart)
}

type saveCartRequest struct {
	Items       []cartItemPayload `json:"items"`
	BookingStep string            `json:"booking_step"`
	Metadata    map[string]any    `json:"metadata"`
}

type cartItemPayload struct {
	ServiceRef  string `json:"service_ref"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	CustomerID   string            `json:"customer_id"`
	Items        []cartItemPayload `json:"items"`
	BookingStep  string            `json:"booking_step,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at"`
	LastActiveAt string            `json:"last_active_at"`
}

func (h *CartHandlers) saveCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req saveCartRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.SaveCartCommand{
		CustomerID:  strings.TrimSpace(identity.Subject),
		BookingStep: strings.TrimSpace(req.BookingStep),
		Metadata:    cloneMap(req.Metadata),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, domain.CartItem{
			ServiceRef:  strings.TrimSpace(item.ServiceRef),
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	cart, err := h.carts.SaveCart(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, strings.TrimSpace(identity.Subject))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) deleteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.DeleteCart(ctx, strings.TrimSpace(identity.Subject)); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Subject) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func buildCartPayload(cart services.SavedCart) cartPayload {
	payload := cartPayload{
		CustomerID:   strings.TrimSpace(cart.CustomerID),
		Items:        make([]cartItemPayload, 0, len(cart.Items)),
		BookingStep:  strings.TrimSpace(cart.BookingStep),
		Metadata:     cloneMap(cart.Metadata),
		CreatedAt:    formatTime(cart.CreatedAt),
		LastActiveAt: formatTime(cart.LastActiveAt),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ServiceRef:  strings.TrimSpace(item.ServiceRef),
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return payload
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "no saved cart", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
