package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/services"
)

type stubCartService struct {
	saveFn   func(ctx context.Context, cmd services.SaveCartCommand) (services.SavedCart, error)
	getFn    func(ctx context.Context, customerID string) (services.SavedCart, error)
	deleteFn func(ctx context.Context, customerID string) error
}

func (s *stubCartService) SaveCart(ctx context.Context, cmd services.SaveCartCommand) (services.SavedCart, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, cmd)
	}
	return services.SavedCart{}, services.ErrCartInvalidInput
}

func (s *stubCartService) GetCart(ctx context.Context, customerID string) (services.SavedCart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, customerID)
	}
	return services.SavedCart{}, services.ErrCartNotFound
}

func (s *stubCartService) DeleteCart(ctx context.Context, customerID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, customerID)
	}
	return nil
}

func newCartTestRouter(carts services.CartService) chi.Router {
	h := NewCartHandlers(auth.NewAuthenticator(), carts)
	r := chi.NewRouter()
	r.Route("/cart", h.Routes)
	return r
}

func TestSaveCartForwardsCommand(t *testing.T) {
	now := time.Date(2026, time.April, 2, 14, 30, 0, 0, time.UTC)
	var captured services.SaveCartCommand
	svc := &stubCartService{
		saveFn: func(_ context.Context, cmd services.SaveCartCommand) (services.SavedCart, error) {
			captured = cmd
			return services.SavedCart{
				ID:           cmd.CustomerID,
				CustomerID:   cmd.CustomerID,
				Items:        cmd.Items,
				BookingStep:  cmd.BookingStep,
				CreatedAt:    now,
				LastActiveAt: now,
			}, nil
		},
	}

	body := `{"items":[{"service_ref":"svc_hem","name":"Trouser hem","quantity":2,"unit_price":1200}],"booking_step":"address"}`
	req := httptest.NewRequest(http.MethodPut, "/cart/", strings.NewReader(body))
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newCartTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cust-1" {
		t.Fatalf("expected customer from identity, got %q", captured.CustomerID)
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %#v", captured.Items)
	}
	if captured.BookingStep != "address" {
		t.Fatalf("unexpected booking step %q", captured.BookingStep)
	}

	var payload cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Cart.LastActiveAt == "" {
		t.Fatalf("expected last_active_at in payload")
	}
}

func TestGetCartMapsNotFound(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodGet, "/cart/", nil)
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newCartTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteCartReturnsNoContent(t *testing.T) {
	deleted := ""
	svc := &stubCartService{
		deleteFn: func(_ context.Context, customerID string) error {
			deleted = customerID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/cart/", nil)
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newCartTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if deleted != "cust-1" {
		t.Fatalf("expected delete for cust-1, got %q", deleted)
	}
}

func TestSaveCartRequiresIdentity(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPut, "/cart/", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()

	newCartTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
