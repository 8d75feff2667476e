package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/services"
)

type stubRecoveryService struct {
	resolveFn func(ctx context.Context, token string) (services.Resolution, error)
}

func (s *stubRecoveryService) Resolve(ctx context.Context, token string) (services.Resolution, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, token)
	}
	return services.Resolution{}, services.ErrRecoveryNotFound
}

func newRecoveryTestRouter(recovery services.RecoveryService, opts ...RecoveryOption) chi.Router {
	h := NewRecoveryHandlers(recovery, opts...)
	r := chi.NewRouter()
	r.Route("/recover", h.Routes)
	return r
}

func TestResolveResumeCheckout(t *testing.T) {
	svc := &stubRecoveryService{
		resolveFn: func(_ context.Context, token string) (services.Resolution, error) {
			if token != "01TOKEN" {
				t.Fatalf("unexpected token %q", token)
			}
			return services.Resolution{
				Outcome:     domain.RecoveryOutcomeResumeCheckout,
				Family:      domain.ReminderFamilyPayment,
				OrderID:     "ord_1",
				CheckoutURL: "https://checkout.stripe.com/pay/cs_123",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/recover/01TOKEN", nil)
	rr := httptest.NewRecorder()

	newRecoveryTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload resolutionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Outcome != string(domain.RecoveryOutcomeResumeCheckout) {
		t.Fatalf("unexpected outcome %q", payload.Outcome)
	}
	if payload.CheckoutURL == "" || payload.OrderID != "ord_1" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestResolveRestoreCartIncludesCart(t *testing.T) {
	now := time.Date(2026, time.April, 2, 14, 30, 0, 0, time.UTC)
	svc := &stubRecoveryService{
		resolveFn: func(_ context.Context, token string) (services.Resolution, error) {
			return services.Resolution{
				Outcome: domain.RecoveryOutcomeRestoreCart,
				Family:  domain.ReminderFamilyCart,
				Cart: &services.SavedCart{
					CustomerID:   "cust-1",
					Items:        []services.CartItem{{ServiceRef: "svc_hem", Quantity: 1, UnitPrice: 1200}},
					BookingStep:  "review",
					CreatedAt:    now,
					LastActiveAt: now,
				},
				BookingStep: "review",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/recover/01CART", nil)
	rr := httptest.NewRecorder()

	newRecoveryTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload resolutionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Cart == nil || len(payload.Cart.Items) != 1 {
		t.Fatalf("expected cart in payload, got %#v", payload.Cart)
	}
	if payload.BookingStep != "review" {
		t.Fatalf("unexpected booking step %q", payload.BookingStep)
	}
}

func TestResolveUnknownTokenIs404(t *testing.T) {
	svc := &stubRecoveryService{}
	req := httptest.NewRequest(http.MethodGet, "/recover/unknown", nil)
	rr := httptest.NewRecorder()

	newRecoveryTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestResolveExpiredTokenIs410(t *testing.T) {
	svc := &stubRecoveryService{
		resolveFn: func(_ context.Context, token string) (services.Resolution, error) {
			return services.Resolution{}, services.ErrRecoveryExpired
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/recover/01OLD", nil)
	rr := httptest.NewRecorder()

	newRecoveryTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rr.Code)
	}
}

func TestResolveRateLimited(t *testing.T) {
	svc := &stubRecoveryService{
		resolveFn: func(_ context.Context, token string) (services.Resolution, error) {
			return services.Resolution{Outcome: domain.RecoveryOutcomeAlreadyProcessed, Family: domain.ReminderFamilyPayment}, nil
		},
	}

	router := newRecoveryTestRouter(svc, WithRecoveryRateLimit(1, time.Minute))

	first := httptest.NewRequest(http.MethodGet, "/recover/01TOKEN", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/recover/01TOKEN", nil)
	second.RemoteAddr = "10.0.0.1:1234"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, second)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}
