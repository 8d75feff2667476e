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

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/services"
)

type stubOrderService struct {
	createFn     func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	requestFn    func(ctx context.Context, cmd services.RequestPaymentCommand) (services.Order, error)
	confirmFn    func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error)
	transitionFn func(ctx context.Context, cmd services.TransitionCommand) (services.Order, error)
	cancelFn     func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	getFn        func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error)
	listFn       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	itemsFn      func(ctx context.Context, orderID string) ([]services.OrderItem, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderInvalidInput
}

func (s *stubOrderService) RequestPayment(ctx context.Context, cmd services.RequestPaymentCommand) (services.Order, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) Transition(ctx context.Context, cmd services.TransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) ListOrderItems(ctx context.Context, orderID string) ([]services.OrderItem, error) {
	if s.itemsFn != nil {
		return s.itemsFn(ctx, orderID)
	}
	return nil, nil
}

func newOrderTestRouter(orders services.OrderService) chi.Router {
	h := NewOrderHandlers(auth.NewAuthenticator(), orders)
	r := chi.NewRouter()
	r.Route("/orders", h.Routes)
	return r
}

func sampleOrder() services.Order {
	created := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	return services.Order{
		ID:          "ord_1",
		OrderNumber: "SL-2026-000042",
		CustomerID:  "cust-1",
		Status:      domain.OrderStatusPendingPayment,
		Currency:    "GBP",
		Totals:      domain.OrderTotals{Subtotal: 1900, DeliveryFee: 700, Total: 2600},
		Items: []services.OrderItem{{
			ID:         "itm_1",
			ServiceRef: "svc_hem",
			Name:       "Trouser hem",
			Quantity:   1,
			UnitPrice:  1900,
			Total:      1900,
			Status:     domain.OrderItemStatusPending,
			CreatedAt:  created,
		}},
		Contact:   domain.OrderContact{Name: "Jo Bloggs", Email: "jo@example.com"},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := `{"items":[{"service_id":"svc_hem","garment_id":"suit-trousers","quantity":1}],"contact":{"name":"Jo Bloggs","email":"jo@example.com"},"schedule":{"time_window":"morning"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cust-1" {
		t.Fatalf("expected customer from identity, got %q", captured.CustomerID)
	}
	if len(captured.Items) != 1 || captured.Items[0].ServiceID != "svc_hem" {
		t.Fatalf("unexpected items: %#v", captured.Items)
	}
	if captured.Schedule.TimeWindow != "morning" {
		t.Fatalf("unexpected time window %q", captured.Schedule.TimeWindow)
	}

	var payload orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Order.OrderNumber != "SL-2026-000042" {
		t.Fatalf("unexpected order number %q", payload.Order.OrderNumber)
	}
	if payload.Order.Totals.Total != 2600 {
		t.Fatalf("unexpected total %d", payload.Order.Totals.Total)
	}
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateOrderAdminMayActForCustomer(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := `{"customer_id":"cust-9","items":[{"service_id":"svc_hem","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	req.Header.Set(auth.SubjectHeader, "admin-1")
	req.Header.Set(auth.RolesHeader, "admin")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cust-9" {
		t.Fatalf("expected overridden customer, got %q", captured.CustomerID)
	}
}

func TestListOrdersForwardsFilters(t *testing.T) {
	var captured services.OrderListFilter
	svc := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items:         []services.Order{sampleOrder()},
				NextPageToken: "tok-2",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=pending_payment,booked&page_size=5&created_after=2026-03-01T00:00:00Z", nil)
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Role != domain.RoleCustomer || captured.ActorID != "cust-1" {
		t.Fatalf("unexpected actor %q role %q", captured.ActorID, captured.Role)
	}
	if len(captured.Status) != 2 {
		t.Fatalf("expected 2 status filters, got %v", captured.Status)
	}
	if captured.Pagination.PageSize != 5 {
		t.Fatalf("unexpected page size %d", captured.Pagination.PageSize)
	}
	if captured.From == nil || !captured.From.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_after %v", captured.From)
	}

	var payload orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(payload.Items) != 1 || payload.NextPageToken != "tok-2" {
		t.Fatalf("unexpected list payload %#v", payload)
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/orders/?status=sparkly", nil)
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetOrderMapsForbidden(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(_ context.Context, cmd services.GetOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderForbidden
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_1", nil)
	req.Header.Set(auth.SubjectHeader, "cust-2")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequestPaymentReturnsCheckout(t *testing.T) {
	expires := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	svc := &stubOrderService{
		requestFn: func(_ context.Context, cmd services.RequestPaymentCommand) (services.Order, error) {
			if cmd.SuccessURL != "https://app.example.com/done" {
				t.Fatalf("unexpected success url %q", cmd.SuccessURL)
			}
			order := sampleOrder()
			order.Checkout = &domain.CheckoutRef{
				Provider:    "stripe",
				SessionID:   "cs_123",
				RedirectURL: "https://checkout.stripe.com/pay/cs_123",
				CreatedAt:   expires.Add(-time.Hour),
				ExpiresAt:   &expires,
			}
			return order, nil
		},
	}

	body := `{"success_url":"https://app.example.com/done","cancel_url":"https://app.example.com/back"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:request-payment", strings.NewReader(body))
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Order.Checkout == nil || payload.Order.Checkout.SessionID != "cs_123" {
		t.Fatalf("expected checkout ref in payload, got %#v", payload.Order.Checkout)
	}
}

func TestTransitionRejectsUnknownTarget(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:transition", strings.NewReader(`{"target":"warp_speed"}`))
	req.Header.Set(auth.SubjectHeader, "agent-1")
	req.Header.Set(auth.RolesHeader, "pickup_agent")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTransitionForwardsRole(t *testing.T) {
	var captured services.TransitionCommand
	svc := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.TransitionCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusCollected
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:transition", strings.NewReader(`{"target":"collected"}`))
	req.Header.Set(auth.SubjectHeader, "agent-1")
	req.Header.Set(auth.RolesHeader, "pickup_agent")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Role != domain.RolePickupAgent {
		t.Fatalf("expected pickup_agent role, got %q", captured.Role)
	}
	if captured.Target != domain.OrderStatusCollected {
		t.Fatalf("unexpected target %q", captured.Target)
	}
}

func TestCancelOrderAllowsEmptyBody(t *testing.T) {
	var captured services.CancelOrderCommand
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:cancel", nil)
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ActorID != "cust-1" || captured.Role != domain.RoleCustomer {
		t.Fatalf("unexpected cancel command %#v", captured)
	}
}

func TestCancelOrderMapsInvalidState(t *testing.T) {
	svc := &stubOrderService{
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1:cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req.Header.Set(auth.SubjectHeader, "cust-1")
	rr := httptest.NewRecorder()

	newOrderTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
