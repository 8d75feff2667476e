package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPendingPayment:  {},
	domain.OrderStatusBooked:          {},
	domain.OrderStatusPickupScheduled: {},
	domain.OrderStatusCollected:       {},
	domain.OrderStatusInProgress:      {},
	domain.OrderStatusReady:           {},
	domain.OrderStatusOutForDelivery:  {},
	domain.OrderStatusDelivered:       {},
	domain.OrderStatusCompleted:       {},
	domain.OrderStatusCancelled:       {},
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/items", h.listOrderItems)
	r.Post("/{orderID}:request-payment", h.requestPayment)
	r.Post("/{orderID}:transition", h.transitionOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

type createOrderRequest struct {
	CustomerID string                   `json:"customer_id"`
	Items      []createOrderItemPayload `json:"items"`
	Contact    orderContactPayload      `json:"contact"`
	Address    *addressPayload          `json:"address"`
	Schedule   orderSchedulePayload     `json:"schedule"`
	Notes      string                   `json:"notes"`
	Metadata   map[string]any           `json:"metadata"`
}

type createOrderItemPayload struct {
	ServiceID string   `json:"service_id"`
	GarmentID string   `json:"garment_id"`
	Quantity  int      `json:"quantity"`
	Notes     string   `json:"notes"`
	PhotoRefs []string `json:"photo_refs"`
}

type requestPaymentRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type transitionOrderRequest struct {
	Target   string         `json:"target"`
	Metadata map[string]any `json:"metadata"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	customerID := strings.TrimSpace(identity.Subject)
	if identity.HasRole(auth.RoleAdmin) && strings.TrimSpace(req.CustomerID) != "" {
		customerID = strings.TrimSpace(req.CustomerID)
	}

	cmd := services.CreateOrderCommand{
		CustomerID: customerID,
		Contact: domain.OrderContact{
			Name:  strings.TrimSpace(req.Contact.Name),
			Email: strings.TrimSpace(req.Contact.Email),
			Phone: strings.TrimSpace(req.Contact.Phone),
		},
		Notes:    req.Notes,
		Metadata: cloneMap(req.Metadata),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItem{
			ServiceID: strings.TrimSpace(item.ServiceID),
			GarmentID: strings.TrimSpace(item.GarmentID),
			Quantity:  item.Quantity,
			Notes:     item.Notes,
			PhotoRefs: item.PhotoRefs,
		})
	}
	if req.Address != nil {
		cmd.Address = domain.Address{
			Recipient:  strings.TrimSpace(req.Address.Recipient),
			Line1:      strings.TrimSpace(req.Address.Line1),
			Line2:      cloneStringPointer(req.Address.Line2),
			City:       strings.TrimSpace(req.Address.City),
			PostalCode: strings.TrimSpace(req.Address.PostalCode),
			Country:    strings.TrimSpace(req.Address.Country),
			Phone:      cloneStringPointer(req.Address.Phone),
		}
	}
	if raw := strings.TrimSpace(req.Schedule.PickupDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "schedule.pickup_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.Schedule = domain.OrderSchedule{PickupDate: &ts, TimeWindow: strings.TrimSpace(req.Schedule.TimeWindow)}
	} else {
		cmd.Schedule = domain.OrderSchedule{TimeWindow: strings.TrimSpace(req.Schedule.TimeWindow)}
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	statusFilters := make([]domain.OrderStatus, 0)
	for _, raw := range parseFilterValues(query["status"]) {
		status, valid := parseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter contains an unknown order status", http.StatusBadRequest))
			return
		}
		statusFilters = append(statusFilters, status)
	}

	filter := services.OrderListFilter{
		Status:  statusFilters,
		ActorID: strings.TrimSpace(identity.Subject),
		Role:    actorRole(identity),
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.To = &ts
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}
	filter.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.Subject),
		Role:    actorRole(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrderItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	// The read-scope check runs against the order header first.
	if _, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.Subject),
		Role:    actorRole(identity),
	}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items, err := h.orders.ListOrderItems(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, buildOrderItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payloads})
}

func (h *OrderHandlers) requestPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req requestPaymentRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.RequestPayment(ctx, services.RequestPaymentCommand{
		OrderID:    orderID,
		CustomerID: strings.TrimSpace(identity.Subject),
		SuccessURL: strings.TrimSpace(req.SuccessURL),
		CancelURL:  strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req transitionOrderRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	target, valid := parseOrderStatus(req.Target)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "target must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Transition(ctx, services.TransitionCommand{
		OrderID:  orderID,
		Target:   target,
		ActorID:  strings.TrimSpace(identity.Subject),
		Role:     actorRole(identity),
		Metadata: cloneMap(req.Metadata),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := h.orderIDParam(ctx, w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: strings.TrimSpace(identity.Subject),
		Role:    actorRole(identity),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Subject) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *OrderHandlers) orderIDParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func (h *OrderHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// actorRole collapses the forwarded role list into the single most privileged
// actor role the order service understands.
func actorRole(identity *auth.Identity) domain.ActorRole {
	switch {
	case identity.HasRole(auth.RoleAdmin):
		return domain.RoleAdmin
	case identity.HasRole(auth.RoleSpecialist):
		return domain.RoleSpecialist
	case identity.HasRole(auth.RolePickupAgent):
		return domain.RolePickupAgent
	default:
		return domain.RoleCustomer
	}
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Total       int64  `json:"total"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID            string               `json:"id"`
	OrderNumber   string               `json:"order_number"`
	CustomerID    string               `json:"customer_id"`
	Status        string               `json:"status"`
	Currency      string               `json:"currency"`
	Totals        orderTotalsPayload   `json:"totals"`
	Items         []orderItemPayload   `json:"items"`
	Contact       orderContactPayload  `json:"contact"`
	Address       *addressPayload      `json:"address,omitempty"`
	Schedule      orderSchedulePayload `json:"schedule"`
	Notes         string               `json:"notes,omitempty"`
	AgentRef      *string              `json:"agent_ref,omitempty"`
	SpecialistRef *string              `json:"specialist_ref,omitempty"`
	Checkout      *checkoutRefPayload  `json:"checkout,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	CreatedAt     string               `json:"created_at"`
	UpdatedAt     string               `json:"updated_at,omitempty"`
	BookedAt      string               `json:"booked_at,omitempty"`
	CollectedAt   string               `json:"collected_at,omitempty"`
	ReadyAt       string               `json:"ready_at,omitempty"`
	DeliveredAt   string               `json:"delivered_at,omitempty"`
	CompletedAt   string               `json:"completed_at,omitempty"`
	CancelledAt   string               `json:"cancelled_at,omitempty"`
	CancelReason  *string              `json:"cancel_reason,omitempty"`
}

type orderTotalsPayload struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	Total       int64 `json:"total"`
}

type orderItemPayload struct {
	ID          string   `json:"id"`
	ServiceRef  string   `json:"service_ref"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	UnitPrice   int64    `json:"unit_price"`
	Total       int64    `json:"total"`
	PhotoRefs   []string `json:"photo_refs,omitempty"`
	Status      string   `json:"status"`
}

type orderContactPayload struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type orderSchedulePayload struct {
	PickupDate string `json:"pickup_date,omitempty"`
	TimeWindow string `json:"time_window,omitempty"`
}

type addressPayload struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

type checkoutRefPayload struct {
	Provider    string `json:"provider"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		Status:      strings.TrimSpace(string(order.Status)),
		Currency:    strings.ToUpper(strings.TrimSpace(order.Currency)),
		Total:       order.Totals.Total,
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:          strings.TrimSpace(order.ID),
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		CustomerID:  strings.TrimSpace(order.CustomerID),
		Status:      strings.TrimSpace(string(order.Status)),
		Currency:    strings.ToUpper(strings.TrimSpace(order.Currency)),
		Totals: orderTotalsPayload{
			Subtotal:    order.Totals.Subtotal,
			DeliveryFee: order.Totals.DeliveryFee,
			Total:       order.Totals.Total,
		},
		Items: make([]orderItemPayload, 0, len(order.Items)),
		Contact: orderContactPayload{
			Name:  strings.TrimSpace(order.Contact.Name),
			Email: strings.TrimSpace(order.Contact.Email),
			Phone: strings.TrimSpace(order.Contact.Phone),
		},
		Schedule: orderSchedulePayload{
			PickupDate: formatTime(pointerTime(order.Schedule.PickupDate)),
			TimeWindow: strings.TrimSpace(order.Schedule.TimeWindow),
		},
		Notes:         strings.TrimSpace(order.Notes),
		AgentRef:      cloneStringPointer(order.AgentRef),
		SpecialistRef: cloneStringPointer(order.SpecialistRef),
		Metadata:      cloneMap(order.Metadata),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		BookedAt:      formatTime(pointerTime(order.BookedAt)),
		CollectedAt:   formatTime(pointerTime(order.CollectedAt)),
		ReadyAt:       formatTime(pointerTime(order.ReadyAt)),
		DeliveredAt:   formatTime(pointerTime(order.DeliveredAt)),
		CompletedAt:   formatTime(pointerTime(order.CompletedAt)),
		CancelledAt:   formatTime(pointerTime(order.CancelledAt)),
		CancelReason:  cloneStringPointer(order.CancelReason),
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, buildOrderItemPayload(item))
	}

	if order.Address != nil {
		addr := buildAddressPayload(*order.Address)
		payload.Address = &addr
	}

	if order.Checkout != nil {
		payload.Checkout = &checkoutRefPayload{
			Provider:    strings.TrimSpace(order.Checkout.Provider),
			SessionID:   strings.TrimSpace(order.Checkout.SessionID),
			RedirectURL: strings.TrimSpace(order.Checkout.RedirectURL),
			CreatedAt:   formatTime(order.Checkout.CreatedAt),
			ExpiresAt:   formatTime(pointerTime(order.Checkout.ExpiresAt)),
		}
	}

	return payload
}

func buildOrderItemPayload(item services.OrderItem) orderItemPayload {
	return orderItemPayload{
		ID:          strings.TrimSpace(item.ID),
		ServiceRef:  strings.TrimSpace(item.ServiceRef),
		Name:        strings.TrimSpace(item.Name),
		Description: strings.TrimSpace(item.Description),
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Total:       item.Total,
		PhotoRefs:   item.PhotoRefs,
		Status:      strings.TrimSpace(string(item.Status)),
	}
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      cloneStringPointer(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
		Phone:      cloneStringPointer(addr.Phone),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not permitted for this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment provider request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validOrderStatuses[status]; !ok {
		return "", false
	}
	return status, true
}
