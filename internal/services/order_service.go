package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/payments"
	"github.com/seamline/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the requested transition is not legal from the current status.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates a concurrent mutation won the race.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderForbidden indicates the actor lacks permission for the operation.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrPaymentGateway indicates the PSP rejected or failed an operation; order state was not mutated.
	ErrPaymentGateway = errors.New("order: payment gateway failure")
)

// Logger captures structured service events.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// IDGenerator produces unique identifiers for new records.
type IDGenerator func() string

// PaymentGateway is the slice of the payments manager the order service needs.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, preferred string, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	Refund(ctx context.Context, preferred string, req payments.RefundRequest) (payments.RefundResult, error)
}

// orderStateTransitions describes legal adjacent moves in the lifecycle.
// Collected can fall back to pickup_scheduled when a pickup attempt fails.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPendingPayment:  {domain.OrderStatusBooked, domain.OrderStatusCancelled},
	domain.OrderStatusBooked:          {domain.OrderStatusPickupScheduled, domain.OrderStatusCancelled},
	domain.OrderStatusPickupScheduled: {domain.OrderStatusCollected, domain.OrderStatusCancelled},
	domain.OrderStatusCollected:       {domain.OrderStatusInProgress, domain.OrderStatusPickupScheduled, domain.OrderStatusCancelled},
	domain.OrderStatusInProgress:      {domain.OrderStatusReady, domain.OrderStatusCancelled},
	domain.OrderStatusReady:           {domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled},
	domain.OrderStatusOutForDelivery:  {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:       {domain.OrderStatusCompleted, domain.OrderStatusCancelled},
	domain.OrderStatusCompleted:       {},
	domain.OrderStatusCancelled:       {},
}

type statusEdge struct {
	from domain.OrderStatus
	to   domain.OrderStatus
}

// roleTransitions gates each edge by actor role. Admin is allowed on every
// adjacent edge and is checked separately rather than listed per edge.
var roleTransitions = map[statusEdge][]domain.ActorRole{
	{domain.OrderStatusPendingPayment, domain.OrderStatusBooked}:     {domain.RoleSystem},
	{domain.OrderStatusBooked, domain.OrderStatusPickupScheduled}:    {},
	{domain.OrderStatusPickupScheduled, domain.OrderStatusCollected}: {domain.RolePickupAgent},
	{domain.OrderStatusCollected, domain.OrderStatusPickupScheduled}: {domain.RolePickupAgent},
	{domain.OrderStatusCollected, domain.OrderStatusInProgress}:      {domain.RoleSpecialist},
	{domain.OrderStatusInProgress, domain.OrderStatusReady}:          {domain.RoleSpecialist},
	{domain.OrderStatusReady, domain.OrderStatusOutForDelivery}:      {domain.RolePickupAgent},
	{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered}:  {domain.RolePickupAgent},
	{domain.OrderStatusDelivered, domain.OrderStatusCompleted}:       {domain.RoleCustomer, domain.RoleSystem},
}

// customerCancellable lists the statuses a customer may cancel their own order from.
var customerCancellable = map[domain.OrderStatus]bool{
	domain.OrderStatusPendingPayment:  true,
	domain.OrderStatusBooked:          true,
	domain.OrderStatusPickupScheduled: true,
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, next := range orderStateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func roleAllowed(from, to domain.OrderStatus, role domain.ActorRole) bool {
	if role == domain.RoleAdmin {
		return true
	}
	for _, allowed := range roleTransitions[statusEdge{from, to}] {
		if allowed == role {
			return true
		}
	}
	return false
}

// OrderServiceDeps aggregates dependencies for NewOrderService.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	OrderItems  repositories.OrderItemRepository
	Payments    repositories.OrderPaymentRepository
	Carts       repositories.CartRepository
	Reminders   repositories.ReminderRepository
	Catalog     repositories.CatalogRepository
	Counters    repositories.CounterRepository
	Gateway     PaymentGateway
	Events      OrderEventPublisher
	Sanitizer   *bluemonday.Policy
	Clock       Clock
	IDGenerator IDGenerator
	Logger      Logger
	CheckoutTTL time.Duration
}

type orderService struct {
	orders      repositories.OrderRepository
	orderItems  repositories.OrderItemRepository
	payments    repositories.OrderPaymentRepository
	carts       repositories.CartRepository
	reminders   repositories.ReminderRepository
	catalog     repositories.CatalogRepository
	counters    repositories.CounterRepository
	gateway     PaymentGateway
	events      OrderEventPublisher
	sanitizer   *bluemonday.Policy
	clock       Clock
	idGenerator IDGenerator
	logger      Logger
	checkoutTTL time.Duration
}

// NewOrderService wires the order lifecycle service with its dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service requires order repository")
	}
	if deps.OrderItems == nil {
		return nil, errors.New("order service requires order item repository")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service requires payment repository")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service requires catalog repository")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service requires counter repository")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	ttl := deps.CheckoutTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &orderService{
		orders:      deps.Orders,
		orderItems:  deps.OrderItems,
		payments:    deps.Payments,
		carts:       deps.Carts,
		reminders:   deps.Reminders,
		catalog:     deps.Catalog,
		counters:    deps.Counters,
		gateway:     deps.Gateway,
		events:      deps.Events,
		sanitizer:   sanitizer,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGenerator: idGen,
		logger:      logger,
		checkoutTTL: ttl,
	}, nil
}

// validateDeliveryAddress enforces the fields pickup and delivery cannot do
// without. Line2, country and phone stay optional.
func validateDeliveryAddress(addr domain.Address) error {
	if addr == (domain.Address{}) {
		return fmt.Errorf("%w: delivery address is required", ErrOrderInvalidInput)
	}
	required := []struct {
		field string
		value string
	}{
		{"recipient", addr.Recipient},
		{"line1", addr.Line1},
		{"city", addr.City},
		{"postal_code", addr.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: address %s is required", ErrOrderInvalidInput, f.field)
		}
	}
	return nil
}

// CreateOrder prices the requested lines against the catalog and persists a
// pending_payment order with its garment items.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Contact.Email) == "" {
		return Order{}, fmt.Errorf("%w: contact email is required", ErrOrderInvalidInput)
	}
	if err := validateDeliveryAddress(cmd.Address); err != nil {
		return Order{}, err
	}

	now := s.clock()

	offerings := make(map[string]domain.ServiceOffering, len(cmd.Items))
	lines := make([]domain.CartItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		serviceID := strings.TrimSpace(item.ServiceID)
		if serviceID == "" {
			return Order{}, fmt.Errorf("%w: item %d is missing a service", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: item %d has invalid quantity", ErrOrderInvalidInput, i)
		}
		offering, ok := offerings[serviceID]
		if !ok {
			loaded, err := s.catalog.Get(ctx, serviceID)
			if err != nil {
				if isRepoNotFound(err) {
					return Order{}, fmt.Errorf("%w: unknown service %q", ErrOrderInvalidInput, serviceID)
				}
				return Order{}, s.mapRepositoryError(err)
			}
			offerings[serviceID] = loaded
			offering = loaded
		}
		if !offering.Active {
			return Order{}, fmt.Errorf("%w: service %q is not available", ErrOrderInvalidInput, serviceID)
		}
		lines = append(lines, domain.CartItem{
			ServiceRef: offering.ID,
			Name:       offering.Name,
			Quantity:   item.Quantity,
			UnitPrice:  offering.UnitPrice,
		})
	}

	breakdown := domain.PriceItems(lines)

	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	orderNumber := fmt.Sprintf("SL-%d-%06d", now.Year(), seq)

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		items = append(items, domain.OrderItem{
			ID:          "itm_" + s.idGenerator(),
			ServiceRef:  lines[i].ServiceRef,
			Name:        lines[i].Name,
			Description: s.sanitizer.Sanitize(strings.TrimSpace(item.Notes)),
			Quantity:    item.Quantity,
			UnitPrice:   lines[i].UnitPrice,
			Total:       lines[i].UnitPrice * int64(item.Quantity),
			PhotoRefs:   append([]string(nil), item.PhotoRefs...),
			Status:      domain.OrderItemStatusPending,
			CreatedAt:   now,
		})
	}

	order := domain.Order{
		ID:          "ord_" + s.idGenerator(),
		OrderNumber: orderNumber,
		CustomerID:  customerID,
		Status:      domain.OrderStatusPendingPayment,
		Currency:    breakdown.Currency,
		Totals: domain.OrderTotals{
			Subtotal:    breakdown.Subtotal,
			DeliveryFee: breakdown.DeliveryFee,
			Total:       breakdown.Total,
		},
		Contact: domain.OrderContact{
			Name:  strings.TrimSpace(cmd.Contact.Name),
			Email: strings.TrimSpace(cmd.Contact.Email),
			Phone: strings.TrimSpace(cmd.Contact.Phone),
		},
		Schedule:  cmd.Schedule,
		Notes:     s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes)),
		Metadata:  cloneMap(cmd.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	addr := cmd.Address
	order.Address = &addr

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if err := s.orderItems.InsertAll(ctx, order.ID, items); err != nil {
		// Items are the priced substance of the order; without them the
		// header is garbage, so undo the insert rather than strand it.
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			s.logger(ctx, "orders.create.compensation_failed", map[string]any{
				"orderId": order.ID,
				"error":   delErr.Error(),
			})
		}
		return Order{}, s.mapRepositoryError(err)
	}
	order.Items = items

	s.publishEvent(ctx, OrderEvent{
		Type:       "order.created",
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		OccurredAt: now,
	})

	return order, nil
}

// RequestPayment creates a fresh checkout session for a pending_payment order.
// A repeated call supersedes any previous session reference on the order.
func (s *orderService) RequestPayment(ctx context.Context, cmd RequestPaymentCommand) (Order, error) {
	if s.gateway == nil {
		return Order{}, fmt.Errorf("%w: no gateway configured", ErrPaymentGateway)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if customerID := strings.TrimSpace(cmd.CustomerID); customerID != "" && customerID != order.CustomerID {
		return Order{}, fmt.Errorf("%w: order belongs to another customer", ErrOrderForbidden)
	}
	if order.Status != domain.OrderStatusPendingPayment {
		return Order{}, fmt.Errorf("%w: payment can only be requested while pending, order is %s", ErrOrderInvalidState, order.Status)
	}

	items, err := s.orderItems.List(ctx, order.ID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	lineItems := make([]payments.CheckoutLineItem, 0, len(items)+1)
	for _, item := range items {
		lineItems = append(lineItems, payments.CheckoutLineItem{
			Name:     item.Name,
			Quantity: int64(item.Quantity),
			Amount:   item.UnitPrice,
		})
	}
	lineItems = append(lineItems, payments.CheckoutLineItem{
		Name:     "Pickup and delivery",
		Quantity: 1,
		Amount:   order.Totals.DeliveryFee,
	})

	session, err := s.gateway.CreateCheckoutSession(ctx, "", payments.CheckoutSessionRequest{
		OrderID:        order.ID,
		Amount:         order.Totals.Total,
		Currency:       order.Currency,
		CustomerEmail:  order.Contact.Email,
		SuccessURL:     cmd.SuccessURL,
		CancelURL:      cmd.CancelURL,
		IdempotencyKey: checkoutIdempotencyKey(order.ID, s.idGenerator()),
		Items:          lineItems,
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	now := s.clock()
	order.Checkout = &domain.CheckoutRef{
		Provider:    session.Provider,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		CreatedAt:   now,
		ExpiresAt:   valuePtr(session.ExpiresAt),
	}
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order.Items = items

	s.logger(ctx, "orders.payment.requested", map[string]any{
		"orderId":   order.ID,
		"sessionId": session.ID,
	})

	return order, nil
}

// ConfirmPayment applies a successful checkout notification. The sequence is
// ordered so a redelivered webhook resolves as a no-op at the earliest
// barrier it reaches: an existing payment record, then the status CAS, then
// the session-keyed payment insert.
func (s *orderService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	sessionID := strings.TrimSpace(cmd.SessionID)
	if orderID == "" || sessionID == "" {
		return Order{}, fmt.Errorf("%w: order id and session id are required", ErrOrderInvalidInput)
	}

	if _, err := s.payments.FindBySession(ctx, sessionID); err == nil {
		s.logger(ctx, "orders.payment.duplicate_delivery", map[string]any{
			"orderId":   orderID,
			"sessionId": sessionID,
		})
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		return order, nil
	} else if !isRepoNotFound(err) {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	order, err := s.orders.TransitionStatus(ctx, orderID, domain.OrderStatusPendingPayment, domain.OrderStatusBooked, repositories.OrderStatusUpdate{
		UpdatedAt: now,
		BookedAt:  valuePtr(now),
	})
	if err != nil {
		if isRepoConflict(err) {
			// The order already left pending_payment. If our session produced
			// the payment record this is a duplicate delivery; otherwise the
			// order was cancelled or paid through another session.
			if _, findErr := s.payments.FindBySession(ctx, sessionID); findErr == nil {
				current, loadErr := s.orders.FindByID(ctx, orderID)
				if loadErr != nil {
					return Order{}, s.mapRepositoryError(loadErr)
				}
				return current, nil
			}
			return Order{}, fmt.Errorf("%w: order is no longer awaiting payment", ErrOrderInvalidState)
		}
		return Order{}, s.mapRepositoryError(err)
	}

	payment := domain.Payment{
		ID:        sessionID,
		OrderID:   order.ID,
		Provider:  checkoutProvider(order.Checkout),
		SessionID: sessionID,
		IntentID:  paymentIntentFromRaw(cmd.Raw),
		Status:    string(payments.StatusSucceeded),
		Amount:    cmd.AmountPaid,
		Currency:  defaultCurrency(cmd.Currency, order.Currency),
		Raw:       cloneMap(cmd.Raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, payment); err != nil && !isRepoConflict(err) {
		return Order{}, s.mapRepositoryError(err)
	}

	// Post-confirmation cleanup is best effort: a failure here must not turn
	// a captured payment into a webhook retry loop.
	if s.reminders != nil {
		if _, err := s.reminders.MarkRecovered(ctx, order.CustomerID, now); err != nil {
			s.logger(ctx, "orders.payment.mark_recovered_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}
	if s.carts != nil {
		if err := s.carts.Delete(ctx, order.CustomerID); err != nil && !isRepoNotFound(err) {
			s.logger(ctx, "orders.payment.cart_cleanup_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       "order.paid",
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		OccurredAt: now,
	})

	return order, nil
}

// Transition moves an order along one adjacent lifecycle edge on behalf of an actor.
func (s *orderService) Transition(ctx context.Context, cmd TransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if cmd.Target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: use cancel for cancellation", ErrOrderInvalidInput)
	}
	if _, ok := orderStateTransitions[cmd.Target]; !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !canTransition(order.Status, cmd.Target) {
		return Order{}, fmt.Errorf("%w: cannot move from %s to %s", ErrOrderInvalidState, order.Status, cmd.Target)
	}
	if !roleAllowed(order.Status, cmd.Target, cmd.Role) {
		return Order{}, fmt.Errorf("%w: role %s may not perform this transition", ErrOrderForbidden, cmd.Role)
	}
	if err := s.checkAssignment(order, cmd.Role, cmd.ActorID); err != nil {
		return Order{}, err
	}

	now := s.clock()
	update := transitionTimestamps(cmd.Target, now)
	update.Metadata = cmd.Metadata

	updated, err := s.orders.TransitionStatus(ctx, orderID, order.Status, cmd.Target, update)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       "order.status_changed",
		OrderID:    updated.ID,
		CustomerID: updated.CustomerID,
		Status:     updated.Status,
		OccurredAt: now,
		Metadata:   map[string]any{"from": string(order.Status)},
	})

	return updated, nil
}

// Cancel voids an order. When a payment has been captured the refund is
// issued before the status flips so a gateway failure leaves the order in
// its current state for a retry.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: cancellation reason is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	switch order.Status {
	case domain.OrderStatusCompleted:
		return Order{}, fmt.Errorf("%w: completed orders cannot be cancelled", ErrOrderInvalidState)
	case domain.OrderStatusCancelled:
		return order, nil
	}

	switch cmd.Role {
	case domain.RoleAdmin, domain.RoleSystem:
	case domain.RoleCustomer:
		if strings.TrimSpace(cmd.ActorID) != order.CustomerID {
			return Order{}, fmt.Errorf("%w: order belongs to another customer", ErrOrderForbidden)
		}
		if !customerCancellable[order.Status] {
			return Order{}, fmt.Errorf("%w: customers cannot cancel once garments are collected", ErrOrderForbidden)
		}
	default:
		return Order{}, fmt.Errorf("%w: role %s may not cancel orders", ErrOrderForbidden, cmd.Role)
	}

	now := s.clock()

	captured, err := s.capturedPayment(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	if captured != nil {
		if s.gateway == nil {
			return Order{}, fmt.Errorf("%w: refund required but no gateway configured", ErrPaymentGateway)
		}
		result, err := s.gateway.Refund(ctx, captured.Provider, payments.RefundRequest{
			IntentID:       captured.IntentID,
			IdempotencyKey: checkoutIdempotencyKey(order.ID, "refund"),
			Reason:         "requested_by_customer",
			Metadata:       map[string]string{"orderId": order.ID},
		})
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
		}
		captured.Status = string(payments.StatusRefunded)
		captured.RefundID = valuePtr(result.RefundID)
		captured.RefundedAt = valuePtr(result.RefundedAt)
		captured.UpdatedAt = now
		if err := s.payments.Update(ctx, *captured); err != nil {
			s.logger(ctx, "orders.cancel.payment_update_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	updated, err := s.orders.TransitionStatus(ctx, orderID, order.Status, domain.OrderStatusCancelled, repositories.OrderStatusUpdate{
		UpdatedAt:    now,
		CancelledAt:  valuePtr(now),
		CancelReason: valuePtr(reason),
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       "order.cancelled",
		OrderID:    updated.ID,
		CustomerID: updated.CustomerID,
		Status:     updated.Status,
		OccurredAt: now,
		Metadata:   map[string]any{"reason": reason},
	})

	return updated, nil
}

// GetOrder loads an order with its garment lines, scoped to the requesting actor.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if err := s.checkReadScope(order, cmd.Role, cmd.ActorID); err != nil {
		return Order{}, err
	}

	items, err := s.orderItems.List(ctx, order.ID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order.Items = items
	return order, nil
}

// ListOrders returns a page of orders scoped to the actor's role.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	repoFilter := repositories.OrderListFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		AgentRef:   strings.TrimSpace(filter.AgentRef),
		Status:     filter.Status,
		DateRange:  domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Pagination: filter.Pagination,
	}

	switch filter.Role {
	case domain.RoleCustomer:
		repoFilter.CustomerID = strings.TrimSpace(filter.ActorID)
		if repoFilter.CustomerID == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
	case domain.RolePickupAgent:
		repoFilter.AgentRef = strings.TrimSpace(filter.ActorID)
		if repoFilter.AgentRef == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
	case domain.RoleAdmin, domain.RoleSystem, domain.RoleSpecialist:
	default:
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown role %q", ErrOrderForbidden, filter.Role)
	}

	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ListOrderItems returns the garment lines for an order.
func (s *orderService) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	items, err := s.orderItems.List(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return items, nil
}

func (s *orderService) checkAssignment(order domain.Order, role domain.ActorRole, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	switch role {
	case domain.RolePickupAgent:
		if order.AgentRef != nil && *order.AgentRef != actorID {
			return fmt.Errorf("%w: order is assigned to another agent", ErrOrderForbidden)
		}
	case domain.RoleSpecialist:
		if order.SpecialistRef != nil && *order.SpecialistRef != actorID {
			return fmt.Errorf("%w: order is assigned to another specialist", ErrOrderForbidden)
		}
	}
	return nil
}

func (s *orderService) checkReadScope(order domain.Order, role domain.ActorRole, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	switch role {
	case domain.RoleAdmin, domain.RoleSystem:
		return nil
	case domain.RoleCustomer:
		if order.CustomerID != actorID {
			return fmt.Errorf("%w: order belongs to another customer", ErrOrderForbidden)
		}
	case domain.RolePickupAgent:
		if order.AgentRef == nil || *order.AgentRef != actorID {
			return fmt.Errorf("%w: order is not assigned to this agent", ErrOrderForbidden)
		}
	case domain.RoleSpecialist:
		if order.SpecialistRef == nil || *order.SpecialistRef != actorID {
			return fmt.Errorf("%w: order is not assigned to this specialist", ErrOrderForbidden)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrOrderForbidden, role)
	}
	return nil
}

func (s *orderService) capturedPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	records, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, s.mapRepositoryError(err)
	}
	for i := range records {
		if records[i].Status == string(payments.StatusSucceeded) {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "orders.event.publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}

// transitionTimestamps returns the milestone fields to stamp for a target status.
func transitionTimestamps(target domain.OrderStatus, now time.Time) repositories.OrderStatusUpdate {
	update := repositories.OrderStatusUpdate{UpdatedAt: now}
	switch target {
	case domain.OrderStatusBooked:
		update.BookedAt = valuePtr(now)
	case domain.OrderStatusCollected:
		update.CollectedAt = valuePtr(now)
	case domain.OrderStatusReady:
		update.ReadyAt = valuePtr(now)
	case domain.OrderStatusDelivered:
		update.DeliveredAt = valuePtr(now)
	case domain.OrderStatusCompleted:
		update.CompletedAt = valuePtr(now)
	}
	return update
}

func checkoutIdempotencyKey(orderID, nonce string) string {
	sum := sha256.Sum256([]byte(orderID + ":" + nonce))
	return hex.EncodeToString(sum[:])
}

func checkoutProvider(ref *domain.CheckoutRef) string {
	if ref == nil || ref.Provider == "" {
		return "stripe"
	}
	return ref.Provider
}

func paymentIntentFromRaw(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	if v, ok := raw["payment_intent"].(string); ok {
		return v
	}
	return ""
}

func defaultCurrency(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.ToUpper(value)
	}
	if strings.TrimSpace(fallback) != "" {
		return strings.ToUpper(fallback)
	}
	return domain.DefaultCurrency
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func valuePtr[T any](v T) *T {
	return &v
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

var _ OrderService = (*orderService)(nil)
