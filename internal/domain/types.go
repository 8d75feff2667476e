package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPendingPayment indicates the order awaits payment completion.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	// OrderStatusBooked indicates payment succeeded and the booking is confirmed.
	OrderStatusBooked OrderStatus = "booked"
	// OrderStatusPickupScheduled indicates a pickup slot has been assigned.
	OrderStatusPickupScheduled OrderStatus = "pickup_scheduled"
	// OrderStatusCollected indicates the garments are with the pickup agent.
	OrderStatusCollected OrderStatus = "collected"
	// OrderStatusInProgress indicates a specialist is actively altering the garments.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusReady indicates alteration work is finished and awaits delivery handoff.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusOutForDelivery indicates the garments are on their way back to the customer.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the garments have been returned to the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCompleted indicates the order has been completed (post-delivery confirmation).
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order has been cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ActorRole identifies the category of actor requesting an order mutation.
type ActorRole string

const (
	// RoleCustomer is the customer who placed the order.
	RoleCustomer ActorRole = "customer"
	// RolePickupAgent collects and returns garments.
	RolePickupAgent ActorRole = "pickup_agent"
	// RoleSpecialist performs the alteration work.
	RoleSpecialist ActorRole = "specialist"
	// RoleAdmin is operations staff with override powers.
	RoleAdmin ActorRole = "admin"
	// RoleSystem marks transitions driven by webhooks and scheduled jobs.
	RoleSystem ActorRole = "system"
)

// Order captures order headers returned to handlers/services.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerID    string
	Status        OrderStatus
	Currency      string
	Totals        OrderTotals
	Items         []OrderItem
	Contact       OrderContact
	Address       *Address
	Schedule      OrderSchedule
	Notes         string
	AgentRef      *string
	SpecialistRef *string
	Checkout      *CheckoutRef
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	BookedAt      *time.Time
	CollectedAt   *time.Time
	ReadyAt       *time.Time
	DeliveredAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

// OrderTotals holds rolled-up monetary fields in pence.
type OrderTotals struct {
	Subtotal    int64
	DeliveryFee int64
	Total       int64
}

// OrderItemStatus tracks per-garment progress within an order.
type OrderItemStatus string

const (
	// OrderItemStatusPending indicates work on the garment has not started.
	OrderItemStatusPending OrderItemStatus = "pending"
	// OrderItemStatusInProgress indicates the garment is being altered.
	OrderItemStatusInProgress OrderItemStatus = "in_progress"
	// OrderItemStatusDone indicates work on the garment is finished.
	OrderItemStatusDone OrderItemStatus = "done"
)

// OrderItem stores a single garment/alteration line within an order.
type OrderItem struct {
	ID          string
	ServiceRef  string
	Name        string
	Description string
	Quantity    int
	UnitPrice   int64
	Total       int64
	PhotoRefs   []string
	Status      OrderItemStatus
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// OrderContact stores the customer contact snapshot for notifications.
type OrderContact struct {
	Name  string
	Email string
	Phone string
}

// OrderSchedule holds the requested pickup slot.
type OrderSchedule struct {
	PickupDate *time.Time
	TimeWindow string
}

// CheckoutRef stores PSP checkout session references on an order.
type CheckoutRef struct {
	Provider    string
	SessionID   string
	RedirectURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// Payment encapsulates payment status and PSP references for an order.
// The record ID equals the gateway session ID, which makes payment
// creation the idempotency barrier for webhook deliveries.
type Payment struct {
	ID         string
	OrderID    string
	Provider   string
	SessionID  string
	IntentID   string
	Status     string
	Amount     int64
	Currency   string
	RefundID   *string
	RefundedAt *time.Time
	Raw        map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavedCart aggregates a customer's autosaved draft booking. The document
// ID equals the customer ID so each customer has at most one.
type SavedCart struct {
	ID           string
	CustomerID   string
	Items        []CartItem
	BookingStep  string
	Metadata     map[string]any
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// CartItem stores a single draft alteration line within a saved cart.
type CartItem struct {
	ServiceRef  string
	Name        string
	Description string
	Quantity    int
	UnitPrice   int64
}

// ReminderFamily distinguishes the two abandonment flows.
type ReminderFamily string

const (
	// ReminderFamilyPayment targets orders stuck awaiting payment.
	ReminderFamilyPayment ReminderFamily = "payment"
	// ReminderFamilyCart targets idle saved carts.
	ReminderFamilyCart ReminderFamily = "cart"
)

// Reminder is one row of the abandonment send ledger. SubjectID is the
// order ID for the payment family and the customer ID for the cart family.
type Reminder struct {
	ID          string
	SubjectID   string
	CustomerID  string
	Family      ReminderFamily
	Sequence    int
	Token       string
	Email       string
	SentAt      time.Time
	ClickedAt   *time.Time
	RecoveredAt *time.Time
}

// RecoveryOutcome enumerates what a recovery link resolves to.
type RecoveryOutcome string

const (
	// RecoveryOutcomeResumeCheckout sends the customer back to a live checkout.
	RecoveryOutcomeResumeCheckout RecoveryOutcome = "resume_checkout"
	// RecoveryOutcomeAlreadyProcessed means the order moved on since the reminder.
	RecoveryOutcomeAlreadyProcessed RecoveryOutcome = "already_processed"
	// RecoveryOutcomeRestoreCart returns the saved cart for the client to restore.
	RecoveryOutcomeRestoreCart RecoveryOutcome = "restore_cart"
	// RecoveryOutcomeCartUnavailable means the cart was recovered, cleared, or deleted.
	RecoveryOutcomeCartUnavailable RecoveryOutcome = "cart_unavailable"
)

// Resolution describes the result of following a recovery link.
type Resolution struct {
	Outcome     RecoveryOutcome
	Family      ReminderFamily
	OrderID     string
	CheckoutURL string
	Cart        *SavedCart
	BookingStep string
}

// ServiceOffering describes one alteration service from the catalog.
type ServiceOffering struct {
	ID        string
	Name      string
	Category  string
	UnitPrice int64
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address represents postal address structures shared by user and order layers.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	PostalCode string
	Country    string
	Phone      *string
}

// UserProfile captures the canonical projection of a marketplace user.
type UserProfile struct {
	ID             string
	DisplayName    string
	Email          string
	PhoneNumber    string
	Roles          []ActorRole
	IsActive       bool
	ReminderOptOut bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
