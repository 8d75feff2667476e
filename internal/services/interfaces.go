package services

import (
	"context"
	"time"

	domain "github.com/seamline/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination       = domain.Pagination
	Order            = domain.Order
	OrderStatus      = domain.OrderStatus
	OrderTotals      = domain.OrderTotals
	OrderItem        = domain.OrderItem
	OrderContact     = domain.OrderContact
	OrderSchedule    = domain.OrderSchedule
	CheckoutRef      = domain.CheckoutRef
	ActorRole        = domain.ActorRole
	Payment          = domain.Payment
	SavedCart        = domain.SavedCart
	CartItem         = domain.CartItem
	Reminder         = domain.Reminder
	ReminderFamily   = domain.ReminderFamily
	RecoveryOutcome  = domain.RecoveryOutcome
	Resolution       = domain.Resolution
	ServiceOffering  = domain.ServiceOffering
	Address          = domain.Address
	UserProfile      = domain.UserProfile
	PricingBreakdown = domain.PricingBreakdown
)

// OrderService owns the order lifecycle: creation, payment confirmation,
// status transitions, and cancellation with compensating refunds.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	RequestPayment(ctx context.Context, cmd RequestPaymentCommand) (Order, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
	Transition(ctx context.Context, cmd TransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
}

// CartService persists draft booking state keyed by customer.
type CartService interface {
	SaveCart(ctx context.Context, cmd SaveCartCommand) (SavedCart, error)
	GetCart(ctx context.Context, customerID string) (SavedCart, error)
	DeleteCart(ctx context.Context, customerID string) error
}

// SweepService walks abandoned checkouts and idle carts, sending staged
// reminders and expiring orders that outlived their payment window.
type SweepService interface {
	RunSweep(ctx context.Context, cmd SweepCommand) (SweepReport, error)
}

// RecoveryService resolves reminder tokens into a redirect decision.
type RecoveryService interface {
	Resolve(ctx context.Context, token string) (Resolution, error)
}

// PaymentWebhookService verifies and applies provider webhook deliveries.
type PaymentWebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error)
}

// CatalogService exposes the alteration service offerings.
type CatalogService interface {
	GetService(ctx context.Context, serviceID string) (ServiceOffering, error)
	ListServices(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[ServiceOffering], error)
	UpsertService(ctx context.Context, cmd UpsertServiceCommand) (ServiceOffering, error)
}

// UserService manages profiles and reminder preferences.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	SetReminderOptOut(ctx context.Context, cmd ReminderOptOutCommand) (UserProfile, error)
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// OrderEventPublisher emits lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// Command and DTO definitions ------------------------------------------------

type CreateOrderCommand struct {
	CustomerID string
	Items      []CreateOrderItem
	Contact    OrderContact
	Address    Address
	Schedule   OrderSchedule
	Notes      string
	Metadata   map[string]any
}

type CreateOrderItem struct {
	ServiceID string
	GarmentID string
	Quantity  int
	Notes     string
	PhotoRefs []string
}

type RequestPaymentCommand struct {
	OrderID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

type ConfirmPaymentCommand struct {
	OrderID    string
	SessionID  string
	AmountPaid int64
	Currency   string
	Raw        map[string]any
}

type TransitionCommand struct {
	OrderID  string
	Target   OrderStatus
	ActorID  string
	Role     ActorRole
	Metadata map[string]any
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Role    ActorRole
	Reason  string
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	Role    ActorRole
}

type OrderListFilter struct {
	CustomerID string
	AgentRef   string
	Status     []OrderStatus
	From       *time.Time
	To         *time.Time
	Pagination Pagination
	ActorID    string
	Role       ActorRole
}

type SaveCartCommand struct {
	CustomerID  string
	Items       []CartItem
	BookingStep string
	Metadata    map[string]any
}

type SweepCommand struct {
	Now      time.Time
	BatchCap int
	DryRun   bool
}

// SweepReport summarises one sweep run for logging and the trigger response.
type SweepReport struct {
	StartedAt        time.Time      `json:"startedAt"`
	FinishedAt       time.Time      `json:"finishedAt"`
	PaymentReminders int            `json:"paymentReminders"`
	CartReminders    int            `json:"cartReminders"`
	OrdersCancelled  int            `json:"ordersCancelled"`
	CartsDeleted     int            `json:"cartsDeleted"`
	Skipped          int            `json:"skipped"`
	Failures         []SweepFailure `json:"failures,omitempty"`
	ReachedCap       bool           `json:"reachedCap"`
}

type SweepFailure struct {
	SubjectID string `json:"subjectId"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// ReminderMailer delivers abandonment reminder emails.
type ReminderMailer interface {
	SendReminder(ctx context.Context, msg ReminderMessage) error
}

// ReminderMessage carries everything the mail layer needs to render one reminder.
type ReminderMessage struct {
	To          string
	CustomerID  string
	Family      ReminderFamily
	Sequence    int
	OrderNumber string
	Amount      int64
	Currency    string
	ItemCount   int
	RecoveryURL string
}

type WebhookResult struct {
	EventType string
	OrderID   string
	Ignored   bool
}

type ServiceListFilter struct {
	Category   string
	ActiveOnly bool
	Pagination Pagination
}

type UpsertServiceCommand struct {
	ServiceID string
	Name      string
	Category  string
	UnitPrice int64
	Active    bool
}

type UpdateProfileCommand struct {
	UserID      string
	DisplayName *string
	Email       *string
	PhoneNumber *string
}

type ReminderOptOutCommand struct {
	UserID string
	OptOut bool
}

type HealthReport struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
	Firestore string    `json:"firestore"`
}

// OrderEvent is the envelope published on order lifecycle changes.
type OrderEvent struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId"`
	CustomerID string         `json:"customerId"`
	Status     OrderStatus    `json:"status"`
	OccurredAt time.Time      `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
