package repositories

import (
	"context"
	"time"

	domain "github.com/seamline/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderItems() OrderItemRepository
	OrderPayments() OrderPaymentRepository
	Carts() CartRepository
	Reminders() ReminderRepository
	Catalog() CatalogRepository
	Users() UserRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order headers and provides lifecycle query helpers.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// TransitionStatus atomically moves an order from the expected status to
	// the target, applying the update fields inside the same transaction. It
	// must return a RepositoryError with IsConflict when the stored status no
	// longer matches expected.
	TransitionStatus(ctx context.Context, orderID string, expected domain.OrderStatus, target domain.OrderStatus, update OrderStatusUpdate) (domain.Order, error)
	// HasWithStatus reports whether the customer has any order in the given
	// status. The sweep uses it to suppress cart reminders for customers who
	// already have a checkout in flight.
	HasWithStatus(ctx context.Context, customerID string, status domain.OrderStatus) (bool, error)
}

// OrderStatusUpdate carries optional fields to mutate during a status transition.
type OrderStatusUpdate struct {
	UpdatedAt     time.Time
	BookedAt      *time.Time
	CollectedAt   *time.Time
	ReadyAt       *time.Time
	DeliveredAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
	Checkout      *domain.CheckoutRef
	ClearCheckout bool
	Metadata      map[string]any
}

// OrderItemRepository stores garment lines underneath an order document.
type OrderItemRepository interface {
	InsertAll(ctx context.Context, orderID string, items []domain.OrderItem) error
	List(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	UpdateStatus(ctx context.Context, orderID string, itemID string, status domain.OrderItemStatus, updatedAt time.Time) (domain.OrderItem, error)
}

// OrderPaymentRepository stores payment records keyed by gateway session ID.
type OrderPaymentRepository interface {
	// Create inserts a payment record whose document ID is the gateway
	// session ID. It must return a RepositoryError with IsConflict when a
	// record for the session already exists.
	Create(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	FindBySession(ctx context.Context, sessionID string) (domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// CartRepository owns saved-cart persistence with optimistic locking guarantees.
type CartRepository interface {
	Upsert(ctx context.Context, cart domain.SavedCart) (domain.SavedCart, error)
	Get(ctx context.Context, customerID string) (domain.SavedCart, error)
	Delete(ctx context.Context, customerID string) error
	// ListIdle returns non-empty carts whose last activity predates the
	// cutoff, oldest first.
	ListIdle(ctx context.Context, filter CartIdleFilter) (domain.CursorPage[domain.SavedCart], error)
}

// ReminderRepository is the abandonment send ledger. The document ID is the
// deterministic triple subjectID_family_sequence so duplicate sends surface
// as conflicts rather than silent double-writes.
type ReminderRepository interface {
	Create(ctx context.Context, reminder domain.Reminder) error
	FindByToken(ctx context.Context, token string) (domain.Reminder, error)
	ListBySubject(ctx context.Context, subjectID string, family domain.ReminderFamily) ([]domain.Reminder, error)
	// MarkClicked stamps ClickedAt once; later calls must leave the first
	// timestamp untouched and succeed.
	MarkClicked(ctx context.Context, reminderID string, clickedAt time.Time) (domain.Reminder, error)
	// MarkRecovered stamps RecoveredAt on every outstanding reminder for the
	// customer and returns how many rows were updated.
	MarkRecovered(ctx context.Context, customerID string, recoveredAt time.Time) (int, error)
}

// CatalogRepository stores alteration service offerings.
type CatalogRepository interface {
	Get(ctx context.Context, serviceID string) (domain.ServiceOffering, error)
	List(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[domain.ServiceOffering], error)
	Upsert(ctx context.Context, offering domain.ServiceOffering) (domain.ServiceOffering, error)
}

// UserRepository stores user profiles and supports reminder preferences.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	SetReminderOptOut(ctx context.Context, userID string, optOut bool, updatedAt time.Time) (domain.UserProfile, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	CustomerID string
	AgentRef   string
	Status     []domain.OrderStatus
	// CreatedBefore limits results to orders created before the cutoff,
	// oldest first. The sweep uses it to stream abandonment candidates.
	CreatedBefore *time.Time
	DateRange     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
}

type CartIdleFilter struct {
	LastActiveBefore time.Time
	Pagination       domain.Pagination
}

type ServiceListFilter struct {
	Category   *string
	ActiveOnly bool
	Pagination domain.Pagination
}
