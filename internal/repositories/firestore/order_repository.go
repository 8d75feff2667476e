package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seamline/api/internal/domain"
	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/platform/pagination"
	"github.com/seamline/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order headers within Firestore. Garment lines live
// in a subcollection owned by OrderItemRepository.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
		provider: provider,
	}, nil
}

// Insert creates the order header document, failing on duplicate IDs.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Create(ctx, id, encodeOrder(order))
	return err
}

// Update replaces the order header document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Set(ctx, id, encodeOrder(order))
	return err
}

// Delete removes the order header. Used as the compensating action when
// persisting garment lines fails halfway through order creation.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(orderID))
}

// FindByID loads the order header for the given ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// TransitionStatus atomically moves the order between statuses. The stored
// status is re-read inside the transaction and compared against expected so
// concurrent writers surface as conflicts instead of lost updates.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID string, expected domain.OrderStatus, target domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var result domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		if domain.OrderStatus(doc.Status) != expected {
			return pfirestore.WrapError("orders.transition", newStatusConflict(id, doc.Status, expected))
		}

		doc.Status = string(target)
		doc.UpdatedAt = update.UpdatedAt.UTC()
		applyStatusUpdate(&doc, update)

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = decodeOrder(id, doc)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

// List queries order headers with the supplied filter, oldest first when a
// CreatedBefore cutoff is given (the sweep path), newest first otherwise.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pager := pagination.Must(pagination.Params{PageSize: filter.Pagination.PageSize, PageToken: filter.Pagination.PageToken})
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
			q = q.Where("customerId", "==", customerID)
		}
		if agentRef := strings.TrimSpace(filter.AgentRef); agentRef != "" {
			q = q.Where("agentRef", "==", agentRef)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", string(filter.Status[0]))
		} else if len(filter.Status) > 1 {
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			q = q.Where("status", "in", statuses)
		}
		direction := firestore.Desc
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", filter.CreatedBefore.UTC())
			direction = firestore.Asc
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", direction)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pager.PageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	hasMore := len(docs) > pager.PageSize
	if hasMore {
		docs = docs[:pager.PageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Data.CreatedAt}})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// HasWithStatus reports whether the customer has any order in the given status.
func (r *OrderRepository) HasWithStatus(ctx context.Context, customerID string, status domain.OrderStatus) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("customerId", "==", strings.TrimSpace(customerID)).
			Where("status", "==", string(status)).
			Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func applyStatusUpdate(doc *orderDocument, update repositories.OrderStatusUpdate) {
	setTime := func(dst **time.Time, src *time.Time) {
		if src != nil {
			utc := src.UTC()
			*dst = &utc
		}
	}
	setTime(&doc.BookedAt, update.BookedAt)
	setTime(&doc.CollectedAt, update.CollectedAt)
	setTime(&doc.ReadyAt, update.ReadyAt)
	setTime(&doc.DeliveredAt, update.DeliveredAt)
	setTime(&doc.CompletedAt, update.CompletedAt)
	setTime(&doc.CancelledAt, update.CancelledAt)
	if update.CancelReason != nil {
		doc.CancelReason = strings.TrimSpace(*update.CancelReason)
	}
	if update.ClearCheckout {
		doc.Checkout = nil
	} else if update.Checkout != nil {
		doc.Checkout = encodeCheckoutRef(update.Checkout)
	}
	if len(update.Metadata) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			doc.Metadata[k] = v
		}
	}
}

type statusConflictError struct {
	orderID  string
	actual   string
	expected domain.OrderStatus
}

func newStatusConflict(orderID, actual string, expected domain.OrderStatus) *statusConflictError {
	return &statusConflictError{orderID: orderID, actual: actual, expected: expected}
}

func (e *statusConflictError) Error() string {
	return fmt.Sprintf("order %s is %s, expected %s", e.orderID, e.actual, e.expected)
}

func (e *statusConflictError) IsNotFound() bool    { return false }
func (e *statusConflictError) IsConflict() bool    { return true }
func (e *statusConflictError) IsUnavailable() bool { return false }

type orderDocument struct {
	OrderNumber   string                `firestore:"orderNumber"`
	CustomerID    string                `firestore:"customerId"`
	Status        string                `firestore:"status"`
	Currency      string                `firestore:"currency"`
	Subtotal      int64                 `firestore:"subtotal"`
	DeliveryFee   int64                 `firestore:"deliveryFee"`
	Total         int64                 `firestore:"total"`
	ContactName   string                `firestore:"contactName"`
	ContactEmail  string                `firestore:"contactEmail"`
	ContactPhone  string                `firestore:"contactPhone,omitempty"`
	Address       *addressDocument      `firestore:"address,omitempty"`
	PickupDate    *time.Time            `firestore:"pickupDate,omitempty"`
	TimeWindow    string                `firestore:"timeWindow,omitempty"`
	Notes         string                `firestore:"notes,omitempty"`
	AgentRef      string                `firestore:"agentRef,omitempty"`
	SpecialistRef string                `firestore:"specialistRef,omitempty"`
	Checkout      *checkoutRefDocument  `firestore:"checkout,omitempty"`
	Metadata      map[string]any        `firestore:"metadata,omitempty"`
	CreatedAt     time.Time             `firestore:"createdAt"`
	UpdatedAt     time.Time             `firestore:"updatedAt"`
	BookedAt      *time.Time            `firestore:"bookedAt,omitempty"`
	CollectedAt   *time.Time            `firestore:"collectedAt,omitempty"`
	ReadyAt       *time.Time            `firestore:"readyAt,omitempty"`
	DeliveredAt   *time.Time            `firestore:"deliveredAt,omitempty"`
	CompletedAt   *time.Time            `firestore:"completedAt,omitempty"`
	CancelledAt   *time.Time            `firestore:"cancelledAt,omitempty"`
	CancelReason  string                `firestore:"cancelReason,omitempty"`
}

type addressDocument struct {
	Recipient  string `firestore:"recipient"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type checkoutRefDocument struct {
	Provider    string     `firestore:"provider"`
	SessionID   string     `firestore:"sessionId"`
	RedirectURL string     `firestore:"redirectUrl,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	ExpiresAt   *time.Time `firestore:"expiresAt,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		CustomerID:   strings.TrimSpace(order.CustomerID),
		Status:       string(order.Status),
		Currency:     strings.ToUpper(strings.TrimSpace(order.Currency)),
		Subtotal:     order.Totals.Subtotal,
		DeliveryFee:  order.Totals.DeliveryFee,
		Total:        order.Totals.Total,
		ContactName:  strings.TrimSpace(order.Contact.Name),
		ContactEmail: strings.TrimSpace(order.Contact.Email),
		ContactPhone: strings.TrimSpace(order.Contact.Phone),
		TimeWindow:   strings.TrimSpace(order.Schedule.TimeWindow),
		Notes:        order.Notes,
		Metadata:     order.Metadata,
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
		BookedAt:     utcPtr(order.BookedAt),
		CollectedAt:  utcPtr(order.CollectedAt),
		ReadyAt:      utcPtr(order.ReadyAt),
		DeliveredAt:  utcPtr(order.DeliveredAt),
		CompletedAt:  utcPtr(order.CompletedAt),
		CancelledAt:  utcPtr(order.CancelledAt),
	}
	if order.Schedule.PickupDate != nil {
		doc.PickupDate = utcPtr(order.Schedule.PickupDate)
	}
	if order.AgentRef != nil {
		doc.AgentRef = strings.TrimSpace(*order.AgentRef)
	}
	if order.SpecialistRef != nil {
		doc.SpecialistRef = strings.TrimSpace(*order.SpecialistRef)
	}
	if order.CancelReason != nil {
		doc.CancelReason = strings.TrimSpace(*order.CancelReason)
	}
	if order.Address != nil {
		doc.Address = encodeAddress(order.Address)
	}
	doc.Checkout = encodeCheckoutRef(order.Checkout)
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		CustomerID:  doc.CustomerID,
		Status:      domain.OrderStatus(doc.Status),
		Currency:    doc.Currency,
		Totals: domain.OrderTotals{
			Subtotal:    doc.Subtotal,
			DeliveryFee: doc.DeliveryFee,
			Total:       doc.Total,
		},
		Contact: domain.OrderContact{
			Name:  doc.ContactName,
			Email: doc.ContactEmail,
			Phone: doc.ContactPhone,
		},
		Schedule: domain.OrderSchedule{
			PickupDate: doc.PickupDate,
			TimeWindow: doc.TimeWindow,
		},
		Notes:       doc.Notes,
		Metadata:    doc.Metadata,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		BookedAt:    doc.BookedAt,
		CollectedAt: doc.CollectedAt,
		ReadyAt:     doc.ReadyAt,
		DeliveredAt: doc.DeliveredAt,
		CompletedAt: doc.CompletedAt,
		CancelledAt: doc.CancelledAt,
	}
	if doc.AgentRef != "" {
		order.AgentRef = &doc.AgentRef
	}
	if doc.SpecialistRef != "" {
		order.SpecialistRef = &doc.SpecialistRef
	}
	if doc.CancelReason != "" {
		order.CancelReason = &doc.CancelReason
	}
	if doc.Address != nil {
		order.Address = decodeAddress(doc.Address)
	}
	if doc.Checkout != nil {
		order.Checkout = &domain.CheckoutRef{
			Provider:    doc.Checkout.Provider,
			SessionID:   doc.Checkout.SessionID,
			RedirectURL: doc.Checkout.RedirectURL,
			CreatedAt:   doc.Checkout.CreatedAt,
			ExpiresAt:   doc.Checkout.ExpiresAt,
		}
	}
	return order
}

func encodeCheckoutRef(ref *domain.CheckoutRef) *checkoutRefDocument {
	if ref == nil {
		return nil
	}
	return &checkoutRefDocument{
		Provider:    strings.TrimSpace(ref.Provider),
		SessionID:   strings.TrimSpace(ref.SessionID),
		RedirectURL: strings.TrimSpace(ref.RedirectURL),
		CreatedAt:   ref.CreatedAt.UTC(),
		ExpiresAt:   utcPtr(ref.ExpiresAt),
	}
}

func encodeAddress(addr *domain.Address) *addressDocument {
	doc := &addressDocument{
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		City:       strings.TrimSpace(addr.City),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
	if addr.Line2 != nil {
		doc.Line2 = strings.TrimSpace(*addr.Line2)
	}
	if addr.Phone != nil {
		doc.Phone = strings.TrimSpace(*addr.Phone)
	}
	return doc
}

func decodeAddress(doc *addressDocument) *domain.Address {
	addr := &domain.Address{
		Recipient:  doc.Recipient,
		Line1:      doc.Line1,
		City:       doc.City,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
	}
	if doc.Line2 != "" {
		addr.Line2 = &doc.Line2
	}
	if doc.Phone != "" {
		addr.Phone = &doc.Phone
	}
	return addr
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
