package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seamline/api/internal/domain"
	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/platform/pagination"
	"github.com/seamline/api/internal/repositories"
)

const cartsCollection = "carts"

// CartRepository persists autosaved draft bookings. The document ID is the
// customer ID so each customer has at most one saved cart.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil),
	}, nil
}

// Upsert writes the saved cart under the customer ID.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.SavedCart) (domain.SavedCart, error) {
	if r == nil || r.base == nil {
		return domain.SavedCart{}, errors.New("cart repository not initialised")
	}
	customerID := strings.TrimSpace(cart.CustomerID)
	if customerID == "" {
		customerID = strings.TrimSpace(cart.ID)
	}
	if customerID == "" {
		return domain.SavedCart{}, errors.New("cart repository: customer id is required")
	}

	doc := encodeCart(cart)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.LastActiveAt
	}
	if _, err := r.base.Set(ctx, customerID, doc); err != nil {
		return domain.SavedCart{}, err
	}
	return decodeCart(customerID, doc), nil
}

// Get loads the saved cart for the given customer ID.
func (r *CartRepository) Get(ctx context.Context, customerID string) (domain.SavedCart, error) {
	if r == nil || r.base == nil {
		return domain.SavedCart{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.SavedCart{}, err
	}
	return decodeCart(doc.ID, doc.Data), nil
}

// Delete removes the saved cart. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, customerID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(customerID))
}

// ListIdle streams non-empty carts whose last activity predates the cutoff,
// oldest first, for the abandonment sweep.
func (r *CartRepository) ListIdle(ctx context.Context, filter repositories.CartIdleFilter) (domain.CursorPage[domain.SavedCart], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.SavedCart]{}, errors.New("cart repository not initialised")
	}

	pager := pagination.Must(pagination.Params{PageSize: filter.Pagination.PageSize})
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.SavedCart]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.
			Where("lastActiveAt", "<", filter.LastActiveBefore.UTC()).
			OrderBy("lastActiveAt", firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pager.PageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.SavedCart]{}, err
	}

	page := domain.CursorPage[domain.SavedCart]{Items: make([]domain.SavedCart, 0, len(docs))}
	hasMore := len(docs) > pager.PageSize
	if hasMore {
		docs = docs[:pager.PageSize]
	}
	for _, doc := range docs {
		// Empty carts still page through so the cursor advances; callers
		// decide whether an empty cart is a reminder candidate or garbage.
		page.Items = append(page.Items, decodeCart(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Data.LastActiveAt}})
		if err != nil {
			return domain.CursorPage[domain.SavedCart]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type cartDocument struct {
	Items        []cartItemDocument `firestore:"items"`
	ItemsCount   int                `firestore:"itemsCount"`
	BookingStep  string             `firestore:"bookingStep,omitempty"`
	Metadata     map[string]any     `firestore:"metadata,omitempty"`
	CreatedAt    time.Time          `firestore:"createdAt"`
	LastActiveAt time.Time          `firestore:"lastActiveAt"`
}

type cartItemDocument struct {
	ServiceRef  string `firestore:"serviceRef"`
	Name        string `firestore:"name"`
	Description string `firestore:"description,omitempty"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
}

func encodeCart(cart domain.SavedCart) cartDocument {
	doc := cartDocument{
		Items:        make([]cartItemDocument, 0, len(cart.Items)),
		ItemsCount:   len(cart.Items),
		BookingStep:  strings.TrimSpace(cart.BookingStep),
		Metadata:     cart.Metadata,
		CreatedAt:    cart.CreatedAt.UTC(),
		LastActiveAt: cart.LastActiveAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ServiceRef:  strings.TrimSpace(item.ServiceRef),
			Name:        strings.TrimSpace(item.Name),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return doc
}

func decodeCart(id string, doc cartDocument) domain.SavedCart {
	cart := domain.SavedCart{
		ID:           id,
		CustomerID:   id,
		Items:        make([]domain.CartItem, 0, len(doc.Items)),
		BookingStep:  doc.BookingStep,
		Metadata:     doc.Metadata,
		CreatedAt:    doc.CreatedAt,
		LastActiveAt: doc.LastActiveAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ServiceRef:  item.ServiceRef,
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
