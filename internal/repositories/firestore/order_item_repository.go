package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/seamline/api/internal/domain"
	pfirestore "github.com/seamline/api/internal/platform/firestore"
	"github.com/seamline/api/internal/repositories"
)

const orderItemsSubcollection = "items"

// OrderItemRepository stores garment lines in a subcollection beneath each order.
type OrderItemRepository struct {
	provider *pfirestore.Provider
}

// NewOrderItemRepository constructs a Firestore-backed order item repository.
func NewOrderItemRepository(provider *pfirestore.Provider) (*OrderItemRepository, error) {
	if provider == nil {
		return nil, errors.New("order item repository requires firestore provider")
	}
	return &OrderItemRepository{provider: provider}, nil
}

// InsertAll writes every garment line in a single batched commit so a partial
// failure leaves no stray lines behind.
func (r *OrderItemRepository) InsertAll(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if r == nil || r.provider == nil {
		return errors.New("order item repository not initialised")
	}
	coll, err := r.collection(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.New("order item repository: at least one item is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	writer := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			writer.End()
			return errors.New("order item repository: item id is required")
		}
		job, err := writer.Create(coll.Doc(id), encodeOrderItem(item))
		if err != nil {
			writer.End()
			return pfirestore.WrapError("orderItems.insert", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pfirestore.WrapError("orderItems.insert", err)
		}
	}
	return nil
}

// List returns the garment lines for an order sorted by creation time.
func (r *OrderItemRepository) List(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order item repository not initialised")
	}
	coll, err := r.collection(ctx, orderID)
	if err != nil {
		return nil, err
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()

	var items []domain.OrderItem
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orderItems.list", err)
		}
		var doc orderItemDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore order items decode %s: %w", snapshot.Ref.ID, err)
		}
		items = append(items, decodeOrderItem(snapshot.Ref.ID, doc))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// UpdateStatus moves a single garment line between work states.
func (r *OrderItemRepository) UpdateStatus(ctx context.Context, orderID string, itemID string, status domain.OrderItemStatus, updatedAt time.Time) (domain.OrderItem, error) {
	if r == nil || r.provider == nil {
		return domain.OrderItem{}, errors.New("order item repository not initialised")
	}
	coll, err := r.collection(ctx, orderID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.OrderItem{}, errors.New("order item repository: item id is required")
	}

	ref := coll.Doc(id)
	if _, err := ref.Update(ctx, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}); err != nil {
		return domain.OrderItem{}, pfirestore.WrapError("orderItems.updateStatus", err)
	}

	snapshot, err := ref.Get(ctx)
	if err != nil {
		return domain.OrderItem{}, pfirestore.WrapError("orderItems.get", err)
	}
	var doc orderItemDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.OrderItem{}, fmt.Errorf("firestore order items decode %s: %w", id, err)
	}
	return decodeOrderItem(id, doc), nil
}

func (r *OrderItemRepository) collection(ctx context.Context, orderID string) (*firestore.CollectionRef, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("order item repository: order id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(ordersCollection).Doc(id).Collection(orderItemsSubcollection), nil
}

type orderItemDocument struct {
	ServiceRef  string     `firestore:"serviceRef"`
	Name        string     `firestore:"name"`
	Description string     `firestore:"description,omitempty"`
	Quantity    int        `firestore:"quantity"`
	UnitPrice   int64      `firestore:"unitPrice"`
	Total       int64      `firestore:"total"`
	PhotoRefs   []string   `firestore:"photoRefs,omitempty"`
	Status      string     `firestore:"status"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   *time.Time `firestore:"updatedAt,omitempty"`
}

func encodeOrderItem(item domain.OrderItem) orderItemDocument {
	return orderItemDocument{
		ServiceRef:  strings.TrimSpace(item.ServiceRef),
		Name:        strings.TrimSpace(item.Name),
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Total:       item.Total,
		PhotoRefs:   item.PhotoRefs,
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(item.UpdatedAt),
	}
}

func decodeOrderItem(id string, doc orderItemDocument) domain.OrderItem {
	return domain.OrderItem{
		ID:          id,
		ServiceRef:  doc.ServiceRef,
		Name:        doc.Name,
		Description: doc.Description,
		Quantity:    doc.Quantity,
		UnitPrice:   doc.UnitPrice,
		Total:       doc.Total,
		PhotoRefs:   doc.PhotoRefs,
		Status:      domain.OrderItemStatus(doc.Status),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.OrderItemRepository = (*OrderItemRepository)(nil)
