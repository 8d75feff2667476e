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

const servicesCollection = "services"

// CatalogRepository stores the alteration service offerings customers book from.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[serviceDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		base: pfirestore.NewBaseRepository[serviceDocument](provider, servicesCollection, nil),
	}, nil
}

// Get loads a single service offering.
func (r *CatalogRepository) Get(ctx context.Context, serviceID string) (domain.ServiceOffering, error) {
	if r == nil || r.base == nil {
		return domain.ServiceOffering{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(serviceID))
	if err != nil {
		return domain.ServiceOffering{}, err
	}
	return decodeService(doc.ID, doc.Data), nil
}

// List returns service offerings matching the filter, ordered by name.
func (r *CatalogRepository) List(ctx context.Context, filter repositories.ServiceListFilter) (domain.CursorPage[domain.ServiceOffering], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.ServiceOffering]{}, errors.New("catalog repository not initialised")
	}

	pager := pagination.Must(pagination.Params{PageSize: filter.Pagination.PageSize})
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.ServiceOffering]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Category != nil {
			q = q.Where("category", "==", strings.TrimSpace(*filter.Category))
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pager.PageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.ServiceOffering]{}, err
	}

	page := domain.CursorPage[domain.ServiceOffering]{Items: make([]domain.ServiceOffering, 0, len(docs))}
	hasMore := len(docs) > pager.PageSize
	if hasMore {
		docs = docs[:pager.PageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeService(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{docs[len(docs)-1].Data.Name}})
		if err != nil {
			return domain.CursorPage[domain.ServiceOffering]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// Upsert writes a service offering document.
func (r *CatalogRepository) Upsert(ctx context.Context, offering domain.ServiceOffering) (domain.ServiceOffering, error) {
	if r == nil || r.base == nil {
		return domain.ServiceOffering{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(offering.ID)
	if id == "" {
		return domain.ServiceOffering{}, errors.New("catalog repository: service id is required")
	}
	doc := encodeService(offering)
	if _, err := r.base.Set(ctx, id, doc); err != nil {
		return domain.ServiceOffering{}, err
	}
	return decodeService(id, doc), nil
}

type serviceDocument struct {
	Name      string    `firestore:"name"`
	Category  string    `firestore:"category"`
	UnitPrice int64     `firestore:"unitPrice"`
	Currency  string    `firestore:"currency"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func encodeService(offering domain.ServiceOffering) serviceDocument {
	return serviceDocument{
		Name:      strings.TrimSpace(offering.Name),
		Category:  strings.TrimSpace(offering.Category),
		UnitPrice: offering.UnitPrice,
		Currency:  strings.ToUpper(strings.TrimSpace(offering.Currency)),
		Active:    offering.Active,
		CreatedAt: offering.CreatedAt.UTC(),
		UpdatedAt: offering.UpdatedAt.UTC(),
	}
}

func decodeService(id string, doc serviceDocument) domain.ServiceOffering {
	return domain.ServiceOffering{
		ID:        id,
		Name:      doc.Name,
		Category:  doc.Category,
		UnitPrice: doc.UnitPrice,
		Currency:  doc.Currency,
		Active:    doc.Active,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
