package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/seamline/api/internal/domain"
	"github.com/seamline/api/internal/repositories"
)

// Sentinel errors returned by the catalog service.
var (
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	ErrCatalogNotFound     = errors.New("catalog: service not found")
)

// CatalogServiceDeps aggregates dependencies for NewCatalogService.
type CatalogServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Sanitizer   *bluemonday.Policy
	Clock       Clock
	IDGenerator IDGenerator
	Logger      Logger
}

type catalogService struct {
	catalog     repositories.CatalogRepository
	sanitizer   *bluemonday.Policy
	clock       Clock
	idGenerator IDGenerator
	logger      Logger
}

// NewCatalogService wires the alteration-service catalog with its dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service requires catalog repository")
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
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

	return &catalogService{
		catalog:   deps.Catalog,
		sanitizer: sanitizer,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGenerator: idGen,
		logger:      logger,
	}, nil
}

func (s *catalogService) GetService(ctx context.Context, serviceID string) (ServiceOffering, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return ServiceOffering{}, fmt.Errorf("%w: service id is required", ErrCatalogInvalidInput)
	}
	offering, err := s.catalog.Get(ctx, serviceID)
	if err != nil {
		if isRepoNotFound(err) {
			return ServiceOffering{}, fmt.Errorf("%w: %s", ErrCatalogNotFound, serviceID)
		}
		return ServiceOffering{}, err
	}
	return offering, nil
}

func (s *catalogService) ListServices(ctx context.Context, filter ServiceListFilter) (domain.CursorPage[ServiceOffering], error) {
	repoFilter := repositories.ServiceListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		repoFilter.Category = &category
	}
	page, err := s.catalog.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[ServiceOffering]{}, err
	}
	return page, nil
}

// UpsertService creates or replaces an offering. Prices change by writing a
// new value; orders snapshot the price at creation so history is unaffected.
func (s *catalogService) UpsertService(ctx context.Context, cmd UpsertServiceCommand) (ServiceOffering, error) {
	name := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Name))
	if name == "" {
		return ServiceOffering{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.UnitPrice < 0 {
		return ServiceOffering{}, fmt.Errorf("%w: unit price must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	offering := domain.ServiceOffering{
		ID:        strings.TrimSpace(cmd.ServiceID),
		Name:      name,
		Category:  s.sanitizer.Sanitize(strings.TrimSpace(cmd.Category)),
		UnitPrice: cmd.UnitPrice,
		Currency:  domain.DefaultCurrency,
		Active:    cmd.Active,
		UpdatedAt: now,
	}
	if offering.ID == "" {
		offering.ID = fmt.Sprintf("svc_%s", s.idGenerator())
		offering.CreatedAt = now
	}

	saved, err := s.catalog.Upsert(ctx, offering)
	if err != nil {
		return ServiceOffering{}, err
	}
	s.logger(ctx, "catalog.upserted", map[string]any{
		"serviceId": saved.ID,
		"active":    saved.Active,
	})
	return saved, nil
}

var _ CatalogService = (*catalogService)(nil)
