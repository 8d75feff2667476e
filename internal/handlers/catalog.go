package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/auth"
	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const (
	defaultServicePageSize = 50
	maxServicePageSize     = 200
	maxServiceBodySize     = 16 * 1024
)

// CatalogHandlers exposes the alteration service catalog. Reads are public;
// writes are mounted under /admin with an admin role requirement.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the public /services endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listServices)
	r.Get("/{serviceID}", h.getService)
}

// AdminRoutes registers the catalog management endpoints.
func (h *CatalogHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleAdmin))
	}
	r.Post("/services", h.upsertService)
	r.Put("/services/{serviceID}", h.upsertService)
}

type upsertServiceRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitPrice int64  `json:"unit_price"`
	Active    bool   `json:"active"`
}

type serviceResponse struct {
	Service servicePayload `json:"service"`
}

type serviceListResponse struct {
	Items         []servicePayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type servicePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (h *CatalogHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	pageSize := defaultServicePageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultServicePageSize
		case size > maxServicePageSize:
			pageSize = maxServicePageSize
		default:
			pageSize = size
		}
	}

	filter := services.ServiceListFilter{
		Category:   strings.TrimSpace(query.Get("category")),
		ActiveOnly: query.Get("include_inactive") != "true",
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	page, err := h.catalog.ListServices(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]servicePayload, 0, len(page.Items))
	for _, offering := range page.Items {
		items = append(items, buildServicePayload(offering))
	}

	writeJSONResponse(w, http.StatusOK, serviceListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *CatalogHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	serviceID := strings.TrimSpace(chi.URLParam(r, "serviceID"))
	if serviceID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "service id is required", http.StatusBadRequest))
		return
	}

	offering, err := h.catalog.GetService(ctx, serviceID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, serviceResponse{Service: buildServicePayload(offering)})
}

func (h *CatalogHandlers) upsertService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxServiceBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertServiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertServiceCommand{
		ServiceID: strings.TrimSpace(chi.URLParam(r, "serviceID")),
		Name:      req.Name,
		Category:  req.Category,
		UnitPrice: req.UnitPrice,
		Active:    req.Active,
	}

	offering, err := h.catalog.UpsertService(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if cmd.ServiceID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, serviceResponse{Service: buildServicePayload(offering)})
}

func buildServicePayload(offering services.ServiceOffering) servicePayload {
	return servicePayload{
		ID:        strings.TrimSpace(offering.ID),
		Name:      strings.TrimSpace(offering.Name),
		Category:  strings.TrimSpace(offering.Category),
		UnitPrice: offering.UnitPrice,
		Currency:  strings.ToUpper(strings.TrimSpace(offering.Currency)),
		Active:    offering.Active,
		CreatedAt: formatTime(offering.CreatedAt),
		UpdatedAt: formatTime(offering.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("service_not_found", "service not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
