package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/platform/httpx"
	"github.com/seamline/api/internal/services"
)

const maxSweepBodySize = 4 * 1024

// SweepHandlers exposes the internal abandonment sweep trigger. HMAC request
// signing is applied by the /internal route group, not here.
type SweepHandlers struct {
	sweep services.SweepService
	clock func() time.Time
}

// NewSweepHandlers constructs a new SweepHandlers instance.
func NewSweepHandlers(sweep services.SweepService) *SweepHandlers {
	return &SweepHandlers{
		sweep: sweep,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the /internal endpoints.
func (h *SweepHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sweep", h.runSweep)
}

type sweepRequest struct {
	BatchCap int  `json:"batch_cap"`
	DryRun   bool `json:"dry_run"`
}

func (h *SweepHandlers) runSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sweep == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sweep_service_unavailable", "sweep service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req sweepRequest
	body, err := readLimitedBody(r, maxSweepBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	report, err := h.sweep.RunSweep(ctx, services.SweepCommand{
		Now:      h.clock(),
		BatchCap: req.BatchCap,
		DryRun:   req.DryRun,
	})
	if err != nil {
		writeSweepError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

func writeSweepError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrSweepInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		message := strings.TrimSpace(err.Error())
		if message == "" {
			message = "sweep failed"
		}
		httpx.WriteError(ctx, w, httpx.NewError("sweep_error", message, http.StatusInternalServerError))
	}
}
