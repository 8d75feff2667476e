package handlers

import (
	"net/http"
	"time"

	"github.com/seamline/api/internal/services"
)

var startTime = time.Now()

// HealthHandlers serves liveness and readiness probes. Liveness never touches
// dependencies; readiness pings Firestore through the system service.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs the probe handlers. A nil system service
// degrades readiness to a liveness-style check.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

// Healthz responds with a simple status payload for monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports dependency health so load balancers can rotate the instance out.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": "error",
		})
		return
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, report)
}
