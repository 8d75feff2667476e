package services

import (
	"context"
	"errors"
	"time"

	"github.com/seamline/api/internal/repositories"
)

// Health status values reported by HealthReport.
const (
	HealthStatusOK    = "ok"
	HealthStatusError = "error"
)

// SystemServiceDeps aggregates dependencies for NewSystemService.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Clock  Clock
}

type systemService struct {
	health repositories.HealthRepository
	clock  Clock
}

// NewSystemService assembles the utility service backing health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service requires health repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &systemService{
		health: deps.Health,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// HealthReport pings Firestore and reports overall readiness. A failed ping
// degrades the report rather than erroring so probes always get a body.
func (s *systemService) HealthReport(ctx context.Context) (HealthReport, error) {
	report := HealthReport{
		Status:    HealthStatusOK,
		CheckedAt: s.clock(),
		Firestore: HealthStatusOK,
	}
	if err := s.health.Ping(ctx); err != nil {
		report.Status = HealthStatusError
		report.Firestore = err.Error()
	}
	return report, nil
}

var _ SystemService = (*systemService)(nil)
