package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/seamline/api/internal/services"
)

type stubSweepService struct {
	runFn func(ctx context.Context, cmd services.SweepCommand) (services.SweepReport, error)
}

func (s *stubSweepService) RunSweep(ctx context.Context, cmd services.SweepCommand) (services.SweepReport, error) {
	if s.runFn != nil {
		return s.runFn(ctx, cmd)
	}
	return services.SweepReport{}, nil
}

func newSweepTestRouter(sweep services.SweepService) chi.Router {
	h := NewSweepHandlers(sweep)
	r := chi.NewRouter()
	r.Route("/internal", h.Routes)
	return r
}

func TestRunSweepForwardsOverrides(t *testing.T) {
	var captured services.SweepCommand
	svc := &stubSweepService{
		runFn: func(_ context.Context, cmd services.SweepCommand) (services.SweepReport, error) {
			captured = cmd
			return services.SweepReport{
				StartedAt:        cmd.Now,
				FinishedAt:       cmd.Now,
				PaymentReminders: 3,
				OrdersCancelled:  1,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", strings.NewReader(`{"batch_cap":50,"dry_run":true}`))
	rr := httptest.NewRecorder()

	newSweepTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.BatchCap != 50 || !captured.DryRun {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.Now.IsZero() {
		t.Fatalf("expected handler to stamp the sweep clock")
	}

	var report services.SweepReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if report.PaymentReminders != 3 || report.OrdersCancelled != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
}

func TestRunSweepAllowsEmptyBody(t *testing.T) {
	var captured services.SweepCommand
	svc := &stubSweepService{
		runFn: func(_ context.Context, cmd services.SweepCommand) (services.SweepReport, error) {
			captured = cmd
			return services.SweepReport{StartedAt: cmd.Now, FinishedAt: cmd.Now}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	rr := httptest.NewRecorder()

	newSweepTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.BatchCap != 0 || captured.DryRun {
		t.Fatalf("expected zero-valued overrides, got %#v", captured)
	}
}

func TestRunSweepRejectsMalformedBody(t *testing.T) {
	svc := &stubSweepService{}
	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", strings.NewReader(`{"batch_cap":`))
	rr := httptest.NewRecorder()

	newSweepTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRunSweepMapsInvalidInput(t *testing.T) {
	svc := &stubSweepService{
		runFn: func(_ context.Context, _ services.SweepCommand) (services.SweepReport, error) {
			return services.SweepReport{}, services.ErrSweepInvalidInput
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", strings.NewReader(`{"batch_cap":-1}`))
	rr := httptest.NewRecorder()

	newSweepTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
