package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/seamline/api/internal/platform/config"
)

func TestBuildHMACMiddlewareFailsClosedWithoutSecrets(t *testing.T) {
	middleware := buildHMACMiddleware(zap.NewNop(), config.Config{})
	if middleware == nil {
		t.Fatal("expected a middleware even without configured secrets")
	}

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("internal handler must not run without a configured secret")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep", nil)
	rec := httptest.NewRecorder()
	middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload.Error != "verification_unavailable" {
		t.Fatalf("unexpected error code %q", payload.Error)
	}
}

func TestBuildHMACMiddlewareRejectsUnsignedRequest(t *testing.T) {
	cfg := config.Config{}
	cfg.Security.HMAC.Secrets = map[string]string{"Sweep": "scheduler-secret"}

	middleware := buildHMACMiddleware(zap.NewNop(), cfg)

	reached := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/sweep", nil)
	rec := httptest.NewRecorder()
	middleware(next).ServeHTTP(rec, req)

	if reached {
		t.Fatal("unsigned request must not reach the sweep handler")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
