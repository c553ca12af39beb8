package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/handler"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/observability"

	"go.uber.org/zap"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_DegradedDependency(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Checks: []handler.HealthCheck{
		{Name: "catalog", Pinger: stubPinger{}},
		{Name: "redis", Pinger: stubPinger{err: errors.New("connection refused")}},
	}}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("expected degraded, got %q", body.Status)
	}
	if len(body.Services) != 3 || body.Services[2].Status != "unhealthy" {
		t.Errorf("unexpected services %+v", body.Services)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{Finder: &mockFinder{}}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_NoFinder(t *testing.T) {
	router := handler.NewRouter(handler.Deps{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrPipelineOutcome(observability.OutcomeAnswered)
	router := handler.NewRouter(handler.Deps{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bfa_product_pipeline_total") {
		t.Error("expected pipeline outcomes in the exposition")
	}
}

func TestPipelineMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrPipelineOutcome(observability.OutcomeAnswered)
	metrics.IncrPipelineOutcome(observability.OutcomeNotFound)
	metrics.IncrReplyFallback()
	router := handler.NewRouter(handler.Deps{}, metrics, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/pipeline", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var snap domain.PipelineMetrics
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalRequests != 2 || snap.NotFound != 1 || snap.ReplyFallbacks != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.ReplyFallbackRate != 1 {
		t.Errorf("expected fallback rate 1, got %f", snap.ReplyFallbackRate)
	}
}

func TestPing(t *testing.T) {
	router := handler.NewRouter(handler.Deps{}, observability.NewMetrics(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
