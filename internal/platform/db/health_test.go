package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, check Check) (int, HealthReport) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	if err := HealthHandler(check)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, report
}

func okProbe(name string) Probe {
	return Probe{Name: name, Check: func(context.Context) error { return nil }}
}

func TestHealthHandler_Healthy(t *testing.T) {
	code, report := runHealth(t, Check{Backend: "bolt", Probes: []Probe{okProbe("storage")}})
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if report.Status != "healthy" || report.Storage != "bolt" || report.Checks["storage"] != "ok" {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Pool != nil {
		t.Error("pool stats should be omitted without a pool")
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	code, report := runHealth(t, Check{
		Backend: "postgres",
		Probes: []Probe{
			okProbe("bookings"),
			{Name: "storage", Check: func(context.Context) error { return errors.New("connection refused") }},
		},
	})
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if report.Status != "unhealthy" || report.Checks["storage"] != "connection refused" || report.Checks["bookings"] != "ok" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestHealthHandler_NoProbes(t *testing.T) {
	code, report := runHealth(t, Check{Backend: "memory"})
	if code != http.StatusOK || report.Checks != nil {
		t.Errorf("expected a bare healthy report, got %d %+v", code, report)
	}
}

func TestCheck_RunTimesOut(t *testing.T) {
	check := Check{
		Backend: "postgres",
		Timeout: 20 * time.Millisecond,
		Probes: []Probe{{Name: "storage", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}}},
	}
	report := check.Run(context.Background())
	if report.Status != "unhealthy" || report.Checks["storage"] != context.DeadlineExceeded.Error() {
		t.Errorf("expected a deadline failure, got %+v", report)
	}
}
