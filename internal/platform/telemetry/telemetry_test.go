package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/platform/events"
)

func newTestEcho(p *Provider) *echo.Echo {
	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/api/v1/bookings/:id", func(c echo.Context) error {
		time.Sleep(2 * time.Millisecond)
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})
	e.GET("/metrics", p.Handler())
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMiddleware_GroupsByRoutePattern(t *testing.T) {
	p := NewProvider(Config{})
	e := newTestEcho(p)

	get(e, "/api/v1/bookings/a")
	get(e, "/api/v1/bookings/b")
	get(e, "/api/v1/missing")

	if got := p.RequestCount(http.MethodGet, "/api/v1/bookings/:id", http.StatusOK); got != 2 {
		t.Errorf("expected 2 requests for the route pattern, got %d", got)
	}
	if got := p.RequestCount(http.MethodGet, "/api/v1/missing", http.StatusNotFound); got != 1 {
		t.Errorf("expected the HTTPError code to be recorded, got %d", got)
	}

	h, _ := p.durations.get(LabelsKey(http.MethodGet, "/api/v1/bookings/:id", "200"))
	if h == nil || h.Count() != 2 || h.Sum() <= 0 {
		t.Fatalf("expected 2 timed observations, got %+v", h)
	}
	if p.ActiveRequests() != 0 {
		t.Errorf("expected no requests in flight, got %d", p.ActiveRequests())
	}
}

func TestMiddleware_ActiveRequests(t *testing.T) {
	p := NewProvider(Config{})
	e := echo.New()
	e.Use(p.Middleware())

	entered := make(chan struct{})
	release := make(chan struct{})
	e.GET("/slow", func(c echo.Context) error {
		close(entered)
		<-release
		return c.NoContent(http.StatusNoContent)
	})

	done := make(chan struct{})
	go func() {
		get(e, "/slow")
		close(done)
	}()

	<-entered
	if got := p.ActiveRequests(); got != 1 {
		t.Errorf("expected 1 request in flight, got %d", got)
	}
	close(release)
	<-done
	if got := p.ActiveRequests(); got != 0 {
		t.Errorf("expected 0 requests in flight, got %d", got)
	}
}

func TestSubscribe_CountsEvents(t *testing.T) {
	p := NewProvider(Config{})
	bus := events.New()
	if err := p.Subscribe(bus); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.Publish(events.CartUpdated, "s1", nil)
	bus.Publish(events.CartUpdated, "s2", nil)
	bus.Publish(events.BookingConfirmed, "s1", nil)
	bus.Publish("auditLogged", "s1", nil)

	if got := p.EventCount(events.CartUpdated); got != 2 {
		t.Errorf("expected 2 cart updates, got %d", got)
	}
	if got := p.EventCount(events.BookingConfirmed); got != 1 {
		t.Errorf("expected 1 booking, got %d", got)
	}
	if got := p.EventCount("auditLogged"); got != 0 {
		t.Errorf("internal topics must not be counted, got %d", got)
	}
}

func TestHandler_PrometheusFormat(t *testing.T) {
	p := NewProvider(Config{ServiceVersion: "1.0.0", Environment: "test"})
	clients := int64(3)
	p.GaugeFunc("medbliss_websocket_clients", "Connected websocket clients.", func() int64 { return clients })
	bus := events.New()
	p.Subscribe(bus)
	bus.Publish(events.BookingConfirmed, "s1", nil)

	e := newTestEcho(p)
	for i := 0; i < 3; i++ {
		get(e, "/api/v1/bookings/x")
	}

	rec := get(e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()

	for _, want := range []string{
		`medbliss_build_info{service="medbliss",version="1.0.0",environment="test"} 1`,
		`http_requests_total{method="GET",route="/api/v1/bookings/:id",status="200"} 3`,
		`http_request_duration_seconds_bucket{method="GET",route="/api/v1/bookings/:id",status="200",le="+Inf"} 3`,
		`http_request_duration_seconds_count{method="GET",route="/api/v1/bookings/:id",status="200"} 3`,
		"http_requests_in_flight 0",
		`medbliss_events_total{topic="bookingConfirmed"} 1`,
		"# TYPE medbliss_websocket_clients gauge",
		"medbliss_websocket_clients 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in output:\n%s", want, body)
		}
	}
	if strings.Contains(body, `route="/metrics"`) {
		t.Error("scrapes must not be recorded")
	}
}

func TestHistogram_Buckets(t *testing.T) {
	h := newHistogram([]float64{0.1, 0.5, 1})
	for _, v := range []float64{0.05, 0.1, 0.3, 0.7, 2} {
		h.Observe(v)
	}

	want := []int64{2, 3, 4}
	got := h.cumulativeBuckets()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if h.Count() != 5 {
		t.Errorf("expected count 5, got %d", h.Count())
	}
	if sum := h.Sum(); sum < 3.149 || sum > 3.151 {
		t.Errorf("expected sum 3.15, got %g", sum)
	}
}

func TestHistogram_ConcurrentObserve(t *testing.T) {
	h := newHistogram(defaultDurationBuckets)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Observe(0.02)
			}
		}()
	}
	wg.Wait()

	if h.Count() != 5000 {
		t.Errorf("expected 5000 observations, got %d", h.Count())
	}
	if sum := h.Sum(); sum < 99.99 || sum > 100.01 {
		t.Errorf("expected sum 100, got %g", sum)
	}
}
