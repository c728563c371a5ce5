package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/platform/events"
)

func newTestManager(opts ...Option) *Manager {
	opts = append([]Option{WithRetryDelays(time.Millisecond, time.Millisecond, time.Millisecond)}, opts...)
	return NewManager(NewMemoryStore(), opts...)
}

func mustRegister(t *testing.T, m *Manager, url string, events ...string) *Endpoint {
	t.Helper()
	ep, err := m.RegisterEndpoint(context.Background(), url, "test-secret", events)
	if err != nil {
		t.Fatalf("register endpoint: %v", err)
	}
	return ep
}

func bookingEvent() Event {
	return Event{
		ID:        "evt-1",
		Type:      EventBookingConfirmed,
		SessionID: "s1",
		Data:      json.RawMessage(`{"reference":"BK1"}`),
		Timestamp: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
	}
}

func TestRegisterEndpoint(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	ep, err := m.RegisterEndpoint(ctx, "https://example.com/hook", "", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ep.ID == "" || ep.Status != StatusActive || len(ep.Secret) != 64 {
		t.Errorf("unexpected endpoint %+v", ep)
	}
	if len(ep.Events) != 1 || ep.Events[0] != EventBookingConfirmed {
		t.Errorf("expected default booking.confirmed subscription, got %v", ep.Events)
	}

	for _, bad := range []string{"", "ftp://example.com/hook", "://nope"} {
		if _, err := m.RegisterEndpoint(ctx, bad, "", nil); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestEventMatches(t *testing.T) {
	tests := []struct {
		pattern, eventType string
		want               bool
	}{
		{"booking.confirmed", "booking.confirmed", true},
		{"booking.*", "booking.confirmed", true},
		{"*", "booking.confirmed", true},
		{"cart.*", "booking.confirmed", false},
		{"booking.cancelled", "booking.confirmed", false},
	}
	for _, tt := range tests {
		if got := eventMatches(tt.pattern, tt.eventType); got != tt.want {
			t.Errorf("eventMatches(%q, %q) = %v, want %v", tt.pattern, tt.eventType, got, tt.want)
		}
	}
}

func TestDeliver_SignsPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestManager(WithHTTPClient(srv.Client()))
	ep := mustRegister(t, m, srv.URL)

	results, err := m.Deliver(context.Background(), bookingEvent())
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(results) != 1 || !results[0].Success || results[0].EndpointID != ep.ID {
		t.Fatalf("unexpected results %+v", results)
	}

	mu.Lock()
	defer mu.Unlock()
	sig := headers.Get("X-Webhook-Signature")
	if !strings.HasPrefix(sig, "sha256=") || !VerifySignature(body, "test-secret", sig) {
		t.Errorf("signature %q does not verify", sig)
	}
	if headers.Get("X-Webhook-Event") != EventBookingConfirmed {
		t.Errorf("unexpected event header %q", headers.Get("X-Webhook-Event"))
	}
	var got Event
	json.Unmarshal(body, &got)
	if got.ID != "evt-1" || string(got.Data) != `{"reference":"BK1"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	ep := mustRegister(t, m, srv.URL)

	results, _ := m.Deliver(context.Background(), bookingEvent())
	if !results[0].Success {
		t.Fatalf("expected success after retries, got %+v", results[0])
	}
	logs, _ := m.Deliveries(context.Background(), ep.ID)
	if len(logs) != 1 || logs[0].Attempts != 3 || logs[0].Status != DeliverySuccess {
		t.Errorf("expected one log entry with 3 attempts, got %+v", logs)
	}
}

func TestDeliver_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager()
	mustRegister(t, m, srv.URL)

	results, err := m.Deliver(context.Background(), bookingEvent())
	if err != nil {
		t.Fatalf("failures must not be raised: %v", err)
	}
	if results[0].Success || results[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected result %+v", results[0])
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected 1 attempt plus 3 retries, got %d", got)
	}
}

func TestDeliver_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewManager(NewMemoryStore(), WithRetryDelays(time.Hour))
	mustRegister(t, m, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		m.Deliver(ctx, bookingEvent())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deliver did not stop after cancel")
	}
}

func TestDeliver_FansOutToMatchingActiveEndpoints(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	m := newTestManager()
	ctx := context.Background()
	mustRegister(t, m, srv.URL+"/a")
	mustRegister(t, m, srv.URL+"/b", "booking.*")
	mustRegister(t, m, srv.URL+"/c", "cart.updated")
	paused := mustRegister(t, m, srv.URL+"/d")
	m.PauseEndpoint(ctx, paused.ID)

	results, _ := m.Deliver(ctx, bookingEvent())
	if n := atomic.LoadInt32(&hits); len(results) != 2 || n != 2 {
		t.Errorf("expected 2 deliveries, got %d results and %d hits", len(results), n)
	}

	m.ResumeEndpoint(ctx, paused.ID)
	results, _ = m.Deliver(ctx, bookingEvent())
	if len(results) != 3 {
		t.Errorf("expected 3 deliveries after resume, got %d", len(results))
	}
}

func TestRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	m := newTestManager(WithRetryDelays())
	mustRegister(t, m, srv.URL)
	ctx := context.Background()

	results, _ := m.Deliver(ctx, bookingEvent())
	if results[0].Success {
		t.Fatal("expected first delivery to fail")
	}

	fail.Store(false)
	d, err := m.Retry(ctx, results[0].DeliveryID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if d.Status != DeliverySuccess || d.Attempts != 2 {
		t.Errorf("unexpected delivery after retry %+v", d)
	}
	if _, err := m.Retry(ctx, "missing"); err != ErrDeliveryNotFound {
		t.Errorf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestSubscribe_ForwardsBookingConfirmed(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		json.NewDecoder(r.Body).Decode(&ev)
		received <- ev
	}))
	defer srv.Close()

	m := newTestManager()
	mustRegister(t, m, srv.URL)
	bus := events.New()
	if err := m.Subscribe(context.Background(), bus); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.Publish(events.BookingConfirmed, "s1", map[string]string{"reference": "BK42"})
	bus.Wait()

	select {
	case ev := <-received:
		if ev.Type != EventBookingConfirmed || ev.SessionID != "s1" || !strings.Contains(string(ev.Data), "BK42") {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("no webhook received")
	}
}

func TestHandler(t *testing.T) {
	m := newTestManager()
	h := NewHandler(m)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/webhooks",
		strings.NewReader(`{"url":"https://example.com/hook","secret":"s"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.RegisterEndpoint(e.NewContext(req, rec)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var ep Endpoint
	json.Unmarshal(rec.Body.Bytes(), &ep)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/webhooks", nil)
	rec = httptest.NewRecorder()
	if err := h.ListEndpoints(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(rec.Body.String(), `"secret"`) {
		t.Errorf("secrets must not be listed: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/webhooks/missing", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err := h.GetEndpoint(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/webhooks/"+ep.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ep.ID)
	if err := h.DeleteEndpoint(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
