package jobs

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestAdd_RejectsBadSpecAndDuplicates(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	noop := func(context.Context) error { return nil }

	if err := s.Add("bad", "not a spec", noop); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.Add("reminders", "0 8 * * *", noop); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("reminders", "0 9 * * *", noop); err == nil {
		t.Error("expected error for duplicate name")
	}
}

func TestTrigger(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	called := 0
	s.Add("count", "0 8 * * *", func(context.Context) error { called++; return nil })

	if err := s.Trigger(context.Background(), "count"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
	if err := s.Trigger(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestRun_ExecutesAndStops(t *testing.T) {
	var buf syncBuffer
	s := New(zerolog.New(&buf), nil)

	ran := make(chan struct{}, 4)
	s.Add("tick", "@every 1s", func(context.Context) error {
		ran <- struct{}{}
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if !strings.Contains(buf.String(), "job failed") {
		t.Errorf("expected job failure to be logged, got %s", buf.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandler_ListAndRun(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	called := 0
	s.Add("reminders", "0 8 * * *", func(context.Context) error { called++; return nil })
	s.Add("broken", "0 9 * * *", func(context.Context) error { return errors.New("boom") })
	h := NewHandler(s)
	e := echo.New()

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/jobs", nil), rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `["broken","reminders"]`) {
		t.Errorf("unexpected job list %s", rec.Body.String())
	}

	run := func(name string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/jobs/"+name+"/run", nil), rec)
		c.SetParamNames("name")
		c.SetParamValues(name)
		return rec, h.Run(c)
	}

	if rec, err := run("reminders"); err != nil || rec.Code != http.StatusOK || called != 1 {
		t.Errorf("expected reminders to run once, got err=%v code=%d calls=%d", err, rec.Code, called)
	}
	if _, err := run("missing"); err == nil || err.(*echo.HTTPError).Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %v", err)
	}
	if _, err := run("broken"); err == nil || err.(*echo.HTTPError).Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for failing job, got %v", err)
	}
}
