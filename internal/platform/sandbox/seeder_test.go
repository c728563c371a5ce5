package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbliss/medbliss/internal/domain/booking"
	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
)

type fixture struct {
	seeder   *Seeder
	patients *patient.Service
	carts    *cart.Store
	bookings *booking.Service
	bus      *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := events.New()
	slots := kvstore.NewSlots(kvstore.NewMemoryStore())
	patients := patient.NewService(slots, bus)
	cat := catalog.Default()
	carts := cart.NewStore(slots, cat, patients, bus)
	bookings := booking.NewService(slots, carts, patients, booking.NewMemoryRepo(), booking.WithBus(bus))
	return &fixture{
		seeder:   NewSeeder(cat, patients, carts, bookings, zerolog.Nop()),
		patients: patients,
		carts:    carts,
		bookings: bookings,
		bus:      bus,
	}
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

func TestDataGenerator_Deterministic(t *testing.T) {
	a := NewDataGenerator(42).Profile()
	b := NewDataGenerator(42).Profile()
	if *a != *b {
		t.Errorf("same seed produced different profiles:\n%+v\n%+v", a, b)
	}
}

func TestDataGenerator_Profile(t *testing.T) {
	gen := NewDataGenerator(7)
	phone := regexp.MustCompile(`^[6-9][0-9]{9}$`)
	for i := 0; i < 50; i++ {
		p := gen.Profile()
		if !strings.Contains(p.Name, " ") {
			t.Errorf("expected first and last name, got %q", p.Name)
		}
		if !phone.MatchString(p.Phone) {
			t.Errorf("unexpected phone %q", p.Phone)
		}
		if !strings.HasSuffix(p.Email, "@example.com") || strings.ContainsAny(p.Email, " ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			t.Errorf("unexpected email %q", p.Email)
		}
		if p.Gender != "Male" && p.Gender != "Female" {
			t.Errorf("unexpected gender %q", p.Gender)
		}
	}
}

func TestEmailFor(t *testing.T) {
	if got := emailFor("Rahul Sharma"); got != "rahul.sharma@example.com" {
		t.Errorf("got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

func TestSeeder_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := SeedConfig{Sessions: 3, FamilyPerSession: 2, ItemsPerBooking: 2, BookingsPerSession: 2, PromoRate: 1, Seed: 1}
	res, err := f.seeder.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.SessionIDs) != 3 || res.SessionIDs[0] != "demo-1" {
		t.Fatalf("unexpected sessions %v", res.SessionIDs)
	}
	if res.Profiles != 3 || res.FamilyMembers != 6 || res.Bookings != 6 || res.PromosApplied != 6 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.CartItems == 0 || res.Revenue <= 0 {
		t.Errorf("expected items and revenue, got %+v", res)
	}

	var revenue int64
	for _, sid := range res.SessionIDs {
		family, _ := f.patients.ListFamily(ctx, sid)
		if len(family) != 2 {
			t.Errorf("%s: expected 2 family members, got %d", sid, len(family))
		}
		c, _ := f.carts.Get(ctx, sid)
		if !c.IsEmpty() {
			t.Errorf("%s: cart should be empty after checkout", sid)
		}
		records, total, err := f.bookings.ListBookings(ctx, sid, "", 10, 0)
		if err != nil || total != 2 {
			t.Fatalf("%s: expected 2 bookings, got %d (%v)", sid, total, err)
		}
		for _, r := range records {
			revenue += r.TotalAmount
			if r.PromoCode == "" {
				t.Errorf("%s: expected a promo on %s", sid, r.Reference)
			}
		}
		d, _ := f.bookings.GetDraft(ctx, sid)
		if d.Step != booking.StepDetails {
			t.Errorf("%s: expected a fresh draft, got %s", sid, d.Step)
		}
	}
	if revenue != res.Revenue {
		t.Errorf("revenue mismatch: stored %d, reported %d", revenue, res.Revenue)
	}
}

func TestSeeder_RunPublishesBookings(t *testing.T) {
	f := newFixture(t)
	var confirmed int
	f.bus.Subscribe(events.BookingConfirmed, func(events.Event) { confirmed++ })

	if _, err := f.seeder.Run(context.Background(), SeedConfig{Sessions: 2, BookingsPerSession: 1, Seed: 3}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if confirmed != 2 {
		t.Errorf("expected 2 booking events, got %d", confirmed)
	}
}

func TestSeeder_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.seeder.Run(ctx, SeedConfig{Sessions: 3})
	if err == nil {
		t.Fatal("expected context error")
	}
	if len(res.SessionIDs) != 0 {
		t.Errorf("expected no sessions, got %v", res.SessionIDs)
	}
}

func TestSeedConfig_Defaults(t *testing.T) {
	cfg := SeedConfig{FamilyPerSession: -1}
	cfg.applyDefaults()
	if cfg.Sessions != 5 || cfg.ItemsPerBooking != 1 || cfg.FamilyPerSession != 0 || cfg.SessionPrefix != "demo" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

func TestSeedHandler(t *testing.T) {
	f := newFixture(t)
	h := NewSeedHandler(f.seeder)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sandbox/last", nil)
	rec := httptest.NewRecorder()
	err := h.HandleLast(e.NewContext(req, rec))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 before seeding, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/sandbox/seed",
		strings.NewReader(`{"sessions":2,"bookingsPerSession":1,"sessionPrefix":"qa","seed":9}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	if err := h.HandleSeed(e.NewContext(req, rec)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var res SeedResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if len(res.SessionIDs) != 2 || res.SessionIDs[1] != "qa-2" || res.Bookings != 2 {
		t.Errorf("unexpected result %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/sandbox/last", nil)
	rec = httptest.NewRecorder()
	if err := h.HandleLast(e.NewContext(req, rec)); err != nil || !strings.Contains(rec.Body.String(), "qa-1") {
		t.Errorf("expected last result, got %v %s", err, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/sandbox/seed", strings.NewReader(`{"sessions":501}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err = h.HandleSeed(e.NewContext(req, httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized run, got %v", err)
	}
}
