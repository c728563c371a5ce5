package booking

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
	"github.com/medbliss/medbliss/internal/platform/validation"
)

var (
	ist      = time.FixedZone("IST", 5*3600+1800)
	fixedNow = time.Date(2026, 10, 18, 10, 0, 0, 0, ist)
)

type fixture struct {
	svc      *Service
	carts    *cart.Store
	patients *patient.Service
	repo     Repository
	bus      *events.Bus
	tx       *countingTransactor
}

// countingTransactor runs fn directly and records each unit of work.
// commitErr is returned after fn succeeds, as a failed commit would be.
type countingTransactor struct {
	mu        sync.Mutex
	calls     int
	commitErr error
}

func (t *countingTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	return t.commitErr
}

// draftStore fails writes that move a booking draft to success.
type draftStore struct {
	kvstore.Store
	fail bool
}

func (s *draftStore) Put(ctx context.Context, sessionID, slot string, value []byte) error {
	if s.fail && slot == kvstore.SlotBookingDraft && bytes.Contains(value, []byte(`"success"`)) {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, sessionID, slot, value)
}

type failingRepo struct {
	Repository
	err error
}

func (r *failingRepo) Create(context.Context, *Record) error { return r.err }

func newFixture(t *testing.T, repo Repository) *fixture {
	t.Helper()
	return newFixtureOn(t, kvstore.NewMemoryStore(), repo)
}

func newFixtureOn(t *testing.T, backend kvstore.Store, repo Repository) *fixture {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepo()
	}
	bus := events.New()
	slots := kvstore.NewSlots(backend)
	patients := patient.NewService(slots, bus)
	carts := cart.NewStore(slots, catalog.Default(), patients, bus)
	tx := &countingTransactor{}
	svc := NewService(slots, carts, patients, repo,
		WithBus(bus),
		WithTransactor(tx),
		WithClock(func() time.Time { return fixedNow }, ist),
	)
	return &fixture{svc: svc, carts: carts, patients: patients, repo: repo, bus: bus, tx: tx}
}

func validDetails() Details {
	return Details{
		PatientName: "Rahul Sharma",
		Email:       "rahul@example.com",
		Phone:       "9876543210",
		Address: Address{
			Street:  "123 MG Road",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560001",
		},
		AppointmentDate: "2026-10-19",
		AppointmentTime: "08:00 AM",
		HomeCollection:  true,
	}
}

func (f *fixture) fillCart(t *testing.T, sid string) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := f.carts.Add(ctx, sid, catalog.KindTest, 1, ""); err != nil {
		t.Fatalf("add test: %v", err)
	}
	if _, _, err := f.carts.Add(ctx, sid, catalog.KindPackage, 101, ""); err != nil {
		t.Fatalf("add package: %v", err)
	}
}

func (f *fixture) toConfirmation(t *testing.T, sid string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.UpdateDraft(ctx, sid, validDetails()); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if _, err := f.svc.Submit(ctx, sid); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestGetDraft_PrefillsFromProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d, err := f.svc.GetDraft(ctx, "s1")
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if d.Step != StepDetails || !d.Details.HomeCollection || d.Details.PatientName != "" {
		t.Errorf("unexpected blank draft %+v", d)
	}

	f.patients.SaveProfile(ctx, "s1", &patient.Profile{
		Name: "Rahul", Email: "r@example.com", Phone: "98765", Address: "12 Park Street",
	})
	d, _ = f.svc.GetDraft(ctx, "s1")
	if d.Details.PatientName != "Rahul" || d.Details.Email != "r@example.com" || d.Details.Address.Street != "12 Park Street" {
		t.Errorf("expected profile pre-fill, got %+v", d.Details)
	}
}

func TestSubmit_BlockedByEmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.svc.UpdateDraft(ctx, "s1", validDetails())

	if _, err := f.svc.Submit(ctx, "s1"); !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
	d, _ := f.svc.GetDraft(ctx, "s1")
	if d.Step != StepDetails {
		t.Errorf("step changed to %s", d.Step)
	}
}

func TestSubmit_ValidationListsFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")

	details := validDetails()
	details.Email = "  "
	details.Address.Pincode = ""
	details.AppointmentTime = ""
	f.svc.UpdateDraft(ctx, "s1", details)

	_, err := f.svc.Submit(ctx, "s1")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"email", "address.pincode", "appointmentTime"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, verr.Fields)
	}
	for i := range want {
		if verr.Fields[i] != want[i] {
			t.Errorf("field %d: want %s, got %s", i, want[i], verr.Fields[i])
		}
	}
}

func TestSubmit_RejectsUnbookableSlots(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		time  string
		field string
	}{
		{"today", "2026-10-18", "08:00 AM", "appointmentDate"},
		{"malformed date", "19/10/2026", "08:00 AM", "appointmentDate"},
		{"blocked slot", "2026-10-19", "09:30 AM", "appointmentTime"},
		{"unknown slot", "2026-10-19", "07:15 AM", "appointmentTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			f.fillCart(t, "s1")
			d := validDetails()
			d.AppointmentDate = tt.date
			d.AppointmentTime = tt.time
			f.svc.UpdateDraft(ctx, "s1", d)

			_, err := f.svc.Submit(ctx, "s1")
			var verr *validation.Error
			if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0] != tt.field {
				t.Errorf("expected %s rejected, got %v", tt.field, err)
			}
		})
	}
}

func TestEndToEnd_ConfirmClearsCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var published []Record
	f.bus.Subscribe(events.BookingConfirmed, func(e events.Event) {
		published = append(published, e.Data.(Record))
	})

	f.fillCart(t, "s1")
	c, _ := f.carts.Get(ctx, "s1")
	if tot := c.Totals(); tot.Subtotal != 3298 || tot.Savings != 2100 {
		t.Fatalf("expected totals {3298 2100}, got %+v", tot)
	}

	f.toConfirmation(t, "s1")
	d, _ := f.svc.GetDraft(ctx, "s1")
	if d.Step != StepConfirmation || d.Snapshot == nil || d.Snapshot.Quote.Subtotal != 3298 || len(d.Snapshot.Groups) != 1 {
		t.Fatalf("unexpected confirmation draft %+v", d)
	}

	rec, err := f.svc.Confirm(ctx, "s1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if rec.TotalAmount != 3298 || rec.Savings != 2100 || rec.Status != StatusPending || rec.PaymentStatus != PaymentPending {
		t.Errorf("unexpected record %+v", rec)
	}
	if len(rec.SelectedTests) != 1 || rec.SelectedTests[0] != 1 || len(rec.SelectedPackages) != 1 || rec.SelectedPackages[0] != 101 {
		t.Errorf("unexpected selections %v %v", rec.SelectedTests, rec.SelectedPackages)
	}
	if len(rec.PatientAssignments) != 2 || rec.PatientAssignments[0].PatientID != patient.SelfID {
		t.Errorf("unexpected assignments %+v", rec.PatientAssignments)
	}
	if len(rec.Reference) < 3 || rec.Reference[:2] != "BK" {
		t.Errorf("unexpected reference %q", rec.Reference)
	}

	c, _ = f.carts.Get(ctx, "s1")
	if !c.IsEmpty() {
		t.Errorf("cart must be empty as soon as confirm returns, has %d entries", c.Len())
	}
	d, _ = f.svc.GetDraft(ctx, "s1")
	if d.Step != StepSuccess || d.BookingID != rec.ID.String() {
		t.Errorf("unexpected success draft %+v", d)
	}
	if len(published) != 1 || published[0].ID != rec.ID {
		t.Errorf("expected one bookingConfirmed event, got %d", len(published))
	}
	if f.tx.calls != 1 {
		t.Errorf("expected confirm to run in one unit of work, got %d", f.tx.calls)
	}

	if _, err := f.svc.Confirm(ctx, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirm from success should be rejected, got %v", err)
	}
	stored, err := f.svc.GetBooking(ctx, "s1", rec.ID)
	if err != nil || stored.Reference != rec.Reference {
		t.Errorf("expected stored record, got %+v err=%v", stored, err)
	}
}

func TestConfirm_PricesCurrentCartAndPromo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")

	// The cart moves on after the snapshot was taken.
	f.carts.Add(ctx, "s1", catalog.KindTest, 2, "")
	f.carts.ApplyPromo(ctx, "s1", "HEALTH10")

	rec, err := f.svc.Confirm(ctx, "s1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// 3298 + 599 = 3897, 10% off floors to 389.
	if rec.Discount != 389 || rec.TotalAmount != 3508 || rec.PromoCode != "HEALTH10" {
		t.Errorf("unexpected pricing %+v", rec)
	}
	q, _ := f.carts.Quote(ctx, "s1")
	if q.PromoCode != "" {
		t.Error("promo should be cleared on confirm")
	}
}

func TestConfirm_EmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")
	f.carts.Clear(ctx, "s1")

	if _, err := f.svc.Confirm(ctx, "s1"); !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
	d, _ := f.svc.GetDraft(ctx, "s1")
	if d.Step != StepConfirmation {
		t.Errorf("step should stay at confirmation, got %s", d.Step)
	}
}

func TestConfirm_RepositoryFailureRestoresCart(t *testing.T) {
	boom := errors.New("insert failed")
	f := newFixture(t, &failingRepo{Repository: NewMemoryRepo(), err: boom})
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")

	if _, err := f.svc.Confirm(ctx, "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
	c, _ := f.carts.Get(ctx, "s1")
	if c.Len() != 2 {
		t.Errorf("expected cart restored, got %d entries", c.Len())
	}
	d, _ := f.svc.GetDraft(ctx, "s1")
	if d.Step != StepConfirmation {
		t.Errorf("expected draft to stay at confirmation, got %s", d.Step)
	}
}

func TestConfirm_DraftWriteFailureLeavesNoRecord(t *testing.T) {
	backend := &draftStore{Store: kvstore.NewMemoryStore()}
	f := newFixtureOn(t, backend, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")

	backend.fail = true
	if _, err := f.svc.Confirm(ctx, "s1"); err == nil {
		t.Fatal("expected draft write error")
	}
	if _, total, _ := f.svc.ListBookings(ctx, "s1", "", 10, 0); total != 0 {
		t.Fatalf("failed confirm must not store a booking, found %d", total)
	}
	c, _ := f.carts.Get(ctx, "s1")
	if c.Len() != 2 {
		t.Errorf("expected cart restored, got %d entries", c.Len())
	}

	backend.fail = false
	if _, err := f.svc.Confirm(ctx, "s1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, total, _ := f.svc.ListBookings(ctx, "s1", "", 10, 0); total != 1 {
		t.Errorf("expected exactly one booking after retry, found %d", total)
	}
	if _, err := f.svc.Confirm(ctx, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second confirm should be rejected, got %v", err)
	}
}

func TestConfirm_AnnouncesEmptyCartAfterCommit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")

	var counts []int
	f.bus.Subscribe(events.CartUpdated, func(e events.Event) {
		counts = append(counts, e.Data.(cart.Updated).Count)
	})

	f.tx.commitErr = errors.New("commit failed")
	if _, err := f.svc.Confirm(ctx, "s1"); err == nil {
		t.Fatal("expected commit error")
	}
	if len(counts) != 0 {
		t.Fatalf("no cartUpdated may precede a commit, got %v", counts)
	}

	// The fake transactor cannot roll back, so start the session over.
	f.tx.commitErr = nil
	f.svc.Reset(ctx, "s1")
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")
	counts = nil
	if _, err := f.svc.Confirm(ctx, "s1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(counts) != 1 || counts[0] != 0 {
		t.Errorf("expected one empty-cart event after commit, got %v", counts)
	}
}

func TestTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")

	if _, err := f.svc.Back(ctx, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back without a draft should be rejected, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirm from details should be rejected, got %v", err)
	}

	f.toConfirmation(t, "s1")
	if _, err := f.svc.UpdateDraft(ctx, "s1", Details{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("editing in confirmation should be rejected, got %v", err)
	}
	if _, err := f.svc.Submit(ctx, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double submit should be rejected, got %v", err)
	}

	d, err := f.svc.Back(ctx, "s1")
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if d.Step != StepDetails || d.Snapshot != nil || d.Details.Address.City != "Bengaluru" {
		t.Errorf("back should keep fields and drop the snapshot, got %+v", d)
	}

	if err := f.svc.Reset(ctx, "s1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	d, _ = f.svc.GetDraft(ctx, "s1")
	if d.Details.PatientName != "" {
		t.Error("reset should drop the stored draft")
	}
}

func TestConfirm_UniqueIdentifiers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ids := map[string]bool{}
	refs := map[string]bool{}

	for i := 0; i < 25; i++ {
		f.fillCart(t, "s1")
		f.svc.Reset(ctx, "s1")
		f.toConfirmation(t, "s1")
		rec, err := f.svc.Confirm(ctx, "s1")
		if err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
		if ids[rec.ID.String()] || refs[rec.Reference] {
			t.Fatalf("duplicate identifier on confirm %d: %s %s", i, rec.ID, rec.Reference)
		}
		ids[rec.ID.String()] = true
		refs[rec.Reference] = true
	}
}

func TestListSummaryAndOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fillCart(t, "s1")
	f.toConfirmation(t, "s1")
	rec, _ := f.svc.Confirm(ctx, "s1")

	items, total, err := f.svc.ListBookings(ctx, "s1", "", 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("unexpected list %d/%d err=%v", len(items), total, err)
	}
	if _, total, _ = f.svc.ListBookings(ctx, "s1", StatusCompleted, 20, 0); total != 0 {
		t.Errorf("expected no completed bookings, got %d", total)
	}
	if _, _, err := f.svc.ListBookings(ctx, "s1", "shipped", 20, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	sum, err := f.svc.Summary(ctx, "s1")
	if err != nil || sum.Total != 1 || sum.ByStatus[StatusPending] != 1 || len(sum.ByStatus) != 4 {
		t.Errorf("unexpected summary %+v err=%v", sum, err)
	}

	if _, err := f.svc.GetBooking(ctx, "s2", rec.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("other sessions must not see the booking, got %v", err)
	}
}

func TestTimeSlots(t *testing.T) {
	f := newFixture(t, nil)

	slots, err := f.svc.TimeSlots("2026-10-19")
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 24 || slots[0].Time != "06:00 AM" || slots[23].Time != "05:30 PM" {
		t.Fatalf("unexpected slots %+v", slots)
	}
	unavailable := 0
	for _, s := range slots {
		if !s.Available {
			unavailable++
		}
	}
	if unavailable != 3 {
		t.Errorf("expected 3 unavailable slots, got %d", unavailable)
	}

	past, _ := f.svc.TimeSlots("2026-10-18")
	for _, s := range past {
		if s.Available {
			t.Fatalf("slot %s should be unavailable today", s.Time)
		}
	}
	if _, err := f.svc.TimeSlots("tomorrow"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if got := f.svc.MinDate(); got != "2026-10-19" {
		t.Errorf("expected min date 2026-10-19, got %s", got)
	}
}
