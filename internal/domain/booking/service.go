package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/patient"
	"github.com/medbliss/medbliss/internal/platform/db"
	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
	"github.com/medbliss/medbliss/internal/platform/validation"
)

var (
	ErrInvalidTransition = errors.New("action not allowed at this booking step")
	ErrInvalidStatus     = errors.New("unknown booking status")
	ErrInvalidDate       = errors.New("invalid appointment date")

	// ErrCartEmpty is returned by Submit and Confirm when there is nothing to
	// book.
	ErrCartEmpty = cart.ErrEmpty
)

// Carts is the part of cart.Store the booking flow needs.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cart.Cart, error)
	Groups(ctx context.Context, sessionID string) ([]cart.Group, error)
	Quote(ctx context.Context, sessionID string) (cart.Quote, error)
	Checkout(ctx context.Context, sessionID string, fn func(ctx context.Context, c cart.Contents) error) error
}

// Profiles supplies the details used to pre-fill a new draft.
type Profiles interface {
	GetProfile(ctx context.Context, sessionID string) (*patient.Profile, error)
}

type Service struct {
	slots    *kvstore.Slots
	carts    Carts
	profiles Profiles
	repo     Repository
	tx       db.Transactor
	bus      *events.Bus
	node     *snowflake.Node
	logger   zerolog.Logger
	now      func() time.Time
	loc      *time.Location
	validate *validation.Validator
	locks    *kvstore.KeyedMutex
}

type Option func(*Service)

// WithTransactor runs Confirm inside a database transaction.
func WithTransactor(tx db.Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

func WithBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithNode sets the snowflake node used for booking references.
func WithNode(n *snowflake.Node) Option {
	return func(s *Service) { s.node = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source and the zone used to decide "tomorrow".
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Service) {
		s.now = now
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(slots *kvstore.Slots, carts Carts, profiles Profiles, repo Repository, opts ...Option) *Service {
	// Node 1 is inside snowflake's 10-bit node range, so NewNode cannot fail.
	node, _ := snowflake.NewNode(1)
	s := &Service{
		slots:    slots,
		carts:    carts,
		profiles: profiles,
		repo:     repo,
		tx:       db.Passthrough{},
		node:     node,
		logger:   zerolog.Nop(),
		now:      time.Now,
		loc:      time.UTC,
		validate: validation.New(),
		locks:    kvstore.NewKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetDraft returns the stored draft, or a new details draft pre-filled from
// the profile.
func (s *Service) GetDraft(ctx context.Context, sessionID string) (*Draft, error) {
	d, ok, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ok {
		return d, nil
	}
	return s.newDraft(ctx, sessionID)
}

func (s *Service) newDraft(ctx context.Context, sessionID string) (*Draft, error) {
	d := &Draft{Step: StepDetails, Details: Details{HomeCollection: true}, UpdatedAt: s.now()}
	p, err := s.profiles.GetProfile(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p != nil {
		d.Details.PatientName = p.Name
		d.Details.Email = p.Email
		d.Details.Phone = p.Phone
		d.Details.Address.Street = p.Address
	}
	return d, nil
}

// UpdateDraft replaces the draft details. Only allowed on the details step.
func (s *Service) UpdateDraft(ctx context.Context, sessionID string, details Details) (*Draft, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, err := s.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d.Step != StepDetails {
		return nil, ErrInvalidTransition
	}
	d.Details = trimDetails(details)
	d.UpdatedAt = s.now()
	if err := s.save(ctx, sessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Submit moves details -> confirmation after validating the fields and the
// cart, and freezes the cart into a snapshot. On failure the step is kept.
func (s *Service) Submit(ctx context.Context, sessionID string) (*Draft, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, err := s.GetDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d.Step != StepDetails {
		return nil, ErrInvalidTransition
	}
	if err := s.validateDetails(d.Details); err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrCartEmpty
	}
	groups, err := s.carts.Groups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	quote, err := s.carts.Quote(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d.Step = StepConfirmation
	d.Snapshot = &Snapshot{Groups: groups, Quote: quote, TakenAt: now}
	d.UpdatedAt = now
	if err := s.save(ctx, sessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Back returns confirmation -> details, keeping the fields.
func (s *Service) Back(ctx context.Context, sessionID string) (*Draft, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, ok, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok || d.Step != StepConfirmation {
		return nil, ErrInvalidTransition
	}
	d.Step = StepDetails
	d.Snapshot = nil
	d.UpdatedAt = s.now()
	if err := s.save(ctx, sessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Confirm turns the draft into a booking record. Creating the record and
// clearing the cart happen in one step: either both are visible afterwards
// or neither is. The draft moves to success before the record is written so
// that a failed step can never leave a record behind a retryable draft. The
// total is priced from the cart at this moment, not from the snapshot.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*Record, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, ok, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok || d.Step != StepConfirmation {
		return nil, ErrInvalidTransition
	}
	prev := *d

	var rec *Record
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.carts.Checkout(ctx, sessionID, func(ctx context.Context, c cart.Contents) error {
			now := s.now()
			rec = newRecord(sessionID, d.Details, c, now)
			rec.ID = uuid.New()
			rec.Reference = "BK" + s.node.Generate().String()

			d.Step = StepSuccess
			d.BookingID = rec.ID.String()
			d.Reference = rec.Reference
			d.UpdatedAt = now
			if err := s.save(ctx, sessionID, d); err != nil {
				return err
			}

			if err := s.repo.Create(ctx, rec); err != nil {
				err = fmt.Errorf("create booking: %w", err)
				if db.TxFromContext(ctx) != nil {
					return err
				}
				if rerr := s.save(ctx, sessionID, &prev); rerr != nil {
					return errors.Join(err, rerr)
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, ErrCartEmpty) {
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("booking confirmation failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", rec.ID.String()).
		Str("reference", rec.Reference).
		Str("session_id", sessionID).
		Int64("total_amount", rec.TotalAmount).
		Int("items", len(rec.PatientAssignments)).
		Str("appointment", rec.AppointmentDate+" "+rec.AppointmentTime).
		Msg("booking confirmed")
	if s.bus != nil {
		s.bus.Publish(events.CartUpdated, sessionID, cart.Updated{})
		s.bus.Publish(events.BookingConfirmed, sessionID, *rec)
	}
	return rec, nil
}

// Reset drops the draft so the next GetDraft starts over.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.slots.Remove(ctx, sessionID, kvstore.SlotBookingDraft)
}

func (s *Service) ListBookings(ctx context.Context, sessionID string, status Status, limit, offset int) ([]*Record, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, Filter{SessionID: sessionID, Status: status, Limit: limit, Offset: offset})
}

func (s *Service) GetBooking(ctx context.Context, sessionID string, id uuid.UUID) (*Record, error) {
	return s.repo.Get(ctx, sessionID, id)
}

// Summary reports every status, including those with no bookings.
func (s *Service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	counts, err := s.repo.CountByStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		sum.ByStatus[st] = counts[st]
		sum.Total += counts[st]
	}
	return sum, nil
}

// TimeSlots lists the slots for date. Dates before tomorrow have no
// available slots.
func (s *Service) TimeSlots(date string) ([]TimeSlot, error) {
	day, err := parseDate(date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	slots := DaySlots()
	if day.Before(minDate(s.now(), s.loc)) {
		for i := range slots {
			slots[i].Available = false
		}
	}
	return slots, nil
}

// MinDate is the earliest bookable appointment date.
func (s *Service) MinDate() string {
	return minDate(s.now(), s.loc).Format(dateLayout)
}

func (s *Service) validateDetails(d Details) error {
	var fields []string
	if err := s.validate.Struct(d); err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			return err
		}
		fields = verr.Fields
	}
	if d.AppointmentDate != "" {
		day, err := parseDate(d.AppointmentDate, s.loc)
		if err != nil || day.Before(minDate(s.now(), s.loc)) {
			fields = append(fields, "appointmentDate")
		}
	}
	if d.AppointmentTime != "" && !slotAvailable(d.AppointmentTime) {
		fields = append(fields, "appointmentTime")
	}
	if len(fields) > 0 {
		return &validation.Error{Fields: fields}
	}
	return nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*Draft, bool, error) {
	var d Draft
	ok, err := s.slots.Read(ctx, sessionID, kvstore.SlotBookingDraft, &d)
	if err != nil || !ok {
		return nil, false, err
	}
	return &d, true, nil
}

func (s *Service) save(ctx context.Context, sessionID string, d *Draft) error {
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotBookingDraft, d); err != nil {
		return fmt.Errorf("save booking draft: %w", err)
	}
	return nil
}

func trimDetails(d Details) Details {
	for _, f := range []*string{
		&d.PatientName, &d.Email, &d.Phone,
		&d.Address.Street, &d.Address.City, &d.Address.State, &d.Address.Pincode,
		&d.AppointmentDate, &d.AppointmentTime,
	} {
		*f = strings.TrimSpace(*f)
	}
	return d
}
