// Package sandbox fills a demo environment with synthetic sessions. Every
// profile, cart and booking goes through the same services the API uses, so
// seeded data triggers the usual events, notifications and webhooks.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbliss/medbliss/internal/domain/booking"
	"github.com/medbliss/medbliss/internal/domain/cart"
	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls how much data is generated.
type SeedConfig struct {
	Sessions           int     `json:"sessions"`
	FamilyPerSession   int     `json:"familyPerSession"`
	ItemsPerBooking    int     `json:"itemsPerBooking"`
	BookingsPerSession int     `json:"bookingsPerSession"`
	PromoRate          float64 `json:"promoRate"`
	SessionPrefix      string  `json:"sessionPrefix"`
	Seed               int64   `json:"seed"`
}

// DefaultSeedConfig is a small data set suitable for a local demo.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Sessions:           5,
		FamilyPerSession:   2,
		ItemsPerBooking:    3,
		BookingsPerSession: 2,
		PromoRate:          0.3,
		SessionPrefix:      "demo",
	}
}

func (c *SeedConfig) applyDefaults() {
	def := DefaultSeedConfig()
	if c.Sessions <= 0 {
		c.Sessions = def.Sessions
	}
	if c.ItemsPerBooking <= 0 {
		c.ItemsPerBooking = 1
	}
	if c.FamilyPerSession < 0 {
		c.FamilyPerSession = 0
	}
	if c.BookingsPerSession < 0 {
		c.BookingsPerSession = 0
	}
	if c.SessionPrefix == "" {
		c.SessionPrefix = def.SessionPrefix
	}
}

// SeedResult summarizes one run.
type SeedResult struct {
	SessionIDs    []string      `json:"sessionIds"`
	Profiles      int           `json:"profiles"`
	FamilyMembers int           `json:"familyMembers"`
	CartItems     int           `json:"cartItems"`
	Bookings      int           `json:"bookings"`
	PromosApplied int           `json:"promosApplied"`
	Revenue       int64         `json:"revenue"`
	Duration      time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Name and address pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale   = []string{"Rahul", "Arjun", "Vikram", "Rohan", "Aditya", "Karan", "Siddharth", "Aman", "Nikhil", "Pranav"}
	firstNamesFemale = []string{"Priya", "Ananya", "Sneha", "Kavya", "Meera", "Isha", "Pooja", "Divya", "Neha", "Riya"}
	lastNames        = []string{"Sharma", "Patel", "Reddy", "Iyer", "Nair", "Gupta", "Singh", "Das", "Menon", "Joshi"}
	streets          = []string{"MG Road", "Residency Road", "Park Street", "Linking Road", "Anna Salai", "FC Road", "Banjara Hills Road 2"}

	relationships = []string{"Spouse", "Father", "Mother", "Son", "Daughter", "Sibling"}
	instructions  = []string{"", "", "Please call before arriving.", "Ring the bell twice.", "Patient is diabetic, prefers an early slot."}
	promoCodes    = []string{"HEALTH10", "FIRST20"}
)

type city struct {
	Name    string
	State   string
	Pincode string
}

var cities = []city{
	{"Bengaluru", "Karnataka", "560001"},
	{"Mumbai", "Maharashtra", "400001"},
	{"Chennai", "Tamil Nadu", "600001"},
	{"Hyderabad", "Telangana", "500001"},
	{"Pune", "Maharashtra", "411001"},
	{"Kolkata", "West Bengal", "700001"},
	{"New Delhi", "Delhi", "110001"},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic people and addresses.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) name() (full, gender string) {
	first := g.pick(firstNamesFemale)
	gender = "Female"
	if g.rng.Intn(2) == 0 {
		first = g.pick(firstNamesMale)
		gender = "Male"
	}
	return first + " " + g.pick(lastNames), gender
}

// Phone returns a ten digit Indian mobile number.
func (g *DataGenerator) Phone() string {
	return fmt.Sprintf("%d%09d", 6+g.rng.Intn(4), g.rng.Intn(1000000000))
}

func (g *DataGenerator) Address() booking.Address {
	c := cities[g.rng.Intn(len(cities))]
	return booking.Address{
		Street:  fmt.Sprintf("%d %s", 1+g.rng.Intn(300), g.pick(streets)),
		City:    c.Name,
		State:   c.State,
		Pincode: c.Pincode,
	}
}

// Profile generates an account holder aged 25 to 64.
func (g *DataGenerator) Profile() *patient.Profile {
	name, gender := g.name()
	addr := g.Address()
	return &patient.Profile{
		Name:             name,
		Email:            emailFor(name),
		Phone:            g.Phone(),
		Age:              fmt.Sprint(25 + g.rng.Intn(40)),
		Gender:           gender,
		Address:          fmt.Sprintf("%s, %s, %s %s", addr.Street, addr.City, addr.State, addr.Pincode),
		EmergencyContact: g.Phone(),
	}
}

func (g *DataGenerator) FamilyMember() *patient.FamilyMember {
	name, gender := g.name()
	return &patient.FamilyMember{
		Name:         name,
		Age:          fmt.Sprint(5 + g.rng.Intn(75)),
		Gender:       gender,
		Phone:        g.Phone(),
		Relationship: g.pick(relationships),
	}
}

func emailFor(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		switch ch := name[i]; {
		case ch == ' ':
			b = append(b, '.')
		case ch >= 'A' && ch <= 'Z':
			b = append(b, ch+'a'-'A')
		default:
			b = append(b, ch)
		}
	}
	return string(b) + "@example.com"
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type Catalog interface {
	All(kind catalog.Kind) []catalog.Item
}

type Patients interface {
	SaveProfile(ctx context.Context, sessionID string, p *patient.Profile) error
	AddFamilyMember(ctx context.Context, sessionID string, m *patient.FamilyMember) error
}

type Carts interface {
	Add(ctx context.Context, sessionID string, kind catalog.Kind, id int, patientID string) (*cart.Cart, bool, error)
	ApplyPromo(ctx context.Context, sessionID, code string) (cart.Quote, error)
}

type Bookings interface {
	UpdateDraft(ctx context.Context, sessionID string, details booking.Details) (*booking.Draft, error)
	Submit(ctx context.Context, sessionID string) (*booking.Draft, error)
	Confirm(ctx context.Context, sessionID string) (*booking.Record, error)
	Reset(ctx context.Context, sessionID string) error
	MinDate() string
}

// Seeder walks synthetic sessions through the booking flow.
type Seeder struct {
	catalog  Catalog
	patients Patients
	carts    Carts
	bookings Bookings
	logger   zerolog.Logger
}

func NewSeeder(cat Catalog, patients Patients, carts Carts, bookings Bookings, logger zerolog.Logger) *Seeder {
	return &Seeder{
		catalog:  cat,
		patients: patients,
		carts:    carts,
		bookings: bookings,
		logger:   logger.With().Str("component", "sandbox").Logger(),
	}
}

// Run generates cfg.Sessions sessions named <prefix>-<n>. Each gets a profile,
// family members and cfg.BookingsPerSession confirmed bookings.
func (s *Seeder) Run(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	cfg.applyDefaults()
	start := time.Now()
	gen := NewDataGenerator(cfg.Seed)

	var items []catalog.Item
	items = append(items, s.catalog.All(catalog.KindTest)...)
	items = append(items, s.catalog.All(catalog.KindPackage)...)
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	res := &SeedResult{SessionIDs: make([]string, 0, cfg.Sessions)}
	for i := 1; i <= cfg.Sessions; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sid := fmt.Sprintf("%s-%d", cfg.SessionPrefix, i)
		if err := s.seedSession(ctx, sid, cfg, gen, items, res); err != nil {
			return res, fmt.Errorf("seed session %s: %w", sid, err)
		}
		res.SessionIDs = append(res.SessionIDs, sid)
	}
	res.Duration = time.Since(start)

	s.logger.Info().
		Int("sessions", len(res.SessionIDs)).
		Int("bookings", res.Bookings).
		Int64("revenue", res.Revenue).
		Dur("duration", res.Duration).
		Msg("sandbox seeded")
	return res, nil
}

func (s *Seeder) seedSession(ctx context.Context, sid string, cfg SeedConfig, gen *DataGenerator, items []catalog.Item, res *SeedResult) error {
	profile := gen.Profile()
	if err := s.patients.SaveProfile(ctx, sid, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	res.Profiles++

	patientIDs := []string{patient.SelfID}
	for j := 0; j < cfg.FamilyPerSession; j++ {
		m := gen.FamilyMember()
		if err := s.patients.AddFamilyMember(ctx, sid, m); err != nil {
			return fmt.Errorf("add family member: %w", err)
		}
		patientIDs = append(patientIDs, m.ID)
		res.FamilyMembers++
	}

	for b := 0; b < cfg.BookingsPerSession; b++ {
		for j := 0; j < cfg.ItemsPerBooking; j++ {
			item := items[gen.rng.Intn(len(items))]
			pid := patientIDs[gen.rng.Intn(len(patientIDs))]
			_, added, err := s.carts.Add(ctx, sid, item.Kind, item.ID, pid)
			if err != nil {
				return fmt.Errorf("add %s %d: %w", item.Kind, item.ID, err)
			}
			if added {
				res.CartItems++
			}
		}
		if gen.rng.Float64() < cfg.PromoRate {
			if _, err := s.carts.ApplyPromo(ctx, sid, gen.pick(promoCodes)); err != nil {
				return fmt.Errorf("apply promo: %w", err)
			}
			res.PromosApplied++
		}

		rec, err := s.book(ctx, sid, profile, gen)
		if err != nil {
			return err
		}
		res.Bookings++
		res.Revenue += rec.TotalAmount
	}
	return nil
}

func (s *Seeder) book(ctx context.Context, sid string, p *patient.Profile, gen *DataGenerator) (*booking.Record, error) {
	if err := s.bookings.Reset(ctx, sid); err != nil {
		return nil, fmt.Errorf("reset draft: %w", err)
	}
	slots := booking.DaySlots()
	slot := slots[gen.rng.Intn(len(slots))]
	for !slot.Available {
		slot = slots[gen.rng.Intn(len(slots))]
	}
	details := booking.Details{
		PatientName:         p.Name,
		Email:               p.Email,
		Phone:               p.Phone,
		Address:             gen.Address(),
		AppointmentDate:     s.bookings.MinDate(),
		AppointmentTime:     slot.Time,
		HomeCollection:      gen.rng.Intn(4) != 0,
		SpecialInstructions: gen.pick(instructions),
	}
	if _, err := s.bookings.UpdateDraft(ctx, sid, details); err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	if _, err := s.bookings.Submit(ctx, sid); err != nil {
		return nil, fmt.Errorf("submit draft: %w", err)
	}
	rec, err := s.bookings.Confirm(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	if err := s.bookings.Reset(ctx, sid); err != nil {
		return nil, fmt.Errorf("reset draft: %w", err)
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

// SeedHandler exposes the seeder to administrators.
type SeedHandler struct {
	seeder *Seeder
	mu     sync.Mutex
	last   *SeedResult
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.HandleSeed)
	g.GET("/sandbox/last", h.HandleLast)
}

// HandleSeed runs one seed. Runs are serialized; an empty body uses
// DefaultSeedConfig.
func (h *SeedHandler) HandleSeed(c echo.Context) error {
	cfg := DefaultSeedConfig()
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&cfg); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid seed config")
		}
	}
	if cfg.Sessions > 500 {
		return echo.NewHTTPError(http.StatusBadRequest, "at most 500 sessions per run")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	res, err := h.seeder.Run(c.Request().Context(), cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "seed failed").SetInternal(err)
	}
	h.last = res
	return c.JSON(http.StatusOK, res)
}

func (h *SeedHandler) HandleLast(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return echo.NewHTTPError(http.StatusNotFound, "nothing seeded yet")
	}
	return c.JSON(http.StatusOK, h.last)
}
