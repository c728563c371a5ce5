package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/domain/patient"
	"github.com/medbliss/medbliss/internal/platform/db"
	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
)

var (
	ErrItemNotFound    = errors.New("catalog item not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrEmpty           = errors.New("cart is empty")
)

// Catalog resolves catalog references on add.
type Catalog interface {
	ByID(kind catalog.Kind, id int) (catalog.Item, bool)
}

// Directory lists the patients of a session, self first.
type Directory interface {
	ListPatients(ctx context.Context, sessionID string) ([]patient.Descriptor, error)
}

// Updated is the payload of cartUpdated.
type Updated struct {
	Count int `json:"count"`
}

// Store persists carts and promo codes in session slots. Operations on one
// session are serialized; different sessions proceed in parallel.
type Store struct {
	slots    *kvstore.Slots
	catalog  Catalog
	patients Directory
	bus      *events.Bus
	locks    *kvstore.KeyedMutex
}

func NewStore(slots *kvstore.Slots, cat Catalog, patients Directory, bus *events.Bus) *Store {
	return &Store{
		slots:    slots,
		catalog:  cat,
		patients: patients,
		bus:      bus,
		locks:    kvstore.NewKeyedMutex(),
	}
}

func (s *Store) Get(ctx context.Context, sessionID string) (*Cart, error) {
	return s.load(ctx, sessionID)
}

// Add puts the catalog item in the cart for patientID (self when empty).
// It reports false when the entry was already present.
func (s *Store) Add(ctx context.Context, sessionID string, kind catalog.Kind, id int, patientID string) (*Cart, bool, error) {
	item, ok := s.catalog.ByID(kind, id)
	if !ok {
		return nil, false, ErrItemNotFound
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, err := s.lookup(ctx, sessionID, normalizePatient(patientID))
	if err != nil {
		return nil, false, err
	}
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	added := c.Add(Entry{
		ID:            item.ID,
		Type:          item.Kind,
		Name:          item.Name,
		Price:         item.Price,
		OriginalPrice: item.OriginalPrice,
		PatientID:     d.ID,
		PatientName:   d.Name,
	})
	if !added {
		return c, false, nil
	}
	if err := s.save(ctx, sessionID, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Remove is a no-op when no entry matches.
func (s *Store) Remove(ctx context.Context, sessionID string, kind catalog.Kind, id int, patientID string) (*Cart, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !c.Remove(id, kind, patientID) {
		return c, nil
	}
	if err := s.save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reassign moves an entry to a known patient of the session.
func (s *Store) Reassign(ctx context.Context, sessionID, entryID, patientID string) (*Cart, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	d, err := s.lookup(ctx, sessionID, normalizePatient(patientID))
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.Reassign(entryID, d.ID, d.Name); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear empties the cart. The stored promo code is kept.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.slots.Remove(ctx, sessionID, kvstore.SlotCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.publish(sessionID, 0)
	return nil
}

// Groups returns the cart split by patient.
func (s *Store) Groups(ctx context.Context, sessionID string) ([]Group, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.group(ctx, sessionID, c)
}

// ApplyPromo stores the normalized code. An unknown code leaves the stored
// promo untouched.
func (s *Store) ApplyPromo(ctx context.Context, sessionID, code string) (Quote, error) {
	code, ok := NormalizePromo(code)
	if !ok {
		return Quote{}, ErrInvalidPromo
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.slots.Write(ctx, sessionID, kvstore.SlotPromo, promoState{Code: code}); err != nil {
		return Quote{}, fmt.Errorf("save promo: %w", err)
	}
	return s.quote(ctx, sessionID)
}

func (s *Store) ClearPromo(ctx context.Context, sessionID string) (Quote, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.slots.Remove(ctx, sessionID, kvstore.SlotPromo); err != nil {
		return Quote{}, fmt.Errorf("clear promo: %w", err)
	}
	return s.quote(ctx, sessionID)
}

// Quote prices the current cart with the stored promo code.
func (s *Store) Quote(ctx context.Context, sessionID string) (Quote, error) {
	return s.quote(ctx, sessionID)
}

// Contents is the cart as it stood when Checkout took it.
type Contents struct {
	Cart   *Cart
	Quote  Quote
	Groups []Group
}

// Checkout empties the cart and promo slots and hands their former contents
// to fn, holding the session lock throughout. If fn fails the slots are
// restored, or left to the rollback when ctx carries a database transaction.
// Checkout does not publish cartUpdated; the caller announces the empty cart
// once its unit of work has committed.
func (s *Store) Checkout(ctx context.Context, sessionID string, fn func(ctx context.Context, c Contents) error) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	c, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if c.IsEmpty() {
		return ErrEmpty
	}
	code, err := s.promoCode(ctx, sessionID)
	if err != nil {
		return err
	}
	groups, err := s.group(ctx, sessionID, c)
	if err != nil {
		return err
	}
	contents := Contents{Cart: c, Quote: NewQuote(c.Totals(), code), Groups: groups}

	if err := s.slots.Remove(ctx, sessionID, kvstore.SlotCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if err := s.slots.Remove(ctx, sessionID, kvstore.SlotPromo); err != nil {
		return fmt.Errorf("clear promo: %w", err)
	}

	if err := fn(ctx, contents); err != nil {
		if db.TxFromContext(ctx) != nil {
			return err
		}
		if rerr := s.restore(ctx, sessionID, c, code); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func (s *Store) restore(ctx context.Context, sessionID string, c *Cart, code string) error {
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotCart, c.Entries); err != nil {
		return fmt.Errorf("restore cart: %w", err)
	}
	if code == "" {
		return nil
	}
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotPromo, promoState{Code: code}); err != nil {
		return fmt.Errorf("restore promo: %w", err)
	}
	return nil
}

func (s *Store) quote(ctx context.Context, sessionID string) (Quote, error) {
	c, err := s.load(ctx, sessionID)
	if err != nil {
		return Quote{}, err
	}
	code, err := s.promoCode(ctx, sessionID)
	if err != nil {
		return Quote{}, err
	}
	return NewQuote(c.Totals(), code), nil
}

func (s *Store) promoCode(ctx context.Context, sessionID string) (string, error) {
	var p promoState
	if _, err := s.slots.Read(ctx, sessionID, kvstore.SlotPromo, &p); err != nil {
		return "", err
	}
	return p.Code, nil
}

// load reads the cart slot, which holds the bare entry array.
func (s *Store) load(ctx context.Context, sessionID string) (*Cart, error) {
	c := &Cart{Entries: []Entry{}}
	if _, err := s.slots.Read(ctx, sessionID, kvstore.SlotCart, &c.Entries); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) save(ctx context.Context, sessionID string, c *Cart) error {
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotCart, c.Entries); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.publish(sessionID, c.Len())
	return nil
}

func (s *Store) lookup(ctx context.Context, sessionID, patientID string) (patient.Descriptor, error) {
	patients, err := s.patients.ListPatients(ctx, sessionID)
	if err != nil {
		return patient.Descriptor{}, fmt.Errorf("list patients: %w", err)
	}
	for _, p := range patients {
		if p.ID == patientID {
			return p, nil
		}
	}
	return patient.Descriptor{}, ErrPatientNotFound
}

func (s *Store) group(ctx context.Context, sessionID string, c *Cart) ([]Group, error) {
	patients, err := s.patients.ListPatients(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	byID := make(map[string]patient.Descriptor, len(patients))
	for _, p := range patients {
		byID[p.ID] = p
	}
	return c.GroupByPatient(func(id string) (patient.Descriptor, bool) {
		d, ok := byID[id]
		return d, ok
	}), nil
}

func (s *Store) publish(sessionID string, count int) {
	if s.bus != nil {
		s.bus.Publish(events.CartUpdated, sessionID, Updated{Count: count})
	}
}
