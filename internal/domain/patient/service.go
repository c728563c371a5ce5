package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/kvstore"
	"github.com/medbliss/medbliss/internal/platform/validation"
)

var ErrMemberNotFound = errors.New("family member not found")

// Service manages the profile and family members of a session. Both live in
// durable slots; every mutation publishes profileUpdated.
type Service struct {
	slots    *kvstore.Slots
	bus      *events.Bus
	validate *validation.Validator
	locks    *kvstore.KeyedMutex
}

func NewService(slots *kvstore.Slots, bus *events.Bus) *Service {
	return &Service{
		slots:    slots,
		bus:      bus,
		validate: validation.New(),
		locks:    kvstore.NewKeyedMutex(),
	}
}

// GetProfile returns nil when the session has not saved a profile yet.
func (s *Service) GetProfile(ctx context.Context, sessionID string) (*Profile, error) {
	var p Profile
	ok, err := s.slots.Read(ctx, sessionID, kvstore.SlotUserProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Service) SaveProfile(ctx context.Context, sessionID string, p *Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return &validation.Error{Fields: []string{"name"}}
	}
	if p.ID == "" {
		p.ID = "1"
	}
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotUserProfile, p); err != nil {
		return err
	}
	s.publish(sessionID)
	return nil
}

// ListFamily returns members in insertion order.
func (s *Service) ListFamily(ctx context.Context, sessionID string) ([]FamilyMember, error) {
	members := []FamilyMember{}
	if _, err := s.slots.Read(ctx, sessionID, kvstore.SlotFamilyMembers, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Service) AddFamilyMember(ctx context.Context, sessionID string, m *FamilyMember) error {
	trimMember(m)
	if err := s.validate.Struct(m); err != nil {
		return err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	members, err := s.ListFamily(ctx, sessionID)
	if err != nil {
		return err
	}
	m.ID = uuid.New().String()
	members = append(members, *m)
	return s.saveFamily(ctx, sessionID, members)
}

// UpdateFamilyMember replaces the member with m.ID.
func (s *Service) UpdateFamilyMember(ctx context.Context, sessionID string, m *FamilyMember) error {
	trimMember(m)
	if err := s.validate.Struct(m); err != nil {
		return err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	members, err := s.ListFamily(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range members {
		if members[i].ID == m.ID {
			members[i] = *m
			return s.saveFamily(ctx, sessionID, members)
		}
	}
	return ErrMemberNotFound
}

// DeleteFamilyMember leaves cart entries tagged with the member untouched;
// they keep the name they were added with.
func (s *Service) DeleteFamilyMember(ctx context.Context, sessionID, id string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	members, err := s.ListFamily(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := range members {
		if members[i].ID == id {
			members = append(members[:i], members[i+1:]...)
			return s.saveFamily(ctx, sessionID, members)
		}
	}
	return ErrMemberNotFound
}

// ListPatients returns self first, then family members.
func (s *Service) ListPatients(ctx context.Context, sessionID string) ([]Descriptor, error) {
	profile, err := s.GetProfile(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	members, err := s.ListFamily(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(members)+1)
	out = append(out, SelfDescriptor(profile))
	for _, m := range members {
		out = append(out, m.Descriptor())
	}
	return out, nil
}

// Lookup resolves a patient id. An empty id means self.
func (s *Service) Lookup(ctx context.Context, sessionID, patientID string) (Descriptor, bool, error) {
	if patientID == "" {
		patientID = SelfID
	}
	patients, err := s.ListPatients(ctx, sessionID)
	if err != nil {
		return Descriptor{}, false, err
	}
	for _, p := range patients {
		if p.ID == patientID {
			return p, true, nil
		}
	}
	return Descriptor{}, false, nil
}

func (s *Service) saveFamily(ctx context.Context, sessionID string, members []FamilyMember) error {
	if err := s.slots.Write(ctx, sessionID, kvstore.SlotFamilyMembers, members); err != nil {
		return fmt.Errorf("save family members: %w", err)
	}
	s.publish(sessionID)
	return nil
}

func (s *Service) publish(sessionID string) {
	if s.bus != nil {
		s.bus.Publish(events.ProfileUpdated, sessionID, nil)
	}
}

func trimMember(m *FamilyMember) {
	m.Name = strings.TrimSpace(m.Name)
	m.Age = strings.TrimSpace(m.Age)
	m.Gender = strings.TrimSpace(m.Gender)
	m.Phone = strings.TrimSpace(m.Phone)
	m.Relationship = strings.TrimSpace(m.Relationship)
}
