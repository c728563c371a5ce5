package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Slots is the owned store object handed to the domain stores. It encodes
// values as JSON. Change notification is left to the domain stores, which
// know when a unit of work is complete.
type Slots struct {
	store Store
}

func NewSlots(store Store) *Slots {
	return &Slots{store: store}
}

// Read decodes the slot into v. It reports false when the slot is empty.
func (s *Slots) Read(ctx context.Context, sessionID, slot string, v any) (bool, error) {
	raw, err := s.store.Get(ctx, sessionID, slot)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", slot, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", slot, err)
	}
	return true, nil
}

// Write encodes v and replaces the slot.
func (s *Slots) Write(ctx context.Context, sessionID, slot string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	if err := s.store.Put(ctx, sessionID, slot, raw); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}

// Remove deletes the slot. Removing an empty slot is not an error.
func (s *Slots) Remove(ctx context.Context, sessionID, slot string) error {
	if err := s.store.Delete(ctx, sessionID, slot); err != nil {
		return fmt.Errorf("delete %s: %w", slot, err)
	}
	return nil
}
