// Package kvstore holds durable per-session slots. A slot is a named JSON
// value ("cart", "promo", "bookingDraft", "userProfile", "familyMembers")
// owned by one session. Writes are last-write-wins.
package kvstore

import (
	"context"
	"errors"
)

// Slot names.
const (
	SlotCart          = "cart"
	SlotPromo         = "promo"
	SlotBookingDraft  = "bookingDraft"
	SlotUserProfile   = "userProfile"
	SlotFamilyMembers = "familyMembers"
)

// ErrNotFound is returned by Get when the slot has never been written or
// was deleted.
var ErrNotFound = errors.New("slot not found")

// Store is a raw byte store addressed by (session, slot).
type Store interface {
	Get(ctx context.Context, sessionID, slot string) ([]byte, error)
	Put(ctx context.Context, sessionID, slot string, value []byte) error
	Delete(ctx context.Context, sessionID, slot string) error
	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error
	Close() error
}
