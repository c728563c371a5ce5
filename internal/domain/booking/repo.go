package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

// Filter narrows List to one session and optionally one status.
type Filter struct {
	SessionID string
	Status    Status
	Limit     int
	Offset    int
}

// Repository stores confirmed bookings. Records are write-once: there is no
// update or delete.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	// Get only returns records owned by sessionID.
	Get(ctx context.Context, sessionID string, id uuid.UUID) (*Record, error)
	// List returns records newest first, with the total before paging.
	List(ctx context.Context, f Filter) ([]*Record, int, error)
	CountByStatus(ctx context.Context, sessionID string) (map[Status]int, error)
	// ListByAppointmentDate scans every session; used by the reminder job.
	ListByAppointmentDate(ctx context.Context, date string) ([]*Record, error)
}
