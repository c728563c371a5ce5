package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu      sync.RWMutex
	records []*Record
}

func NewMemoryRepo() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) Create(_ context.Context, rec *Record) error {
	cp := *rec
	r.mu.Lock()
	r.records = append(r.records, &cp)
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) Get(_ context.Context, sessionID string, id uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id && rec.SessionID == sessionID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]*Record, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items, total := page(r.records, f)
	return items, total, nil
}

func (r *memoryRepo) CountByStatus(_ context.Context, sessionID string) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return countByStatus(r.records, sessionID), nil
}

func (r *memoryRepo) ListByAppointmentDate(_ context.Context, date string) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.records {
		if rec.AppointmentDate == date {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// page filters, orders newest first and slices recs. The returned records are
// copies.
func page(recs []*Record, f Filter) ([]*Record, int) {
	var matched []*Record
	for _, rec := range recs {
		if rec.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	lo := f.Offset
	if lo > total {
		lo = total
	}
	hi := total
	if f.Limit > 0 && lo+f.Limit < total {
		hi = lo + f.Limit
	}
	return matched[lo:hi], total
}

func countByStatus(recs []*Record, sessionID string) map[Status]int {
	out := map[Status]int{}
	for _, rec := range recs {
		if rec.SessionID == sessionID {
			out[rec.Status]++
		}
	}
	return out
}
