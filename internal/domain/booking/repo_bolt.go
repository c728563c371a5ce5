package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bookingsBucket = []byte("bookings")

// boltRepo keeps one nested bucket per session under "bookings", keyed by
// record id. It shares the file opened by the slot store.
type boltRepo struct {
	db *bolt.DB
}

func NewBoltRepo(db *bolt.DB) Repository {
	return &boltRepo{db: db}
}

func (r *boltRepo) Create(_ context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode booking: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bookingsBucket)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(rec.SessionID))
		if err != nil {
			return err
		}
		key := []byte(rec.ID.String())
		if b.Get(key) != nil {
			return fmt.Errorf("booking %s already exists", rec.ID)
		}
		return b.Put(key, raw)
	})
}

func (r *boltRepo) Get(_ context.Context, sessionID string, id uuid.UUID) (*Record, error) {
	var rec *Record
	err := r.db.View(func(tx *bolt.Tx) error {
		b := sessionBucket(tx, sessionID)
		if b == nil {
			return ErrBookingNotFound
		}
		v := b.Get([]byte(id.String()))
		if v == nil {
			return ErrBookingNotFound
		}
		rec = &Record{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *boltRepo) List(_ context.Context, f Filter) ([]*Record, int, error) {
	recs, err := r.session(f.SessionID)
	if err != nil {
		return nil, 0, err
	}
	items, total := page(recs, f)
	return items, total, nil
}

func (r *boltRepo) CountByStatus(_ context.Context, sessionID string) (map[Status]int, error) {
	recs, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	return countByStatus(recs, sessionID), nil
}

func (r *boltRepo) ListByAppointmentDate(_ context.Context, date string) ([]*Record, error) {
	var out []*Record
	err := r.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bookingsBucket)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			b := root.Bucket(k)
			if v != nil || b == nil {
				return nil
			}
			return b.ForEach(func(_, raw []byte) error {
				var rec Record
				if err := json.Unmarshal(raw, &rec); err != nil {
					return err
				}
				if rec.AppointmentDate == date {
					out = append(out, &rec)
				}
				return nil
			})
		})
	})
	return out, err
}

func (r *boltRepo) session(sessionID string) ([]*Record, error) {
	var out []*Record
	err := r.db.View(func(tx *bolt.Tx) error {
		b := sessionBucket(tx, sessionID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, raw []byte) error {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode booking: %w", err)
			}
			out = append(out, &rec)
			return nil
		})
	})
	return out, err
}

func sessionBucket(tx *bolt.Tx, sessionID string) *bolt.Bucket {
	root := tx.Bucket(bookingsBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(sessionID))
}
