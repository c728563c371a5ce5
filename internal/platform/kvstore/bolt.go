package kvstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore persists slots in a single bbolt file, one bucket per slot name
// keyed by session id.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// DB exposes the handle so other stores can share the file.
func (s *BoltStore) DB() *bolt.DB { return s.db }

func (s *BoltStore) Get(_ context.Context, sessionID, slot string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(slot))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(sessionID))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Put(_ context.Context, sessionID, slot string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(slot))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", slot, err)
		}
		return b.Put([]byte(sessionID), value)
	})
}

func (s *BoltStore) Delete(_ context.Context, sessionID, slot string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(slot))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(sessionID))
	})
}

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
