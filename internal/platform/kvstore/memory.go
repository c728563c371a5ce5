package kvstore

import (
	"context"
	"sync"
)

type memKey struct {
	session string
	slot    string
}

// MemoryStore keeps slots in process memory. Values are copied on the way in
// and out.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[memKey][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[memKey][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, slot string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[memKey{sessionID, slot}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID, slot string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[memKey{sessionID, slot}] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, memKey{sessionID, slot})
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
