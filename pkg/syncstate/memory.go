package syncstate

import (
	"context"
	"sync"

	"github.com/grovetools/marksync/errors"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	*broadcaster

	mu       sync.RWMutex
	rec      Record
	readErr  error
	writeErr error
	writes   int
}

// NewMemoryStore creates a store holding rec.
func NewMemoryStore(rec Record) *MemoryStore {
	return &MemoryStore{
		broadcaster: newBroadcaster(),
		rec:         rec.Normalize(),
	}
}

// Read returns a copy of the current record.
func (s *MemoryStore) Read(ctx context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return Record{}, errors.StoreAccess("read", s.readErr)
	}
	return s.rec.Clone(), nil
}

// Write replaces the record and notifies subscribers.
func (s *MemoryStore) Write(ctx context.Context, rec Record) error {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return errors.StoreAccess("write", s.writeErr)
	}
	s.rec = rec.Normalize()
	s.writes++
	current := s.rec.Clone()
	s.mu.Unlock()

	s.publish(Change{Record: current, Origin: OriginLocal})
	return nil
}

// SetExternal replaces the record as if another process had written it.
func (s *MemoryStore) SetExternal(rec Record) {
	s.mu.Lock()
	s.rec = rec.Normalize()
	current := s.rec.Clone()
	s.mu.Unlock()

	s.publish(Change{Record: current, Origin: OriginExternal})
}

// FailReads makes subsequent reads fail with err; nil restores them.
func (s *MemoryStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites makes subsequent writes fail with err; nil restores them.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Writes returns the number of successful writes.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
