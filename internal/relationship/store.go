package relationship

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/models"
)

// Version is an opaque, monotonically increasing token identifying one
// persisted state of the whole collection.
type Version uint64

// MutationFunc edits a private copy of the current collection. Returning an
// error aborts the apply without persisting anything.
type MutationFunc func(c Collection) error

// Store is durable storage for the full relationship collection.
//
// Apply is the only way to write: it re-reads the current version, fails
// with ErrConflict when it no longer equals expected, and otherwise runs fn
// and persists the result as the next version.
type Store interface {
	Snapshot(ctx context.Context) (Collection, Version, error)
	// Version reads the current version without loading the records.
	Version(ctx context.Context) (Version, error)
	Apply(ctx context.Context, expected Version, fn MutationFunc) (Version, error)
	FindByPair(ctx context.Context, a, b uuid.UUID) (models.Relationship, bool, error)
}

// MemoryStore keeps the collection in process memory. The write lock is
// held for the whole read-check-modify-swap of Apply.
type MemoryStore struct {
	mu      sync.RWMutex
	records Collection
	version Version
}

// NewMemoryStore returns an empty store at version 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(Collection)}
}

// Snapshot returns a copy of every record and the version it belongs to.
func (s *MemoryStore) Snapshot(ctx context.Context) (Collection, Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone(), s.version, nil
}

func (s *MemoryStore) Version(ctx context.Context) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// Apply runs fn against a copy of the collection if expected is current.
func (s *MemoryStore) Apply(ctx context.Context, expected Version, fn MutationFunc) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != expected {
		return s.version, fmt.Errorf("%w: expected %d, at %d", ErrConflict, expected, s.version)
	}
	next := s.records.Clone()
	if err := fn(next); err != nil {
		return s.version, err
	}
	s.records = next
	s.version++
	return s.version, nil
}

// FindByPair looks up the record for a and b in either order.
func (s *MemoryStore) FindByPair(ctx context.Context, a, b uuid.UUID) (models.Relationship, bool, error) {
	p, err := NewPair(a, b)
	if err != nil {
		return models.Relationship{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records.Get(p)
	return r, ok, nil
}
