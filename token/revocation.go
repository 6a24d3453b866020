package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrRecordNotFound is returned by RevocationStore.Get for an unknown token id.
var ErrRecordNotFound = errors.New("revocation record not found")

// RevocationStore keeps one revocation state per token id. Implementations
// must make each call atomic for a given id.
type RevocationStore interface {
	// Get reports whether id is revoked, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (bool, error)
	// Set writes the state of id. A revoked record never becomes active again.
	Set(ctx context.Context, id string, revoked bool, expiresAt time.Time) error
	// Revoke flips id from active to revoked. It returns false when the
	// record is missing or already revoked.
	Revoke(ctx context.Context, id string) (bool, error)
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)

type revocationRecord struct {
	revoked   atomic.Bool
	expiresAt time.Time
}

// MemoryRevocationStore keeps records in a sync.Map; each record flips with
// an atomic compare-and-swap so ids never contend with each other.
type MemoryRevocationStore struct {
	records sync.Map // id -> *revocationRecord
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{}
}

func (s *MemoryRevocationStore) Get(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := s.records.Load(id)
	if !ok {
		return false, ErrRecordNotFound
	}
	return v.(*revocationRecord).revoked.Load(), nil
}

func (s *MemoryRevocationStore) Set(ctx context.Context, id string, revoked bool, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := &revocationRecord{expiresAt: expiresAt}
	rec.revoked.Store(revoked)
	if v, loaded := s.records.LoadOrStore(id, rec); loaded && revoked {
		v.(*revocationRecord).revoked.Store(true)
	}
	return nil
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := s.records.Load(id)
	if !ok {
		return false, nil
	}
	return v.(*revocationRecord).revoked.CompareAndSwap(false, true), nil
}

// Cleanup drops records whose token has expired and returns how many went.
func (s *MemoryRevocationStore) Cleanup(now time.Time) int {
	removed := 0
	s.records.Range(func(key, value any) bool {
		if !now.Before(value.(*revocationRecord).expiresAt) {
			s.records.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
