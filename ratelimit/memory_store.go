package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type bucket struct {
	mu      sync.Mutex
	counter *Counter
	removed bool // set once Cleanup dropped the bucket from the map
}

// MemoryStore keeps one mutex per key. The map lock is only held to find
// or create a bucket, never while a counter is updated.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
	}
}

func (s *MemoryStore) bucket(key string) *bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	return b
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn func(current *Counter) (*Counter, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := s.bucket(key)
		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			continue
		}
		var current *Counter
		if b.counter != nil {
			c := *b.counter
			current = &c
		}
		next, err := fn(current)
		if err == nil {
			b.counter = next
		}
		b.mu.Unlock()
		return err
	}
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.Update(ctx, key, func(*Counter) (*Counter, error) {
		return nil, nil
	})
}

// Get returns a copy of the counter for key, if any.
func (s *MemoryStore) Get(key string) (Counter, bool) {
	s.mu.Lock()
	b, ok := s.buckets[key]
	s.mu.Unlock()
	if !ok {
		return Counter{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counter == nil {
		return Counter{}, false
	}
	return *b.counter, true
}

// Cleanup drops buckets that are empty or whose window started before
// cutoff, and returns how many were dropped.
func (s *MemoryStore) Cleanup(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		b.mu.Lock()
		if b.counter == nil || b.counter.WindowStart.Before(cutoff) {
			b.removed = true
			delete(s.buckets, key)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}
