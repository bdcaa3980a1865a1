// Package memory provides a process-local dedup store for single-replica
// deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DedupStore = (*DedupStore)(nil)

// sweepInterval bounds how often Reserve scans for expired keys.
const sweepInterval = time.Minute

// DedupStore is a mutex-guarded map of key to expiry.
type DedupStore struct {
	mu        sync.Mutex
	keys      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewDedupStore creates an empty store.
func NewDedupStore() *DedupStore {
	return &DedupStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Reserve claims key for ttl unless an unexpired reservation exists.
func (s *DedupStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.keys[key]; ok && now.Before(exp) {
		return false, nil
	}

	s.keys[key] = now.Add(ttl)
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.evictExpired(now)
		s.lastSweep = now
	}
	return true, nil
}

// Refresh resets the expiry of a held key. Missing keys are ignored.
func (s *DedupStore) Refresh(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		s.keys[key] = s.now().Add(ttl)
	}
	return nil
}

// evictExpired drops stale entries so the map does not grow without bound.
// Callers must hold mu.
func (s *DedupStore) evictExpired(now time.Time) {
	for k, exp := range s.keys {
		if !now.Before(exp) {
			delete(s.keys, k)
		}
	}
}
