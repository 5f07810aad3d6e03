// Package memstore provides a mutex-guarded in-memory refresh.Store, used by
// tests and single-process deployments that can afford to lose refresh
// credentials on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/larslab/authcore/refresh"
)

// Store keeps records in process memory. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	byHash map[string]*refresh.Record
	byID   map[string]*refresh.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byHash: make(map[string]*refresh.Record),
		byID:   make(map[string]*refresh.Record),
	}
}

func (s *Store) Insert(_ context.Context, rec refresh.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *Store) FindByHash(_ context.Context, hash string) (refresh.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byHash[hash]
	if !ok {
		return refresh.Record{}, refresh.ErrNotFound
	}
	return *rec, nil
}

func (s *Store) MarkRevoked(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return refresh.ErrNotFound
	}
	rec.Revoked = true
	return nil
}

// Rotate holds the lock across the revoke-and-insert pair, so concurrent
// callers for the same hash serialize and only the first finds the record
// unrevoked.
func (s *Store) Rotate(_ context.Context, oldHash string, replacement refresh.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byHash[oldHash]
	if !ok {
		return refresh.ErrNotFound
	}
	if rec.Revoked {
		return refresh.ErrRevoked
	}
	rec.Revoked = true
	s.insertLocked(replacement)
	return nil
}

// Sweep drops records expired before now and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, rec := range s.byHash {
		if !now.Before(rec.ExpiresAt) {
			delete(s.byHash, hash)
			delete(s.byID, rec.ID)
			removed++
		}
	}
	return removed
}

func (s *Store) insertLocked(rec refresh.Record) {
	stored := rec
	s.byHash[rec.TokenHash] = &stored
	s.byID[rec.ID] = &stored
}
