package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/Housri/steam-auth-public/internal/user"
)

// memStore is an in-memory user.Store with a unique index on external id
// and injectable failures.
type memStore struct {
	mu   sync.Mutex
	rows map[string]user.Record

	findErr   error
	insertErr error
	updateErr error
	deleteErr error

	// beforeInsert runs without the lock, ahead of the unique check.
	beforeInsert func()

	inserts, updates, deletes int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]user.Record{}}
}

func (s *memStore) FindByExternalID(_ context.Context, externalID string) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	rec, ok := s.rows[externalID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) Insert(_ context.Context, rec user.Record) (*user.Record, error) {
	if s.beforeInsert != nil {
		hook := s.beforeInsert
		s.beforeInsert = nil
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return nil, s.insertErr
	}
	if _, ok := s.rows[rec.ExternalID]; ok {
		return nil, user.ErrDuplicateExternalID
	}
	s.inserts++
	s.rows[rec.ExternalID] = rec
	return &rec, nil
}

func (s *memStore) Update(_ context.Context, externalID string, p user.Profile, lastLoginAt time.Time) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}
	rec, ok := s.rows[externalID]
	if !ok {
		return nil, user.ErrNotFound
	}
	rec.DisplayName = p.DisplayName
	rec.ProfileURL = p.ProfileURL
	rec.Avatar = p.Avatar
	rec.LastLoginAt = lastLoginAt
	s.updates++
	s.rows[externalID] = rec
	return &rec, nil
}

func (s *memStore) Delete(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.rows[externalID]; !ok {
		return user.ErrNotFound
	}
	s.deletes++
	delete(s.rows, externalID)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
