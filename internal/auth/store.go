package auth

import (
	"context"
	"sync"
)

// PrincipalStore persists principals. Username uniqueness must be enforced by the store itself.
type PrincipalStore interface {
	// FindByUsername returns ErrPrincipalNotFound when no principal has username
	FindByUsername(ctx context.Context, username string) (*Principal, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Create stores p and sets p.ID; returns ErrUsernameTaken on a uniqueness violation
	Create(ctx context.Context, p *Principal) error
}

// MemoryPrincipalStore is an in-process PrincipalStore
type MemoryPrincipalStore struct {
	mu         sync.RWMutex
	nextID     int64
	principals map[string]*Principal
}

// NewMemoryPrincipalStore creates an empty in-memory store
func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{
		principals: make(map[string]*Principal),
	}
}

func (s *MemoryPrincipalStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[username]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (s *MemoryPrincipalStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.principals[username]
	return ok, nil
}

func (s *MemoryPrincipalStore) Create(ctx context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[p.Username]; ok {
		return ErrUsernameTaken
	}

	s.nextID++
	p.ID = s.nextID
	s.principals[p.Username] = clonePrincipal(p)
	return nil
}

func clonePrincipal(p *Principal) *Principal {
	c := *p
	c.Roles = append([]Role(nil), p.Roles...)
	return &c
}
