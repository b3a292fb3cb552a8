// Package memory holds mutex-guarded stores with the same contracts as the
// DynamoDB repositories. They back STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]domain.User{}, byEmail: map[string]string{}}
}

func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrEmailTaken)
	}
	if _, ok := s.byID[u.UserID]; ok {
		return fmt.Errorf("create user %s: %w", u.UserID, domain.ErrConflict)
	}
	if u.Version == 0 {
		u.Version = 1
	}
	s.byID[u.UserID] = *u
	s.byEmail[u.Email] = u.UserID
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Update replaces the stored user if its version still matches u.Version.
func (s *UserStore) Update(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[u.UserID]
	if !ok || cur.Version != u.Version {
		return fmt.Errorf("update user %s: %w", u.UserID, domain.ErrConflict)
	}
	u.Version++
	u.Email = cur.Email
	s.byID[u.UserID] = *u
	return nil
}

// Count is used by tests to assert how many users exist.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
