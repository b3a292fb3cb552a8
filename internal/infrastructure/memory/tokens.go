package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.VerificationToken
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: map[string]domain.VerificationToken{}}
}

// Create stores t without touching other tokens of its owner.
func (s *TokenStore) Create(_ context.Context, t *domain.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.TokenID]; ok {
		return fmt.Errorf("create token %s: %w", t.TokenID, domain.ErrConflict)
	}
	s.tokens[t.TokenID] = *t
	return nil
}

func (s *TokenStore) Get(_ context.Context, tokenID string) (*domain.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (s *TokenStore) FindBySecret(_ context.Context, purpose domain.Purpose, secret string) ([]domain.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VerificationToken
	for _, t := range s.tokens {
		if t.Purpose == purpose && t.Secret == secret {
			out = append(out, t)
		}
	}
	return out, nil
}

// Replace drops the unused tokens of (t.UserID, t.Purpose) and stores t
// under one lock.
func (s *TokenStore) Replace(_ context.Context, t *domain.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.TokenID]; ok {
		return fmt.Errorf("replace token %s: %w", t.TokenID, domain.ErrConflict)
	}
	for id, old := range s.tokens {
		if old.UserID == t.UserID && old.Purpose == t.Purpose && !old.IsUsed() {
			delete(s.tokens, id)
		}
	}
	s.tokens[t.TokenID] = *t
	return nil
}

// MarkUsed mirrors the conditional update of the DynamoDB repository.
func (s *TokenStore) MarkUsed(_ context.Context, tokenID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok || t.IsUsed() || t.IsExpired(now) {
		return fmt.Errorf("mark token %s used: %w", tokenID, domain.ErrConflict)
	}
	t.UsedAt = &now
	s.tokens[tokenID] = t
	return nil
}

func (s *TokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tokens {
		if t.IsExpired(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// Len is used by tests.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
