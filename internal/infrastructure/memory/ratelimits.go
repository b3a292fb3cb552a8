package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type RateLimitStore struct {
	mu       sync.Mutex
	counters map[string]domain.RateLimitCounter
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{counters: map[string]domain.RateLimitCounter{}}
}

func (s *RateLimitStore) Acquire(_ context.Context, subjectKey string, purpose domain.Purpose, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	key := domain.RateLimitKey(subjectKey, purpose)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.IsExpired(now) {
		c = domain.RateLimitCounter{
			ID:         key,
			SubjectKey: subjectKey,
			Purpose:    purpose,
			ResetAt:    now.Add(window),
		}
	}
	if c.Attempts >= max {
		return domain.RateLimitDecision{Allowed: false, Attempts: c.Attempts, ResetIn: c.ResetIn(now)}, nil
	}
	c.Attempts++
	c.LastAttemptAt = now
	s.counters[key] = c
	return domain.RateLimitDecision{Allowed: true, Attempts: c.Attempts, ResetIn: c.ResetIn(now)}, nil
}

func (s *RateLimitStore) Release(_ context.Context, subjectKey string, purpose domain.Purpose, now time.Time) error {
	key := domain.RateLimitKey(subjectKey, purpose)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok || c.IsExpired(now) || c.Attempts == 0 {
		return nil
	}
	c.Attempts--
	s.counters[key] = c
	return nil
}

func (s *RateLimitStore) Get(_ context.Context, subjectKey string, purpose domain.Purpose) (*domain.RateLimitCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[domain.RateLimitKey(subjectKey, purpose)]
	if !ok {
		return nil, fmt.Errorf("rate limit not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (s *RateLimitStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.counters {
		if c.IsExpired(now) {
			delete(s.counters, k)
			n++
		}
	}
	return n, nil
}
