package verification

import (
	"context"
	"errors"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type rateLimitRepo interface {
	Acquire(ctx context.Context, subjectKey string, purpose domain.Purpose, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error)
	Release(ctx context.Context, subjectKey string, purpose domain.Purpose, now time.Time) error
	Get(ctx context.Context, subjectKey string, purpose domain.Purpose) (*domain.RateLimitCounter, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RateLimitPolicy is the send quota per (subject, purpose).
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{MaxAttempts: 5, Window: time.Hour}
}

// RateLimiter guards the send side of every verification flow.
type RateLimiter struct {
	repo   rateLimitRepo
	policy RateLimitPolicy
	now    func() time.Time
}

func NewRateLimiter(repo rateLimitRepo, policy RateLimitPolicy, now func() time.Time) *RateLimiter {
	def := DefaultRateLimitPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{repo: repo, policy: policy, now: now}
}

// CheckAndRecord takes one attempt from the window of (subjectKey, purpose).
// A denied attempt returns a *domain.RateLimitedError carrying the time left.
func (l *RateLimiter) CheckAndRecord(ctx context.Context, subjectKey string, purpose domain.Purpose) (domain.RateLimitDecision, error) {
	if subjectKey == "" {
		return domain.RateLimitDecision{}, domain.ErrEmptyInput
	}
	d, err := l.repo.Acquire(ctx, subjectKey, purpose, l.policy.MaxAttempts, l.policy.Window, l.now())
	if err != nil {
		return domain.RateLimitDecision{}, domain.Dependency("record send attempt", err)
	}
	if !d.Allowed {
		return d, &domain.RateLimitedError{ResetIn: d.ResetIn}
	}
	return d, nil
}

// Check reports what CheckAndRecord would decide, without recording.
func (l *RateLimiter) Check(ctx context.Context, subjectKey string, purpose domain.Purpose) (domain.RateLimitDecision, error) {
	now := l.now()
	c, err := l.repo.Get(ctx, subjectKey, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RateLimitDecision{Allowed: true}, nil
	}
	if err != nil {
		return domain.RateLimitDecision{}, domain.Dependency("read send counter", err)
	}
	if c.IsExpired(now) {
		return domain.RateLimitDecision{Allowed: true}, nil
	}
	return domain.RateLimitDecision{
		Allowed:  c.Attempts < l.policy.MaxAttempts,
		Attempts: c.Attempts,
		ResetIn:  c.ResetIn(now),
	}, nil
}

// Release returns an attempt whose send did not go out, so only delivered
// messages count against the window.
func (l *RateLimiter) Release(ctx context.Context, subjectKey string, purpose domain.Purpose) error {
	if err := l.repo.Release(ctx, subjectKey, purpose, l.now()); err != nil {
		return domain.Dependency("release send attempt", err)
	}
	return nil
}

func (l *RateLimiter) CleanupExpired(ctx context.Context) (int, error) {
	n, err := l.repo.DeleteExpired(ctx, l.now())
	if err != nil {
		return n, domain.Dependency("delete expired rate limits", err)
	}
	return n, nil
}
