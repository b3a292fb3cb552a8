package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
	pkgtoken "github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/token"
)

type tokenRepo interface {
	// Replace atomically stores t as the only unused token of its user and purpose.
	Replace(ctx context.Context, t *domain.VerificationToken) error
	Get(ctx context.Context, tokenID string) (*domain.VerificationToken, error)
	FindBySecret(ctx context.Context, purpose domain.Purpose, secret string) ([]domain.VerificationToken, error)
	MarkUsed(ctx context.Context, tokenID string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// TokenStore owns the lifecycle of single-use verification tokens.
type TokenStore struct {
	repo     tokenRepo
	policies domain.Policies
	now      func() time.Time
}

// NewTokenStore uses domain.DefaultPolicies when policies is nil and
// time.Now when now is nil.
func NewTokenStore(repo tokenRepo, policies domain.Policies, now func() time.Time) *TokenStore {
	if policies == nil {
		policies = domain.DefaultPolicies()
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{repo: repo, policies: policies, now: now}
}

// Issue replaces any unused token of userID for purpose with a fresh one.
func (s *TokenStore) Issue(ctx context.Context, userID string, purpose domain.Purpose, contact *string) (*domain.VerificationToken, error) {
	policy, ok := s.policies[purpose]
	if !ok {
		return nil, fmt.Errorf("no token policy for purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	if userID == "" {
		return nil, domain.ErrEmptyInput
	}
	secret, err := pkgtoken.Secret(policy)
	if err != nil {
		return nil, domain.Dependency("generate token secret", err)
	}
	now := s.now().UTC()
	t := &domain.VerificationToken{
		TokenID:      id.New(),
		UserID:       userID,
		Secret:       secret,
		Purpose:      purpose,
		ContactValue: contact,
		ExpiresAt:    now.Add(policy.TTL),
		CreatedAt:    now,
	}
	if err := s.repo.Replace(ctx, t); err != nil {
		return nil, domain.Dependency("store token", err)
	}
	return t, nil
}

// Peek checks secret without consuming it. The token is returned alongside
// ErrTokenExpired / ErrTokenAlreadyUsed so callers can attribute the failure.
func (s *TokenStore) Peek(ctx context.Context, secret string, purpose domain.Purpose, userID string) (*domain.VerificationToken, error) {
	t, err := s.find(ctx, secret, purpose, userID)
	if err != nil {
		return nil, err
	}
	return t, t.CheckRedeemable(s.now())
}

// Redeem marks the token used. Concurrent calls for the same token have
// exactly one winner; the others get ErrTokenAlreadyUsed.
func (s *TokenStore) Redeem(ctx context.Context, secret string, purpose domain.Purpose, userID string) (*domain.VerificationToken, error) {
	t, err := s.find(ctx, secret, purpose, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := t.CheckRedeemable(now); err != nil {
		return t, err
	}
	err = s.repo.MarkUsed(ctx, t.TokenID, now)
	if errors.Is(err, domain.ErrConflict) {
		if cur, gerr := s.repo.Get(ctx, t.TokenID); gerr == nil {
			if rerr := cur.CheckRedeemable(now); rerr != nil {
				return cur, rerr
			}
		}
		return t, domain.ErrTokenAlreadyUsed
	}
	if err != nil {
		return t, domain.Dependency("redeem token", err)
	}
	t.UsedAt = &now
	return t, nil
}

// CleanupExpired deletes tokens past their expiry. Correctness never depends
// on it; expiry is always decided by timestamp comparison.
func (s *TokenStore) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return n, domain.Dependency("delete expired tokens", err)
	}
	return n, nil
}

// find resolves secret to a token. userID, when set, restricts the match to
// that owner; short numeric codes are only unique per user. Among several
// matches an active token wins so a stale duplicate cannot shadow it.
func (s *TokenStore) find(ctx context.Context, secret string, purpose domain.Purpose, userID string) (*domain.VerificationToken, error) {
	if secret == "" {
		return nil, domain.ErrInvalidToken
	}
	found, err := s.repo.FindBySecret(ctx, purpose, secret)
	if err != nil {
		return nil, domain.Dependency("look up token", err)
	}
	now := s.now()
	var match *domain.VerificationToken
	for i := range found {
		t := &found[i]
		if userID != "" && t.UserID != userID {
			continue
		}
		if t.IsActive(now) {
			return t, nil
		}
		if match == nil {
			match = t
		}
	}
	if match == nil {
		return nil, domain.ErrInvalidToken
	}
	return match, nil
}
