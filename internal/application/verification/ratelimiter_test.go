package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndRecord_SixthDenied(t *testing.T) {
	clock := newClock()
	l := NewRateLimiter(memory.NewRateLimitStore(), DefaultRateLimitPolicy(), clock.Now)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.CheckAndRecord(ctx, "a@x.com", domain.PurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, i, d.Attempts)
		clock.Advance(time.Minute)
	}

	d, err := l.CheckAndRecord(ctx, "a@x.com", domain.PurposeEmailVerification)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, d.Allowed)

	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 55*time.Minute, rl.ResetIn)
	assert.Equal(t, 3300, rl.ResetInSeconds())
}

func TestCheckAndRecord_WindowRollsOver(t *testing.T) {
	clock := newClock()
	l := NewRateLimiter(memory.NewRateLimitStore(), RateLimitPolicy{MaxAttempts: 1, Window: time.Hour}, clock.Now)
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "a@x.com", domain.PurposePasswordReset)
	require.NoError(t, err)
	_, err = l.CheckAndRecord(ctx, "a@x.com", domain.PurposePasswordReset)
	require.ErrorIs(t, err, domain.ErrRateLimited)

	clock.Advance(time.Hour)
	d, err := l.CheckAndRecord(ctx, "a@x.com", domain.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Attempts)
}

func TestCheckAndRecord_KeyedByPurpose(t *testing.T) {
	l := NewRateLimiter(memory.NewRateLimitStore(), RateLimitPolicy{MaxAttempts: 1, Window: time.Hour}, nil)
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "a@x.com", domain.PurposeEmailVerification)
	require.NoError(t, err)
	_, err = l.CheckAndRecord(ctx, "a@x.com", domain.PurposePasswordReset)
	assert.NoError(t, err)
	_, err = l.CheckAndRecord(ctx, "b@x.com", domain.PurposeEmailVerification)
	assert.NoError(t, err)
}

func TestCheckAndRecord_EmptySubject(t *testing.T) {
	l := NewRateLimiter(memory.NewRateLimitStore(), DefaultRateLimitPolicy(), nil)
	_, err := l.CheckAndRecord(context.Background(), "", domain.PurposeEmailVerification)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestCheck_DoesNotRecord(t *testing.T) {
	clock := newClock()
	l := NewRateLimiter(memory.NewRateLimitStore(), RateLimitPolicy{MaxAttempts: 2, Window: time.Hour}, clock.Now)
	ctx := context.Background()

	d, err := l.Check(ctx, "k", domain.PurposePhoneVerification)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	for range 2 {
		_, err = l.CheckAndRecord(ctx, "k", domain.PurposePhoneVerification)
		require.NoError(t, err)
	}
	for range 3 {
		d, err = l.Check(ctx, "k", domain.PurposePhoneVerification)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 2, d.Attempts)
	}

	clock.Advance(time.Hour)
	d, err = l.Check(ctx, "k", domain.PurposePhoneVerification)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRelease_ReturnsAttempt(t *testing.T) {
	l := NewRateLimiter(memory.NewRateLimitStore(), RateLimitPolicy{MaxAttempts: 1, Window: time.Hour}, nil)
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "k", domain.PurposeEmailVerification)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, "k", domain.PurposeEmailVerification))
	_, err = l.CheckAndRecord(ctx, "k", domain.PurposeEmailVerification)
	assert.NoError(t, err)
}

func TestRateLimiterCleanupExpired(t *testing.T) {
	clock := newClock()
	repo := memory.NewRateLimitStore()
	l := NewRateLimiter(repo, DefaultRateLimitPolicy(), clock.Now)
	ctx := context.Background()

	_, err := l.CheckAndRecord(ctx, "k", domain.PurposeEmailVerification)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	n, err := l.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.Get(ctx, "k", domain.PurposeEmailVerification)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
