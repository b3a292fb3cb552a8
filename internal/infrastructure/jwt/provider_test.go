package jwtinfra

import (
	"strings"
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		TokenIssuer:        "identity-test",
	}
}

func newTestProvider(t *testing.T, now time.Time) *Provider {
	t.Helper()
	p, err := NewProvider(testConfig())
	require.NoError(t, err)
	p.now = func() time.Time { return now }
	return p
}

func testUser() *domain.User {
	return &domain.User{UserID: "u1", Email: "a@x.com", Role: domain.RoleCustomer}
}

func TestNewProvider_RequiresSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshTokenSecret = ""
	_, err := NewProvider(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProvider(t, now)

	tok, exp, err := p.Issue(testUser(), domain.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	pr, err := p.Validate(tok, domain.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", pr.UserID)
	assert.Equal(t, "a@x.com", pr.Email)
	assert.Equal(t, domain.RoleCustomer, pr.Role)
	assert.Equal(t, domain.TokenAccess, pr.Kind)
	assert.NotEmpty(t, pr.TokenID)
	assert.Equal(t, exp.Unix(), pr.ExpiresAt.Unix())
}

func TestIssuePair_DistinctKinds(t *testing.T) {
	p := newTestProvider(t, time.Now())

	pair, err := p.IssuePair(testUser())
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	_, err = p.Validate(pair.RefreshToken, domain.TokenRefresh)
	require.NoError(t, err)
}

func TestValidate_WrongKind(t *testing.T) {
	p := newTestProvider(t, time.Now())
	pair, err := p.IssuePair(testUser())
	require.NoError(t, err)

	_, err = p.Validate(pair.RefreshToken, domain.TokenAccess)
	assert.ErrorIs(t, err, domain.ErrWrongTokenKind)

	_, err = p.Validate(pair.AccessToken, domain.TokenRefresh)
	assert.ErrorIs(t, err, domain.ErrWrongTokenKind)
}

func TestValidate_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	p := newTestProvider(t, issuedAt)
	tok, _, err := p.Issue(testUser(), domain.TokenAccess)
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Validate(tok, domain.TokenAccess)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestValidate_ForeignSecret(t *testing.T) {
	other := testConfig()
	other.AccessTokenSecret = "someone-else"
	foreign, err := NewProvider(other)
	require.NoError(t, err)
	tok, _, err := foreign.Issue(testUser(), domain.TokenAccess)
	require.NoError(t, err)

	_, err = newTestProvider(t, time.Now()).Validate(tok, domain.TokenAccess)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidate_TamperedPayload(t *testing.T) {
	p := newTestProvider(t, time.Now())
	tok, _, err := p.Issue(testUser(), domain.TokenAccess)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	admin := &domain.User{UserID: "u1", Email: "a@x.com", Role: domain.RoleAdmin}
	forged, _, err := p.Issue(admin, domain.TokenAccess)
	require.NoError(t, err)
	parts[1] = strings.Split(forged, ".")[1]

	_, err = p.Validate(strings.Join(parts, "."), domain.TokenAccess)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	p := newTestProvider(t, time.Now())
	claims := Claims{
		UserID: "u1",
		Kind:   domain.TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Validate(tok, domain.TokenAccess)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestValidate_Garbage(t *testing.T) {
	p := newTestProvider(t, time.Now())
	for _, s := range []string{"", "abc", "a.b.c"} {
		_, err := p.Validate(s, domain.TokenAccess)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, s)
	}
}
