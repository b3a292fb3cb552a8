package domain

import "time"

// TokenKind distinguishes access from refresh session tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Principal is the identity carried by a validated session token.
// Session tokens are never persisted; signature and expiry decide validity.
type Principal struct {
	TokenID   string    `json:"jti"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Kind      TokenKind `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is a freshly issued access + refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	Tokens TokenPair `json:"tokens"`
	User   *User     `json:"user"`
}

// FederatedIdentity is the verified subset of a third-party identity token.
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}
