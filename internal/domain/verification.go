package domain

import "time"

// Purpose is the reason a verification token exists. It is threaded through
// tokens, rate-limit counters and audit entries.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePhoneVerification Purpose = "phone_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePhoneVerification, PurposePasswordReset:
		return true
	}
	return false
}

// SecretFormat selects the alphabet used for a token secret.
type SecretFormat int

const (
	SecretAlphanumeric SecretFormat = iota
	SecretNumeric
)

// PurposePolicy is the per-purpose token lifetime and secret shape.
type PurposePolicy struct {
	TTL          time.Duration
	Format       SecretFormat
	SecretLength int
}

// Policies resolves a Purpose to its PurposePolicy.
type Policies map[Purpose]PurposePolicy

// DefaultPolicies returns the stock policy table.
func DefaultPolicies() Policies {
	return Policies{
		PurposeEmailVerification: {TTL: 24 * time.Hour, Format: SecretAlphanumeric, SecretLength: 32},
		PurposePhoneVerification: {TTL: 10 * time.Minute, Format: SecretNumeric, SecretLength: 6},
		PurposePasswordReset:     {TTL: time.Hour, Format: SecretAlphanumeric, SecretLength: 32},
	}
}

// VerificationToken is a single-use secret bound to a user and a purpose.
// PK: token_id. GSIs: lookup_key (purpose#secret), owner_key (user_id#purpose).
// ExpiresAt doubles as the DynamoDB TTL attribute.
type VerificationToken struct {
	TokenID      string     `json:"id" dynamodbav:"token_id"`
	UserID       string     `json:"user_id" dynamodbav:"user_id"`
	Secret       string     `json:"-" dynamodbav:"secret"`
	Purpose      Purpose    `json:"purpose" dynamodbav:"purpose"`
	ContactValue *string    `json:"contact_value,omitempty" dynamodbav:"contact_value"`
	ExpiresAt    time.Time  `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	UsedAt       *time.Time `json:"used_at,omitempty" dynamodbav:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
}

func (t *VerificationToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

func (t *VerificationToken) IsUsed() bool { return t.UsedAt != nil }

// IsActive reports whether the token is neither used nor expired.
func (t *VerificationToken) IsActive(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now)
}

// CheckRedeemable returns the error a redemption at now would fail with.
// Expiry is checked first so an expired token reports ErrTokenExpired even
// when it was also used.
func (t *VerificationToken) CheckRedeemable(now time.Time) error {
	if t.IsExpired(now) {
		return ErrTokenExpired
	}
	if t.IsUsed() {
		return ErrTokenAlreadyUsed
	}
	return nil
}

// RequestMeta is client information attached to audit entries.
type RequestMeta struct {
	IPAddress *string
	UserAgent *string
}
