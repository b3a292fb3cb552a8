package dynamo

// DynamoDB attribute names used in key, update and condition expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID        = "user_id"
	fieldOwnerID       = "owner_id"
	fieldPasswordHash  = "password_hash"
	fieldPhone         = "phone"
	fieldRole          = "role"
	fieldEmailVerified = "email_verified"
	fieldPhoneVerified = "phone_verified"
	fieldIsGuest       = "is_guest"
	fieldStatus        = "status"
	fieldAuthProvider  = "auth_provider"
	fieldGoogleSub     = "google_sub"
	fieldLastLoginAt   = "last_login_at"
	fieldLastLogoutAt  = "last_logout_at"
	fieldVersion       = "version"
	fieldUpdatedAt     = "updated_at"

	fieldTokenID   = "token_id"
	fieldLookupKey = "lookup_key"
	fieldExpiresAt = "expires_at"
	fieldUsedAt    = "used_at"
	fieldActiveID  = "active_token_id"

	fieldID            = "id"
	fieldAttempts      = "attempts"
	fieldLastAttemptAt = "last_attempt_at"
	fieldResetAt       = "reset_at"

	fieldLogID     = "log_id"
	fieldCreatedAt = "created_at"
)

// Secondary indexes.
const (
	indexTokenLookup = "lookup_key-index"
)
