package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	RoleGuest    = "guest"
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
	StatusBlocked  UserStatus = "blocked"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBlocked:
		return true
	}
	return false
}

// User is owned by the user-management collaborator; this module only reads
// it and applies the verification, conversion and status mutations below.
// Version is bumped by repositories on every successful update.
type User struct {
	UserID        string     `json:"id" dynamodbav:"user_id"`
	Email         string     `json:"email" dynamodbav:"email"`
	Phone         *string    `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash  string     `json:"-" dynamodbav:"password_hash"`
	Role          string     `json:"role" dynamodbav:"role"`
	EmailVerified bool       `json:"email_verified" dynamodbav:"email_verified"`
	PhoneVerified bool       `json:"phone_verified" dynamodbav:"phone_verified"`
	IsGuest       bool       `json:"is_guest" dynamodbav:"is_guest"`
	Status        UserStatus `json:"status" dynamodbav:"status"`
	AuthProvider  string     `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google" | "guest"
	GoogleSub     string     `json:"-" dynamodbav:"google_sub"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" dynamodbav:"last_login_at"`
	LastLogoutAt  *time.Time `json:"last_logout_at,omitempty" dynamodbav:"last_logout_at"`
	Version       int64      `json:"-" dynamodbav:"version"`
	CreatedAt     time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// HasPassword reports whether the user can authenticate with a password.
func (u *User) HasPassword() bool {
	return !u.IsGuest && u.PasswordHash != ""
}

// CheckStatus maps a non-active status to its authorization error.
func (u *User) CheckStatus() error {
	switch u.Status {
	case StatusBlocked:
		return ErrAccountBlocked
	case StatusInactive:
		return ErrAccountInactive
	}
	return nil
}

func (u *User) VerifyEmail(now time.Time) error {
	if u.EmailVerified {
		return ErrAlreadyVerified
	}
	u.EmailVerified = true
	u.UpdatedAt = now
	return nil
}

func (u *User) VerifyPhone(now time.Time) error {
	if u.PhoneVerified {
		return ErrAlreadyVerified
	}
	u.PhoneVerified = true
	u.UpdatedAt = now
	return nil
}

// ConvertFromGuest promotes a guest record in place. The email has to be
// re-verified because the guest never proved ownership of it.
func (u *User) ConvertFromGuest(passwordHash string, phone *string, now time.Time) {
	u.IsGuest = false
	u.PasswordHash = passwordHash
	u.EmailVerified = false
	u.Role = RoleCustomer
	u.AuthProvider = "local"
	if phone != nil {
		u.Phone = phone
		u.PhoneVerified = false
	}
	u.UpdatedAt = now
}

func (u *User) SetStatus(s UserStatus, now time.Time) {
	u.Status = s
	u.UpdatedAt = now
}

// RegisterRequest is the input of AuthenticationService.Register.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,max=72"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
}
