package validate

import (
	"fmt"
	"strings"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags.
// Returned errors wrap domain.ErrBadRequest.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email normalizes email and checks its shape.
func Email(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", domain.ErrEmptyInput
	}
	if err := v.Var(email, "email"); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

// Phone checks an E.164 phone number.
func Phone(phone string) error {
	if err := v.Var(phone, "required,e164"); err != nil {
		return fmt.Errorf("invalid phone %q: %w", phone, domain.ErrBadRequest)
	}
	return nil
}
