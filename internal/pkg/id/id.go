package id

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// GuestEmail returns a unique placeholder address for a guest account that
// was created without an email. The .invalid TLD can never receive mail.
func GuestEmail() string {
	return "guest_" + strings.ToLower(New()) + "@guest.invalid"
}

// IsGuestEmail reports whether email was produced by GuestEmail.
func IsGuestEmail(email string) bool {
	return strings.HasPrefix(email, "guest_") && strings.HasSuffix(email, "@guest.invalid")
}
