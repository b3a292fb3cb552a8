package token

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits       = "0123456789"
)

// Alphanumeric returns n characters drawn uniformly from [a-zA-Z0-9] using crypto/rand.
func Alphanumeric(n int) (string, error) {
	return fromAlphabet(alphanumeric, n)
}

// Numeric returns an n-digit code; leading zeros are kept.
func Numeric(n int) (string, error) {
	return fromAlphabet(digits, n)
}

// Secret generates a secret in the shape required by policy.
func Secret(policy domain.PurposePolicy) (string, error) {
	switch policy.Format {
	case domain.SecretNumeric:
		return Numeric(policy.SecretLength)
	case domain.SecretAlphanumeric:
		return Alphanumeric(policy.SecretLength)
	}
	return "", fmt.Errorf("unknown secret format %d", policy.Format)
}

func fromAlphabet(alphabet string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate secret: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
