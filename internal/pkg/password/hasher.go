// Package password hashes credentials with bcrypt and scores password strength.
package password

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// MinScore is the lowest strength score accepted for a new password.
const MinScore = 4

// MaxBytes is the longest password bcrypt accepts, counted in bytes.
const MaxBytes = 72

// Hasher hashes and verifies passwords at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher for cost. Out-of-range costs fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", domain.ErrEmptyInput
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("hash password: %w: %w", err, domain.ErrBadRequest)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify never fails loudly: a malformed hash simply does not match.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// NeedsRehash reports whether hash was produced below the configured cost.
// Unparsable hashes always need a rehash.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// Strength is the result of ScoreStrength.
type Strength struct {
	Valid    bool     `json:"valid"`
	Score    int      `json:"score"`
	Feedback []string `json:"feedback,omitempty"`
}

// ScoreStrength awards one point each for length >= 8, a lowercase letter,
// an uppercase letter, a digit, a special character and length >= 12.
func ScoreStrength(plaintext string) Strength {
	var lower, upper, digit, special bool
	n := 0
	for _, r := range plaintext {
		n++
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}

	var s Strength
	check := func(ok bool, missing string) {
		if ok {
			s.Score++
			return
		}
		s.Feedback = append(s.Feedback, missing)
	}
	check(n >= 8, "use at least 8 characters")
	check(lower, "add a lowercase letter")
	check(upper, "add an uppercase letter")
	check(digit, "add a digit")
	check(special, "add a special character")
	check(n >= 12, "use 12 or more characters for a stronger password")
	s.Valid = s.Score >= MinScore
	return s
}

// CheckStrength returns a *domain.WeakPasswordError when plaintext scores
// below MinScore or is longer than MaxBytes.
func CheckStrength(plaintext string) error {
	s := ScoreStrength(plaintext)
	if len(plaintext) > MaxBytes {
		return &domain.WeakPasswordError{
			Score:    s.Score,
			Feedback: []string{fmt.Sprintf("use at most %d bytes", MaxBytes)},
		}
	}
	if s.Valid {
		return nil
	}
	return &domain.WeakPasswordError{Score: s.Score, Feedback: s.Feedback}
}

func (h *Hasher) ScoreStrength(plaintext string) Strength { return ScoreStrength(plaintext) }
