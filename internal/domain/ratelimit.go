package domain

import "time"

// RateLimitCounter counts send attempts for one (subject, purpose) window.
// PK: id (subject#purpose). reset_at doubles as the DynamoDB TTL attribute.
type RateLimitCounter struct {
	ID            string    `json:"id" dynamodbav:"id"`
	SubjectKey    string    `json:"subject_key" dynamodbav:"subject_key"`
	Purpose       Purpose   `json:"purpose" dynamodbav:"purpose"`
	Attempts      int       `json:"attempts" dynamodbav:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at" dynamodbav:"last_attempt_at"`
	ResetAt       time.Time `json:"reset_at" dynamodbav:"reset_at,unixtime"`
}

// IsExpired reports whether the window is over; an expired counter is
// treated as absent. The window is half-open: [start, ResetAt).
func (c *RateLimitCounter) IsExpired(now time.Time) bool { return !now.Before(c.ResetAt) }

// ResetIn is the time left in the window, never negative.
func (c *RateLimitCounter) ResetIn(now time.Time) time.Duration {
	if d := c.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RateLimitKey is the storage key of a counter.
func RateLimitKey(subjectKey string, purpose Purpose) string {
	return subjectKey + "#" + string(purpose)
}

// RateLimitDecision is the result of a rate-limit check.
type RateLimitDecision struct {
	Allowed  bool
	Attempts int
	ResetIn  time.Duration
}
