// Package metrics exposes Prometheus counters for the identity flows.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Auth outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	verification *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	auth         *prometheus.CounterVec
	cleanup      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_verification_events_total",
			Help: "Verification events by purpose and audit action",
		}, []string{"purpose", "action"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_send_rate_limited_total",
			Help: "Send attempts denied by the rate limiter",
		}, []string{"purpose"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_auth_attempts_total",
			Help: "Authentication operations by outcome",
		}, []string{"operation", "outcome"}),
		cleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_cleanup_deleted_total",
			Help: "Rows removed by the periodic cleanup",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.verification, m.rateLimited, m.auth, m.cleanup)
	return m
}

func (m *Metrics) VerificationEvent(purpose domain.Purpose, action domain.AuditAction) {
	if m == nil {
		return
	}
	m.verification.WithLabelValues(string(purpose), string(action)).Inc()
}

func (m *Metrics) RateLimited(purpose domain.Purpose) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(string(purpose)).Inc()
}

// AuthAttempt counts one operation ("login", "register", ...) by outcome.
func (m *Metrics) AuthAttempt(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.auth.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) CleanedUp(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanup.WithLabelValues(kind).Add(float64(n))
}
