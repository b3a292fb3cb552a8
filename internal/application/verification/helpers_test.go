package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- mocks ---

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}
func (m *mockNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}
func (m *mockNotifier) SendVerificationSMS(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

type mockArchiver struct{ mock.Mock }

func (m *mockArchiver) ArchiveAuditLogs(ctx context.Context, entries []domain.AuditLogEntry, at time.Time) (string, error) {
	args := m.Called(ctx, entries, at)
	return args.String(0), args.Error(1)
}

// --- fixture ---

type fixture struct {
	svc      Service
	users    *memory.UserStore
	tokens   *memory.TokenStore
	limits   *memory.RateLimitStore
	audit    *memory.AuditLogStore
	notifier *mockNotifier
	clock    *fakeClock
	store    *TokenStore
	limiter  *RateLimiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    memory.NewUserStore(),
		tokens:   memory.NewTokenStore(),
		limits:   memory.NewRateLimitStore(),
		audit:    memory.NewAuditLogStore(),
		notifier: &mockNotifier{},
		clock:    newClock(),
	}
	f.store = NewTokenStore(f.tokens, nil, f.clock.Now)
	f.limiter = NewRateLimiter(f.limits, DefaultRateLimitPolicy(), f.clock.Now)
	f.svc = NewService(ServiceDeps{
		Users:    f.users,
		Tokens:   f.store,
		Limiter:  f.limiter,
		Audit:    NewAuditLog(f.audit, nil, 0, f.clock.Now),
		Notifier: f.notifier,
		Now:      f.clock.Now,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, id, email string, phone *string) *domain.User {
	t.Helper()
	u := &domain.User{
		UserID:    id,
		Email:     email,
		Phone:     phone,
		Role:      domain.RoleCustomer,
		Status:    domain.StatusActive,
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// capture wires method on the notifier to succeed and stores each secret it sends.
func (f *fixture) capture(method, to string) *[]string {
	var sent []string
	f.notifier.On(method, mock.Anything, to, mock.Anything).
		Run(func(a mock.Arguments) { sent = append(sent, a.String(2)) }).
		Return(nil)
	return &sent
}

func (f *fixture) actions(purpose domain.Purpose) []domain.AuditAction {
	var out []domain.AuditAction
	for _, e := range f.audit.Entries() {
		if e.Purpose == purpose {
			out = append(out, e.Action)
		}
	}
	return out
}

func ptr(s string) *string { return &s }

var noMeta = domain.RequestMeta{}
