package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecord_WritesEntry(t *testing.T) {
	clock := newClock()
	repo := memory.NewAuditLogStore()
	a := NewAuditLog(repo, nil, 0, clock.Now)

	a.Record(context.Background(), AuditEvent{
		UserID:  ptr("u1"),
		Email:   ptr("a@x.com"),
		Purpose: domain.PurposeEmailVerification,
		Action:  domain.AuditSent,
		Meta:    domain.RequestMeta{IPAddress: ptr("10.0.0.1"), UserAgent: ptr("curl")},
	})

	entries := repo.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.LogID)
	assert.Equal(t, "u1", *e.UserID)
	assert.Equal(t, domain.AuditSent, e.Action)
	assert.Equal(t, "10.0.0.1", *e.IPAddress)
	assert.Equal(t, "curl", *e.UserAgent)
	assert.Equal(t, clock.Now(), e.CreatedAt)
}

func TestRecord_SurvivesCanceledContext(t *testing.T) {
	repo := memory.NewAuditLogStore()
	a := NewAuditLog(repo, nil, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.Record(ctx, AuditEvent{Purpose: domain.PurposePasswordReset, Action: domain.AuditFailed})
	assert.Len(t, repo.Entries(), 1)
}

func TestRecord_StoreFailureSwallowed(t *testing.T) {
	repo := memory.NewAuditLogStore()
	repo.FailAppends(errors.New("table unavailable"))
	a := NewAuditLog(repo, nil, 0, nil)

	assert.NotPanics(t, func() {
		a.Record(context.Background(), AuditEvent{Purpose: domain.PurposePasswordReset, Action: domain.AuditSent})
	})
	assert.Empty(t, repo.Entries())
}

func seedAudit(t *testing.T, a *AuditLog, n int) {
	t.Helper()
	for range n {
		a.Record(context.Background(), AuditEvent{Purpose: domain.PurposeEmailVerification, Action: domain.AuditSent})
	}
}

func TestPrune_ArchivesThenDeletes(t *testing.T) {
	clock := newClock()
	repo := memory.NewAuditLogStore()
	archiver := &mockArchiver{}
	a := NewAuditLog(repo, archiver, 24*time.Hour, clock.Now)

	seedAudit(t, a, 3)
	clock.Advance(48 * time.Hour)
	seedAudit(t, a, 2)

	archiver.On("ArchiveAuditLogs", mock.Anything, mock.MatchedBy(func(es []domain.AuditLogEntry) bool {
		return len(es) == 3
	}), clock.Now()).Return("s3://bucket/audit/x.jsonl", nil).Once()

	n, err := a.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, repo.Entries(), 2)
	archiver.AssertExpectations(t)
}

func TestPrune_ArchiveFailureKeepsEntries(t *testing.T) {
	clock := newClock()
	repo := memory.NewAuditLogStore()
	archiver := &mockArchiver{}
	a := NewAuditLog(repo, archiver, time.Hour, clock.Now)

	seedAudit(t, a, 2)
	clock.Advance(2 * time.Hour)
	archiver.On("ArchiveAuditLogs", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))

	n, err := a.Prune(context.Background())
	assert.ErrorIs(t, err, domain.ErrDependency)
	assert.Zero(t, n)
	assert.Len(t, repo.Entries(), 2)
}

func TestPrune_DisabledWithoutRetention(t *testing.T) {
	clock := newClock()
	repo := memory.NewAuditLogStore()
	a := NewAuditLog(repo, nil, 0, clock.Now)

	seedAudit(t, a, 2)
	clock.Advance(365 * 24 * time.Hour)

	n, err := a.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.Entries(), 2)
}
