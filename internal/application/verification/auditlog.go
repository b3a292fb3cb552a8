package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/pkg/id"
)

const (
	// auditWriteTimeout bounds a single append. The write detaches from the
	// request context so a client disconnect does not drop the entry.
	auditWriteTimeout = 3 * time.Second
	pruneBatchSize    = 500
)

type auditRepo interface {
	Append(ctx context.Context, e *domain.AuditLogEntry) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditLogEntry, error)
	Delete(ctx context.Context, logIDs []string) (int, error)
}

// Archiver persists audit entries before retention deletes them.
type Archiver interface {
	ArchiveAuditLogs(ctx context.Context, entries []domain.AuditLogEntry, at time.Time) (string, error)
}

// AuditEvent is the input of AuditLog.Record.
type AuditEvent struct {
	UserID  *string
	Email   *string
	Phone   *string
	Purpose domain.Purpose
	Action  domain.AuditAction
	Reason  string
	Meta    domain.RequestMeta
}

// AuditLog appends verification events. Writes are attempted synchronously
// but never fail the calling flow.
type AuditLog struct {
	repo      auditRepo
	archiver  Archiver
	retention time.Duration
	now       func() time.Time
}

// NewAuditLog creates an AuditLog. A zero retention disables Prune; a nil
// archiver deletes expired entries without keeping a copy.
func NewAuditLog(repo auditRepo, archiver Archiver, retention time.Duration, now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{repo: repo, archiver: archiver, retention: retention, now: now}
}

// Record appends ev. Failures are logged, not returned.
func (a *AuditLog) Record(ctx context.Context, ev AuditEvent) {
	e := &domain.AuditLogEntry{
		LogID:     id.New(),
		UserID:    ev.UserID,
		Email:     ev.Email,
		Phone:     ev.Phone,
		Purpose:   ev.Purpose,
		Action:    ev.Action,
		Reason:    ev.Reason,
		IPAddress: ev.Meta.IPAddress,
		UserAgent: ev.Meta.UserAgent,
		CreatedAt: a.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := a.repo.Append(ctx, e); err != nil {
		slog.Error("audit log write failed",
			"purpose", e.Purpose, "action", e.Action, "reason", e.Reason, "user_id", deref(e.UserID), "err", err)
	}
}

// Prune archives and deletes entries older than the retention period.
func (a *AuditLog) Prune(ctx context.Context) (int, error) {
	if a.retention <= 0 {
		return 0, nil
	}
	now := a.now().UTC()
	cutoff := now.Add(-a.retention)
	total := 0
	for {
		batch, err := a.repo.ListBefore(ctx, cutoff, pruneBatchSize)
		if err != nil {
			return total, domain.Dependency("list expired audit entries", err)
		}
		if len(batch) == 0 {
			return total, nil
		}
		if a.archiver != nil {
			url, err := a.archiver.ArchiveAuditLogs(ctx, batch, now)
			if err != nil {
				return total, domain.Dependency("archive audit entries", err)
			}
			slog.Info("archived audit entries", "count", len(batch), "location", url)
		}
		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = batch[i].LogID
		}
		n, err := a.repo.Delete(ctx, ids)
		total += n
		if err != nil {
			return total, domain.Dependency("delete audit entries", err)
		}
		if n < len(ids) {
			return total, fmt.Errorf("deleted %d of %d audit entries: %w", n, len(ids), domain.ErrDependency)
		}
		if len(batch) < pruneBatchSize {
			return total, nil
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
