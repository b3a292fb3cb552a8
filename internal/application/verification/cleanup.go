package verification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type cleanupRunner interface {
	CleanupExpired(ctx context.Context) (CleanupReport, error)
}

type cleanupMetrics interface {
	CleanedUp(kind string, n int)
}

// Cleaner periodically removes expired tokens, closed rate windows and
// audit entries past retention. It only touches rows that are already dead,
// so it is safe next to live traffic.
type Cleaner struct {
	svc      cleanupRunner
	interval time.Duration
	metrics  cleanupMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// defaultCleanupInterval applies when interval is not positive.
const defaultCleanupInterval = 15 * time.Minute

// NewCleaner creates a Cleaner. metrics may be nil.
func NewCleaner(svc cleanupRunner, interval time.Duration, metrics cleanupMetrics) *Cleaner {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &Cleaner{svc: svc, interval: interval, metrics: metrics}
}

// RunOnce performs one cleanup pass and logs what it removed.
func (c *Cleaner) RunOnce(ctx context.Context) (CleanupReport, error) {
	r, err := c.svc.CleanupExpired(ctx)
	if c.metrics != nil {
		c.metrics.CleanedUp("tokens", r.Tokens)
		c.metrics.CleanedUp("rate_limits", r.RateLimits)
		c.metrics.CleanedUp("audit_logs", r.AuditLogs)
	}
	if err != nil {
		slog.Error("cleanup cycle failed", "err", err)
		return r, err
	}
	if r.Tokens+r.RateLimits+r.AuditLogs > 0 {
		slog.Info("cleanup cycle", "tokens", r.Tokens, "rate_limits", r.RateLimits, "audit_logs", r.AuditLogs)
	}
	return r, nil
}

// Start runs a pass immediately and then every interval until Stop.
func (c *Cleaner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (c *Cleaner) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Cleaner) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	_, _ = c.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.RunOnce(ctx)
		}
	}
}
