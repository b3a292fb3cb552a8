package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/domain"
)

type AuditLogStore struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	// failWith, when set, is returned by Append. Tests use it to simulate an outage.
	failWith error
}

func NewAuditLogStore() *AuditLogStore {
	return &AuditLogStore{}
}

func (s *AuditLogStore) Append(_ context.Context, e *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, cur := range s.entries {
		if cur.LogID == e.LogID {
			return fmt.Errorf("append audit entry %s: %w", e.LogID, domain.ErrConflict)
		}
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *AuditLogStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditLogStore) Delete(_ context.Context, logIDs []string) (int, error) {
	drop := make(map[string]struct{}, len(logIDs))
	for _, id := range logIDs {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	n := 0
	for _, e := range s.entries {
		if _, ok := drop[e.LogID]; ok {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return n, nil
}

// Entries returns a copy of everything appended so far.
func (s *AuditLogStore) Entries() []domain.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLogEntry(nil), s.entries...)
}

// FailAppends makes every later Append return err; nil restores normal behavior.
func (s *AuditLogStore) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}
