package server

import (
	"context"
	"log/slog"
	"sync"

	"seal-gateway/internal/intervention"
)

// Store persists pipeline audit records. The core only emits them; the
// server decides where they land.
type Store interface {
	AppendAudit(ctx context.Context, entry intervention.AuditRecord) error
	ListAudit(ctx context.Context, limit int) ([]intervention.AuditRecord, error)
}

// MemoryStore is the in-process fallback used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []intervention.AuditRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendAudit(_ context.Context, entry intervention.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt == "" {
		entry.CreatedAt = nowRFC3339()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) ListAudit(_ context.Context, limit int) ([]intervention.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	// newest first
	out := make([]intervention.AuditRecord, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// AuditRecorder adapts a Store onto the core's AuditSink contract. Write
// failures are logged, never surfaced into the request path.
type AuditRecorder struct {
	store Store
}

func NewAuditRecorder(store Store) *AuditRecorder {
	return &AuditRecorder{store: store}
}

func (r *AuditRecorder) Record(ctx context.Context, entry intervention.AuditRecord) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		slog.Warn("audit append failed", "id", entry.ID, "error", err)
	}
}

var _ intervention.AuditSink = (*AuditRecorder)(nil)
