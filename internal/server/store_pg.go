package server

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seal-gateway/internal/intervention"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) AppendAudit(ctx context.Context, entry intervention.AuditRecord) error {
	createdAt := entry.CreatedAt
	if createdAt == "" {
		createdAt = nowRFC3339()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plan_audit (id, class_id, area, outcome, decision, severity, attempts, latency_ms, detail, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.ClassID, entry.Area, entry.Outcome,
		nullStr(entry.Decision), nullStr(entry.Severity),
		entry.Attempts, entry.LatencyMS, nullStr(entry.Detail), createdAt)
	return err
}

func (s *PgStore) ListAudit(ctx context.Context, limit int) ([]intervention.AuditRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, class_id, area, outcome, decision, severity, attempts, latency_ms, detail, created_at
		 FROM plan_audit ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]intervention.AuditRecord, 0, limit)
	for rows.Next() {
		var entry intervention.AuditRecord
		var decision, severity, detail *string
		var createdAt time.Time
		if err := rows.Scan(&entry.ID, &entry.ClassID, &entry.Area, &entry.Outcome,
			&decision, &severity, &entry.Attempts, &entry.LatencyMS, &detail, &createdAt); err != nil {
			return nil, err
		}
		entry.Decision = deref(decision)
		entry.Severity = deref(severity)
		entry.Detail = deref(detail)
		entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

var _ Store = (*PgStore)(nil)
