package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
)

// AuditSink persists audit events to PostgreSQL. Inserts are idempotent on
// request_id, so at-least-once delivery from the dispatcher is safe.
type AuditSink struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditSink creates a new PostgreSQL audit sink
func NewAuditSink(db *DB, logger *zap.Logger) *AuditSink {
	return &AuditSink{
		db:     db,
		logger: logger,
	}
}

// WriteAudit inserts one audit event, ignoring duplicates by request_id
func (s *AuditSink) WriteAudit(ctx context.Context, event *models.AuditEvent) error {
	violations, err := json.Marshal(event.Violations)
	if err != nil {
		return fmt.Errorf("failed to marshal violations: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, request_id, team_id, user_id, provider, model, verdict, violations, cost, latency_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.RequestID,
		event.TeamID,
		event.UserID,
		event.Provider,
		event.Model,
		event.Verdict,
		violations,
		event.Cost,
		event.LatencyMs,
		event.Error,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}
