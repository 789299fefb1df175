package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is the immutable record of one governed request, handed off to
// the audit sink. Consumers dedupe by RequestID, so duplicate delivery is
// harmless.
type AuditEvent struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	RequestID  uuid.UUID   `json:"request_id" db:"request_id"`
	TeamID     uuid.UUID   `json:"team_id" db:"team_id"`
	UserID     uuid.UUID   `json:"user_id" db:"user_id"`
	Provider   string      `json:"provider" db:"provider"`
	Model      string      `json:"model" db:"model"`
	Verdict    Verdict     `json:"verdict" db:"verdict"`
	Violations []Violation `json:"violations,omitempty" db:"violations"`
	Cost       float64     `json:"cost" db:"cost"`
	LatencyMs  int64       `json:"latency_ms" db:"latency_ms"`
	Error      string      `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AuditEvent model
func (AuditEvent) TableName() string {
	return "audit_events"
}

// MetricSample is one request's worth of usage metrics for the metrics sink
type MetricSample struct {
	RequestID    uuid.UUID `json:"request_id"`
	TeamID       uuid.UUID `json:"team_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Verdict      Verdict   `json:"verdict"`
	Cost         float64   `json:"cost"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewAuditEvent builds an audit event from a governance result
func NewAuditEvent(identity Identity, result *GovernanceResult) *AuditEvent {
	event := &AuditEvent{
		ID:         uuid.New(),
		RequestID:  result.RequestID,
		TeamID:     identity.TeamID,
		UserID:     identity.UserID,
		Provider:   result.Provider,
		Model:      result.Model,
		Verdict:    result.Verdict,
		Violations: result.Violations,
		Cost:       result.Cost,
		LatencyMs:  result.Latency.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if result.Error != nil {
		event.Error = result.Error.Code
	}
	return event
}

// NewMetricSample builds a metric sample from a governance result
func NewMetricSample(identity Identity, result *GovernanceResult) *MetricSample {
	sample := &MetricSample{
		RequestID: result.RequestID,
		TeamID:    identity.TeamID,
		Provider:  result.Provider,
		Model:     result.Model,
		Verdict:   result.Verdict,
		Cost:      result.Cost,
		LatencyMs: result.Latency.Milliseconds(),
		Timestamp: time.Now(),
	}
	if result.Response != nil {
		sample.InputTokens = result.Response.InputTokens
		sample.OutputTokens = result.Response.OutputTokens
	}
	return sample
}
