package models

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the overall outcome of evaluating a policy set against a request
type Verdict string

const (
	VerdictAllow     Verdict = "allow"
	VerdictWarnAllow Verdict = "warn_allow"
	VerdictDeny      Verdict = "deny"
)

// ViolationSeverity is derived from the violated policy's enforcement level
type ViolationSeverity string

const (
	SeverityBlocking ViolationSeverity = "blocking"
	SeverityWarning  ViolationSeverity = "warning"
	SeverityMonitor  ViolationSeverity = "monitor"
)

// SeverityFor maps an enforcement level to the severity of its violations
func SeverityFor(level EnforcementLevel) ViolationSeverity {
	switch level {
	case EnforcementStrict:
		return SeverityBlocking
	case EnforcementWarning:
		return SeverityWarning
	default:
		return SeverityMonitor
	}
}

// EvaluationContext carries the facts one request is evaluated against.
// It is constructed fresh per request and never mutated afterwards; use
// WithTokenCounts to refine token counts post-call.
type EvaluationContext struct {
	RequestID          uuid.UUID `json:"request_id"`
	UserID             uuid.UUID `json:"user_id"`
	TeamID             uuid.UUID `json:"team_id"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	EstimatedTokens    int       `json:"estimated_tokens"`
	EstimatedCost      float64   `json:"estimated_cost"`
	RequestCount       int       `json:"request_count"` // Precomputed rolling-window counter
	Prompt             string    `json:"-"`             // Raw prompt text for content filters
	Region             string    `json:"region,omitempty"`
	DataClassification string    `json:"data_classification,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// WithTokenCounts returns a copy of the context with refined token counts
func (c EvaluationContext) WithTokenCounts(tokens int) EvaluationContext {
	c.EstimatedTokens = tokens
	return c
}

// Violation records a single policy violation. Append-only; one evaluation
// may produce zero or more of these.
type Violation struct {
	PolicyID   uuid.UUID         `json:"policy_id"`
	PolicyType PolicyType        `json:"policy_type"`
	Severity   ViolationSeverity `json:"severity"`
	Reason     string            `json:"reason"`
	Context    EvaluationContext `json:"context"`
}

// Decision aggregates the evaluation of a policy set against a context
type Decision struct {
	Verdict           Verdict     `json:"verdict"`
	Violations        []Violation `json:"violations"`
	EvaluatedPolicies []uuid.UUID `json:"evaluated_policies"`
}

// Denied reports whether the decision blocks the request
func (d Decision) Denied() bool {
	return d.Verdict == VerdictDeny
}

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Parameters holds provider-agnostic model parameters
type Parameters struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// LLMRequest is the canonical, provider-agnostic request shape
type LLMRequest struct {
	Provider           string     `json:"provider"`
	Model              string     `json:"model"`
	Messages           []Message  `json:"messages"`
	Params             Parameters `json:"params"`
	Region             string     `json:"region,omitempty"`
	DataClassification string     `json:"data_classification,omitempty"`
}

// PromptText concatenates all message content for content filtering
func (r *LLMRequest) PromptText() string {
	text := ""
	for _, m := range r.Messages {
		if text != "" {
			text += "\n"
		}
		text += m.Content
	}
	return text
}

// LLMResponse is the canonical, provider-agnostic response shape
type LLMResponse struct {
	Text            string `json:"text"`
	InputTokens     int    `json:"input_tokens"`
	OutputTokens    int    `json:"output_tokens"`
	FinishReason    string `json:"finish_reason"`
	TokensEstimated bool   `json:"tokens_estimated,omitempty"` // True when usage was absent upstream
	LatencyMs       int64  `json:"latency_ms"`                 // Wire call only; end-to-end latency lives on GovernanceResult
}

// Identity is the already-authenticated caller identity handed to the
// pipeline. The pipeline performs no authentication itself.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	TeamID uuid.UUID `json:"team_id"`
}

// GovernanceError is the machine-readable error carried by a GovernanceResult
type GovernanceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes surfaced on GovernanceResult
const (
	ErrCodePolicyViolation     = "POLICY_VIOLATION"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     = "PROVIDER_TIMEOUT"
	ErrCodeProviderError       = "PROVIDER_ERROR"
)

// GovernanceResult is the terminal artifact of the pipeline for one request.
// It is handed to the caller and, asynchronously, to audit/metrics.
type GovernanceResult struct {
	RequestID  uuid.UUID        `json:"request_id"`
	Verdict    Verdict          `json:"verdict"`
	Violations []Violation      `json:"violations,omitempty"`
	Response   *LLMResponse     `json:"response,omitempty"`
	Cost       float64          `json:"cost"`
	Unpriced   bool             `json:"unpriced,omitempty"` // Pricing entry was missing; cost reported as 0
	Latency    time.Duration    `json:"latency"`
	Error      *GovernanceError `json:"error,omitempty"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
}

// Completed reports whether the provider was called and answered
func (r *GovernanceResult) Completed() bool {
	return r.Error == nil && r.Response != nil
}
