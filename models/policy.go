package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PolicyType represents different types of governance policies
type PolicyType string

const (
	PolicyTypeCost          PolicyType = "cost"
	PolicyTypeRateLimit     PolicyType = "rate_limit"
	PolicyTypeUsage         PolicyType = "usage"
	PolicyTypeContentFilter PolicyType = "content_filter"
	PolicyTypeSecurity      PolicyType = "security"
	PolicyTypeCompliance    PolicyType = "compliance"
)

// EnforcementLevel controls how strongly a violated policy affects the verdict
type EnforcementLevel string

const (
	EnforcementStrict  EnforcementLevel = "strict"
	EnforcementWarning EnforcementLevel = "warning"
	EnforcementMonitor EnforcementLevel = "monitor"
)

// PolicyScope identifies what a policy applies to
type PolicyScope string

const (
	ScopeGlobal PolicyScope = "global"
	ScopeTeam   PolicyScope = "team"
	ScopeUser   PolicyScope = "user"
)

// Policy represents a governance policy definition.
// Policies are immutable once evaluated against; updates create a new
// version instead of editing rules in place.
type Policy struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Scope       PolicyScope      `json:"scope" db:"scope"`
	TeamID      *uuid.UUID       `json:"team_id,omitempty" db:"team_id"` // Null if global
	UserID      *uuid.UUID       `json:"user_id,omitempty" db:"user_id"` // Null if not user-specific
	PolicyType  PolicyType       `json:"policy_type" db:"policy_type"`
	Enforcement EnforcementLevel `json:"enforcement" db:"enforcement"`
	Rules       json.RawMessage  `json:"rules" db:"rules"` // Type-specific rule payload (JSONB)
	Version     int              `json:"version" db:"version"`
	Active      bool             `json:"active" db:"active"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates a new global Policy instance at version 1
func NewPolicy(policyType PolicyType, enforcement EnforcementLevel, rules json.RawMessage) *Policy {
	now := time.Now()
	return &Policy{
		ID:          uuid.New(),
		Scope:       ScopeGlobal,
		PolicyType:  policyType,
		Enforcement: enforcement,
		Rules:       rules,
		Version:     1,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NextVersion returns a copy of the policy carrying new rules at version+1.
// The receiver is left untouched so in-flight evaluations never observe the
// update.
func (p *Policy) NextVersion(rules json.RawMessage) *Policy {
	next := *p
	next.Rules = rules
	next.Version = p.Version + 1
	next.UpdatedAt = time.Now()
	return &next
}

// CostRule limits the estimated cost of a single request
type CostRule struct {
	MaxCostPerRequest float64 `json:"max_cost_per_request"`
}

// RateLimitRule limits the caller's request count within a rolling window.
// The count itself is supplied by the caller as a precomputed counter.
type RateLimitRule struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// UsageRule limits the estimated token usage of a single request
type UsageRule struct {
	MaxTokens int `json:"max_tokens"`
}

// BlockedPattern is a single content-filter pattern. When Regex is false the
// pattern is matched as a case-insensitive substring.
type BlockedPattern struct {
	Pattern string `json:"pattern"`
	Regex   bool   `json:"regex,omitempty"`
}

// ContentFilterRule blocks prompts matching any configured pattern.
// DetectPII additionally blocks prompts carrying detectable PII such as
// email addresses, SSNs or card numbers.
type ContentFilterRule struct {
	BlockedPatterns []BlockedPattern `json:"blocked_patterns,omitempty"`
	DetectPII       bool             `json:"detect_pii,omitempty"`
}

// SecurityRule restricts which providers may be called. BlockInjection
// additionally rejects prompts carrying high-confidence prompt-injection
// markers.
type SecurityRule struct {
	AllowedProviders []string `json:"allowed_providers,omitempty"`
	BlockInjection   bool     `json:"block_injection,omitempty"`
}

// ComplianceRule restricts requests by region and data classification tag
type ComplianceRule struct {
	AllowedRegions         []string `json:"allowed_regions,omitempty"`
	AllowedClassifications []string `json:"allowed_classifications,omitempty"`
}
