package policy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services/safety"
)

// Engine evaluates a policy set against an evaluation context. Evaluate is
// pure: no I/O, no shared mutable state, and the result does not depend on
// the order policies are supplied in.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new policy evaluation engine
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate evaluates all policies against the context and derives a verdict.
// Verdict derivation: any blocking violation => deny; else any warning
// violation => warn_allow; else allow. Monitor-level policies (and malformed
// rule payloads, which degrade to monitor severity) never affect the verdict.
func (e *Engine) Evaluate(ctx models.EvaluationContext, policies []*models.Policy) models.Decision {
	decision := models.Decision{
		Verdict:           models.VerdictAllow,
		Violations:        make([]models.Violation, 0),
		EvaluatedPolicies: make([]uuid.UUID, 0, len(policies)),
	}

	for _, p := range policies {
		if !p.Active {
			continue
		}
		decision.EvaluatedPolicies = append(decision.EvaluatedPolicies, p.ID)

		reason, violated, err := e.evaluateOne(ctx, p)
		if err != nil {
			// A broken policy must never silently block traffic: report it
			// as a monitor-level violation for operator attention.
			e.logger.Warn("malformed policy rule payload",
				zap.String("policy_id", p.ID.String()),
				zap.String("policy_type", string(p.PolicyType)),
				zap.Error(err))
			decision.Violations = append(decision.Violations, models.Violation{
				PolicyID:   p.ID,
				PolicyType: p.PolicyType,
				Severity:   models.SeverityMonitor,
				Reason:     fmt.Sprintf("policy configuration error: %v", err),
				Context:    ctx,
			})
			continue
		}
		if !violated {
			continue
		}

		decision.Violations = append(decision.Violations, models.Violation{
			PolicyID:   p.ID,
			PolicyType: p.PolicyType,
			Severity:   models.SeverityFor(p.Enforcement),
			Reason:     reason,
			Context:    ctx,
		})
	}

	for _, v := range decision.Violations {
		switch v.Severity {
		case models.SeverityBlocking:
			decision.Verdict = models.VerdictDeny
		case models.SeverityWarning:
			if decision.Verdict != models.VerdictDeny {
				decision.Verdict = models.VerdictWarnAllow
			}
		}
	}

	return decision
}

// evaluateOne dispatches to the rule evaluator for the policy's type.
// It returns the human-readable violation reason, whether the policy was
// violated, and an error for malformed rule payloads.
func (e *Engine) evaluateOne(ctx models.EvaluationContext, p *models.Policy) (string, bool, error) {
	switch p.PolicyType {
	case models.PolicyTypeCost:
		return evaluateCost(ctx, p.Rules)
	case models.PolicyTypeRateLimit:
		return evaluateRateLimit(ctx, p.Rules)
	case models.PolicyTypeUsage:
		return evaluateUsage(ctx, p.Rules)
	case models.PolicyTypeContentFilter:
		return evaluateContentFilter(ctx, p.Rules)
	case models.PolicyTypeSecurity:
		return evaluateSecurity(ctx, p.Rules)
	case models.PolicyTypeCompliance:
		return evaluateCompliance(ctx, p.Rules)
	default:
		return "", false, fmt.Errorf("unknown policy type %q", p.PolicyType)
	}
}

func evaluateCost(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.CostRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if rule.MaxCostPerRequest <= 0 {
		return "", false, fmt.Errorf("max_cost_per_request must be positive, got %v", rule.MaxCostPerRequest)
	}
	if ctx.EstimatedCost > rule.MaxCostPerRequest {
		return fmt.Sprintf("estimated cost %.4f exceeds limit %.4f", ctx.EstimatedCost, rule.MaxCostPerRequest), true, nil
	}
	return "", false, nil
}

func evaluateRateLimit(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.RateLimitRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if rule.MaxRequests <= 0 {
		return "", false, fmt.Errorf("max_requests must be positive, got %d", rule.MaxRequests)
	}
	if ctx.RequestCount > rule.MaxRequests {
		return fmt.Sprintf("request count %d exceeds limit %d in window", ctx.RequestCount, rule.MaxRequests), true, nil
	}
	return "", false, nil
}

func evaluateUsage(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.UsageRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if rule.MaxTokens <= 0 {
		return "", false, fmt.Errorf("max_tokens must be positive, got %d", rule.MaxTokens)
	}
	if ctx.EstimatedTokens > rule.MaxTokens {
		return fmt.Sprintf("estimated tokens %d exceed limit %d", ctx.EstimatedTokens, rule.MaxTokens), true, nil
	}
	return "", false, nil
}

func evaluateContentFilter(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.ContentFilterRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if len(rule.BlockedPatterns) == 0 && !rule.DetectPII {
		return "", false, fmt.Errorf("content filter must set blocked_patterns or detect_pii")
	}

	prompt := ctx.Prompt
	lowered := strings.ToLower(prompt)
	for _, bp := range rule.BlockedPatterns {
		if bp.Pattern == "" {
			return "", false, fmt.Errorf("blocked pattern must not be empty")
		}
		if bp.Regex {
			re, err := regexp.Compile("(?i)" + bp.Pattern)
			if err != nil {
				return "", false, fmt.Errorf("invalid pattern %q: %w", bp.Pattern, err)
			}
			if re.MatchString(prompt) {
				return fmt.Sprintf("prompt matches blocked pattern %q", bp.Pattern), true, nil
			}
		} else if strings.Contains(lowered, strings.ToLower(bp.Pattern)) {
			return fmt.Sprintf("prompt contains blocked term %q", bp.Pattern), true, nil
		}
	}

	if rule.DetectPII {
		if kinds := safety.PIIKinds(safety.ScanPII(prompt)); len(kinds) > 0 {
			return fmt.Sprintf("prompt contains PII (%s)", strings.Join(kinds, ", ")), true, nil
		}
	}
	return "", false, nil
}

func evaluateSecurity(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.SecurityRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if len(rule.AllowedProviders) == 0 && !rule.BlockInjection {
		return "", false, fmt.Errorf("security rule must set allowed_providers or block_injection")
	}
	if len(rule.AllowedProviders) > 0 && !containsFold(rule.AllowedProviders, ctx.Provider) {
		return fmt.Sprintf("provider %q is not on the allow-list", ctx.Provider), true, nil
	}
	if rule.BlockInjection {
		if kind, ok := safety.DetectInjection(ctx.Prompt); ok {
			return fmt.Sprintf("prompt injection attempt detected (%s)", kind), true, nil
		}
	}
	return "", false, nil
}

func evaluateCompliance(ctx models.EvaluationContext, rules json.RawMessage) (string, bool, error) {
	var rule models.ComplianceRule
	if err := unmarshalRule(rules, &rule); err != nil {
		return "", false, err
	}
	if len(rule.AllowedRegions) == 0 && len(rule.AllowedClassifications) == 0 {
		return "", false, fmt.Errorf("compliance rule must constrain regions or classifications")
	}
	if len(rule.AllowedRegions) > 0 && !containsFold(rule.AllowedRegions, ctx.Region) {
		return fmt.Sprintf("region %q is not permitted", ctx.Region), true, nil
	}
	if len(rule.AllowedClassifications) > 0 && !containsFold(rule.AllowedClassifications, ctx.DataClassification) {
		return fmt.Sprintf("data classification %q is not permitted", ctx.DataClassification), true, nil
	}
	return "", false, nil
}

// unmarshalRule decodes a rule payload strictly so unknown or mistyped
// fields surface as configuration errors instead of zero values.
func unmarshalRule(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty rule payload")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding rule payload: %w", err)
	}
	return nil
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
