package governance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/repositories"
	"github.com/llm-dev-ops/governance-gateway/services"
	"github.com/llm-dev-ops/governance-gateway/services/breaker"
	"github.com/llm-dev-ops/governance-gateway/services/cost"
	"github.com/llm-dev-ops/governance-gateway/services/dispatch"
	"github.com/llm-dev-ops/governance-gateway/services/policy"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
	"github.com/llm-dev-ops/governance-gateway/services/ratelimit"
)

// defaultRateWindow is used for the rolling request counter when no
// rate-limit policy names a window
const defaultRateWindow = time.Minute

// Config holds orchestrator configuration
type Config struct {
	// RequestTimeout bounds the provider call per request
	RequestTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
	}
}

// Service orchestrates the governance pipeline for one request at a time:
// policy evaluation, breaker admission, the provider call, cost accounting,
// and the async audit/metrics hand-off.
type Service struct {
	policyStore repositories.PolicyStore
	engine      *policy.Engine
	breakers    *breaker.Registry
	registry    *providers.Registry
	calculator  *cost.Calculator
	counter     ratelimit.Counter
	dispatcher  *dispatch.Dispatcher
	logger      *zap.Logger
	config      Config
}

// NewService creates a new governance orchestrator
func NewService(
	policyStore repositories.PolicyStore,
	engine *policy.Engine,
	breakers *breaker.Registry,
	registry *providers.Registry,
	calculator *cost.Calculator,
	counter ratelimit.Counter,
	dispatcher *dispatch.Dispatcher,
	logger *zap.Logger,
	config Config,
) *Service {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Service{
		policyStore: policyStore,
		engine:      engine,
		breakers:    breakers,
		registry:    registry,
		calculator:  calculator,
		counter:     counter,
		dispatcher:  dispatcher,
		logger:      logger,
		config:      config,
	}
}

// Govern runs one request through the full pipeline. Policy denials, breaker
// rejections and provider failures are reported inside the result; an error
// return means the request never entered the pipeline (validation, or the
// policy snapshot could not be fetched).
func (s *Service) Govern(ctx context.Context, req *models.LLMRequest, identity models.Identity) (*models.GovernanceResult, error) {
	start := time.Now()
	requestID := uuid.New()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	policies, err := s.policyStore.GetActivePolicies(ctx, identity.TeamID, identity.UserID)
	if err != nil {
		return nil, err
	}

	result := &models.GovernanceResult{
		RequestID: requestID,
		Provider:  req.Provider,
		Model:     req.Model,
	}

	evalCtx := s.buildContext(ctx, requestID, req, identity, policies)
	decision := s.engine.Evaluate(evalCtx, policies)
	result.Verdict = decision.Verdict
	result.Violations = decision.Violations

	if decision.Verdict == models.VerdictDeny {
		// Denied requests never touch the adapter and never incur cost
		result.Error = &models.GovernanceError{
			Code:    models.ErrCodePolicyViolation,
			Message: "request denied by policy",
		}
		s.finish(identity, result, start)
		return result, nil
	}

	response, callErr := s.callProvider(ctx, req)
	if callErr != nil {
		result.Error = s.errorFor(callErr)
		s.finish(identity, result, start)
		return result, nil
	}

	result.Response = response
	computed, priced := s.calculator.Compute(req.Provider, req.Model, response.InputTokens, response.OutputTokens)
	result.Cost = computed
	result.Unpriced = !priced

	s.finish(identity, result, start)
	return result, nil
}

// validate rejects requests the pipeline cannot route
func (s *Service) validate(req *models.LLMRequest) error {
	if req.PromptText() == "" {
		return services.ErrEmptyPrompt
	}
	if _, ok := s.registry.Get(req.Provider); !ok {
		return services.ErrUnknownProvider
	}
	if !s.registry.Supports(req.Provider, req.Model) {
		return services.ErrUnknownModel
	}
	return nil
}

// buildContext assembles the immutable per-request evaluation context
func (s *Service) buildContext(ctx context.Context, requestID uuid.UUID, req *models.LLMRequest, identity models.Identity, policies []*models.Policy) models.EvaluationContext {
	prompt := req.PromptText()
	inputTokens := providers.EstimateTokens(prompt)
	outputTokens := providers.EstimateOutputTokens(req.Params.MaxTokens)

	count := 0
	if s.counter != nil {
		observed, err := s.counter.Observe(ctx, identity.UserID, rateWindowFor(policies))
		if err != nil {
			// Counter outage degrades to an unconstrained count, never a denial
			s.logger.Warn("request counter unavailable",
				zap.String("request_id", requestID.String()),
				zap.Error(err))
		} else {
			count = observed
		}
	}

	return models.EvaluationContext{
		RequestID:          requestID,
		UserID:             identity.UserID,
		TeamID:             identity.TeamID,
		Provider:           req.Provider,
		Model:              req.Model,
		EstimatedTokens:    inputTokens + outputTokens,
		EstimatedCost:      s.calculator.Estimate(req.Provider, req.Model, inputTokens, outputTokens),
		RequestCount:       count,
		Prompt:             prompt,
		Region:             req.Region,
		DataClassification: req.DataClassification,
		Timestamp:          time.Now(),
	}
}

// callProvider runs the adapter call under the breaker and the per-request
// deadline
func (s *Service) callProvider(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	adapter, _ := s.registry.Get(req.Provider)

	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var response *models.LLMResponse
	err := s.breakers.Execute(req.Provider, func(err error) breaker.Outcome {
		return classifyOutcome(ctx, err)
	}, func() error {
		var invokeErr error
		response, invokeErr = adapter.Invoke(callCtx, req)
		return invokeErr
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// classifyOutcome translates a provider error into a breaker outcome.
// Upstream 4xx responses are the provider answering, not failing;
// cancellation initiated by the caller is nobody's failure.
func classifyOutcome(callerCtx context.Context, err error) breaker.Outcome {
	if callerCtx.Err() == context.Canceled {
		return breaker.Abort
	}
	if pe, ok := providers.AsProviderError(err); ok && !pe.Infrastructure() {
		return breaker.Success
	}
	return breaker.Failure
}

// errorFor maps a pipeline failure to the result's machine-readable error
func (s *Service) errorFor(err error) *models.GovernanceError {
	var open *breaker.ErrOpen
	if errors.As(err, &open) {
		return &models.GovernanceError{
			Code:    models.ErrCodeProviderUnavailable,
			Message: open.Error(),
		}
	}
	if providers.IsTimeout(err) {
		return &models.GovernanceError{
			Code:    models.ErrCodeProviderTimeout,
			Message: "provider call timed out",
		}
	}
	return &models.GovernanceError{
		Code:    models.ErrCodeProviderError,
		Message: err.Error(),
	}
}

// finish stamps latency and hands the outcome to audit and metrics. Emission
// is fire-and-forget; a full queue can never fail the request.
func (s *Service) finish(identity models.Identity, result *models.GovernanceResult, start time.Time) {
	result.Latency = time.Since(start)

	if s.dispatcher != nil {
		s.dispatcher.EmitAudit(models.NewAuditEvent(identity, result))
		s.dispatcher.EmitMetric(models.NewMetricSample(identity, result))
	}

	s.logger.Info("request governed",
		zap.String("request_id", result.RequestID.String()),
		zap.String("provider", result.Provider),
		zap.String("model", result.Model),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("violations", len(result.Violations)),
		zap.Float64("cost", result.Cost),
		zap.Duration("latency", result.Latency))
}

// rateWindowFor returns the widest window named by any active rate-limit
// policy, so the observed count is usable by every one of them
func rateWindowFor(policies []*models.Policy) time.Duration {
	window := defaultRateWindow
	for _, p := range policies {
		if p.PolicyType != models.PolicyTypeRateLimit || !p.Active {
			continue
		}
		var rule models.RateLimitRule
		if err := json.Unmarshal(p.Rules, &rule); err != nil {
			continue
		}
		if w := time.Duration(rule.WindowSeconds) * time.Second; w > window {
			window = w
		}
	}
	return window
}
