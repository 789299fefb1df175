package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/middleware"
	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/utils"
)

// GovernanceService is the orchestrator capability the handler depends on
type GovernanceService interface {
	Govern(ctx context.Context, req *models.LLMRequest, identity models.Identity) (*models.GovernanceResult, error)
}

// CompletionRequest is the wire shape of a governed completion request
type CompletionRequest struct {
	Provider           string        `json:"provider" validate:"required"`
	Model              string        `json:"model" validate:"required"`
	Messages           []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	MaxTokens          *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature        *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP               *float64      `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	Stop               []string      `json:"stop,omitempty"`
	Region             string        `json:"region,omitempty"`
	DataClassification string        `json:"data_classification,omitempty"`
}

// ChatMessage is a single chat message
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ViolationSummary is the wire shape of one policy violation
type ViolationSummary struct {
	PolicyID   string `json:"policy_id"`
	PolicyType string `json:"policy_type"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
}

// CompletionUsage reports token usage for a completed request
type CompletionUsage struct {
	InputTokens     int  `json:"input_tokens"`
	OutputTokens    int  `json:"output_tokens"`
	TokensEstimated bool `json:"tokens_estimated,omitempty"`
}

// CompletionResponse is the wire shape of a governance result
type CompletionResponse struct {
	ID           string                  `json:"id"`
	Verdict      models.Verdict          `json:"verdict"`
	Violations   []ViolationSummary      `json:"violations,omitempty"`
	Text         string                  `json:"text,omitempty"`
	FinishReason string                  `json:"finish_reason,omitempty"`
	Usage        *CompletionUsage        `json:"usage,omitempty"`
	Cost         float64                 `json:"cost"`
	Unpriced     bool                    `json:"unpriced,omitempty"`
	LatencyMs    int64                   `json:"latency_ms"`
	Error        *models.GovernanceError `json:"error,omitempty"`
}

// GovernanceHandler handles governed completion requests
type GovernanceHandler struct {
	service GovernanceService
	logger  *zap.Logger
}

// NewGovernanceHandler creates a new GovernanceHandler
func NewGovernanceHandler(service GovernanceService, logger *zap.Logger) *GovernanceHandler {
	return &GovernanceHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCompletion handles POST /v1/governance/completions
func (h *GovernanceHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := middleware.GetIdentityFromContext(ctx)
	if !ok {
		h.logger.Error("missing identity in context")
		_ = utils.WriteUnauthorized(w, "Missing identity")
		return
	}

	var wireReq CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&wireReq); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	result, err := h.service.Govern(ctx, toLLMRequest(&wireReq), identity)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, statusFor(result), toCompletionResponse(result))
}

// statusFor maps a governance result to its HTTP status code
func statusFor(result *models.GovernanceResult) int {
	if result.Error == nil {
		return http.StatusOK
	}
	switch result.Error.Code {
	case models.ErrCodePolicyViolation:
		return http.StatusUnprocessableEntity
	case models.ErrCodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case models.ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func toLLMRequest(wireReq *CompletionRequest) *models.LLMRequest {
	req := &models.LLMRequest{
		Provider:           wireReq.Provider,
		Model:              wireReq.Model,
		Messages:           make([]models.Message, len(wireReq.Messages)),
		Region:             wireReq.Region,
		DataClassification: wireReq.DataClassification,
	}
	for i, m := range wireReq.Messages {
		req.Messages[i] = models.Message{Role: m.Role, Content: m.Content}
	}
	if wireReq.MaxTokens != nil {
		req.Params.MaxTokens = *wireReq.MaxTokens
	}
	if wireReq.Temperature != nil {
		req.Params.Temperature = *wireReq.Temperature
	}
	if wireReq.TopP != nil {
		req.Params.TopP = *wireReq.TopP
	}
	req.Params.Stop = wireReq.Stop
	return req
}

func toCompletionResponse(result *models.GovernanceResult) CompletionResponse {
	resp := CompletionResponse{
		ID:        result.RequestID.String(),
		Verdict:   result.Verdict,
		Cost:      result.Cost,
		Unpriced:  result.Unpriced,
		LatencyMs: result.Latency.Milliseconds(),
		Error:     result.Error,
	}

	for _, v := range result.Violations {
		resp.Violations = append(resp.Violations, ViolationSummary{
			PolicyID:   v.PolicyID.String(),
			PolicyType: string(v.PolicyType),
			Severity:   string(v.Severity),
			Reason:     v.Reason,
		})
	}

	if result.Response != nil {
		resp.Text = result.Response.Text
		resp.FinishReason = result.Response.FinishReason
		resp.Usage = &CompletionUsage{
			InputTokens:     result.Response.InputTokens,
			OutputTokens:    result.Response.OutputTokens,
			TokensEstimated: result.Response.TokensEstimated,
		}
	}

	return resp
}
