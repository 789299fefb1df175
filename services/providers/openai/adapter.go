package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

var defaultModels = []string{"gpt-4", "gpt-4-turbo", "gpt-4o", "gpt-3.5-turbo"}

// Adapter implements the provider interface for the OpenAI chat API
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	models     []string
}

// NewAdapter creates a new OpenAI adapter
func NewAdapter(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = providers.DefaultTimeout
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		models:     defaultModels,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "openai"
}

// Models returns the models this adapter serves
func (a *Adapter) Models() []string {
	return a.models
}

// Invoke performs a chat completion request against the OpenAI API
func (a *Adapter) Invoke(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindNetwork, 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindNetwork, 0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	callStart := time.Now()
	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		kind := providers.KindForTransportError(ctx, err)
		return nil, providers.NewProviderError(a.Name(), kind, 0, "request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindNetwork, httpResp.StatusCode, "failed to read response", err)
	}
	wireLatency := time.Since(callStart)

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.errorFromResponse(httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUpstream5xx, httpResp.StatusCode, "malformed response body", err)
	}

	out := a.convertResponse(req, &chatResp)
	out.LatencyMs = wireLatency.Milliseconds()
	return out, nil
}

// buildRequest converts the canonical request into OpenAI wire format
func (a *Adapter) buildRequest(req *models.LLMRequest) *chatRequest {
	out := &chatRequest{
		Model:    req.Model,
		Messages: make([]chatMessage, len(req.Messages)),
	}
	for i, m := range req.Messages {
		out.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	if req.Params.MaxTokens > 0 {
		out.MaxTokens = &req.Params.MaxTokens
	}
	if req.Params.Temperature > 0 {
		out.Temperature = &req.Params.Temperature
	}
	if req.Params.TopP > 0 {
		out.TopP = &req.Params.TopP
	}
	if len(req.Params.Stop) > 0 {
		out.Stop = req.Params.Stop
	}

	return out
}

// convertResponse converts an OpenAI response into the canonical shape.
// Missing usage data falls back to deterministic estimation.
func (a *Adapter) convertResponse(req *models.LLMRequest, resp *chatResponse) *models.LLMResponse {
	out := &models.LLMResponse{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.FinishReason = resp.Choices[0].FinishReason
	}

	if resp.Usage.PromptTokens == 0 && resp.Usage.CompletionTokens == 0 {
		out.InputTokens = providers.EstimateTokens(req.PromptText())
		out.OutputTokens = providers.EstimateTokens(out.Text)
		out.TokensEstimated = true
	}

	return out
}

// errorFromResponse classifies a non-200 response from the OpenAI API
func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	kind := providers.KindForStatus(statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), kind, statusCode, http.StatusText(statusCode), nil)
	}
	return providers.NewProviderError(a.Name(), kind, statusCode, errResp.Error.Message, nil)
}

// OpenAI wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
