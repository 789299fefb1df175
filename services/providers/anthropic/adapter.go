package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	// The messages API requires max_tokens; used when the caller sets none
	fallbackMaxTokens = 1024
)

var defaultModels = []string{"claude-3-opus", "claude-3-sonnet", "claude-3-haiku"}

// Adapter implements the provider interface for the Anthropic messages API
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	models     []string
}

// NewAdapter creates a new Anthropic adapter
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
	return "anthropic"
}

// Models returns the models this adapter serves
func (a *Adapter) Models() []string {
	return a.models
}

// Invoke performs a messages request against the Anthropic API
func (a *Adapter) Invoke(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindNetwork, 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindNetwork, 0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

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

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.KindUpstream5xx, httpResp.StatusCode, "malformed response body", err)
	}

	out := a.convertResponse(req, &msgResp)
	out.LatencyMs = wireLatency.Milliseconds()
	return out, nil
}

// buildRequest converts the canonical request into Anthropic wire format.
// System messages are lifted into the top-level system field.
func (a *Adapter) buildRequest(req *models.LLMRequest) *messagesRequest {
	out := &messagesRequest{
		Model:     req.Model,
		MaxTokens: fallbackMaxTokens,
	}
	if req.Params.MaxTokens > 0 {
		out.MaxTokens = req.Params.MaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		out.Messages = append(out.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	out.System = strings.Join(system, "\n")

	if req.Params.Temperature > 0 {
		out.Temperature = &req.Params.Temperature
	}
	if req.Params.TopP > 0 {
		out.TopP = &req.Params.TopP
	}
	if len(req.Params.Stop) > 0 {
		out.StopSequences = req.Params.Stop
	}

	return out
}

// convertResponse converts an Anthropic response into the canonical shape.
// Missing usage data falls back to deterministic estimation.
func (a *Adapter) convertResponse(req *models.LLMRequest, resp *messagesResponse) *models.LLMResponse {
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := &models.LLMResponse{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		FinishReason: resp.StopReason,
	}

	if resp.Usage.InputTokens == 0 && resp.Usage.OutputTokens == 0 {
		out.InputTokens = providers.EstimateTokens(req.PromptText())
		out.OutputTokens = providers.EstimateTokens(out.Text)
		out.TokensEstimated = true
	}

	return out
}

// errorFromResponse classifies a non-200 response from the Anthropic API
func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	kind := providers.KindForStatus(statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), kind, statusCode, http.StatusText(statusCode), nil)
	}
	return providers.NewProviderError(a.Name(), kind, statusCode, errResp.Error.Message, nil)
}

// Anthropic wire types

type messagesRequest struct {
	Model         string        `json:"model"`
	System        string        `json:"system,omitempty"`
	Messages      []wireMessage `json:"messages"`
	MaxTokens     int           `json:"max_tokens"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
