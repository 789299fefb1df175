package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
)

func testRequest() *models.LLMRequest {
	return &models.LLMRequest{
		Provider: "anthropic",
		Model:    "claude-3-sonnet",
		Messages: []models.Message{
			{Role: "system", Content: "You are terse"},
			{Role: "user", Content: "Hello"},
		},
		Params: models.Parameters{MaxTokens: 256},
	}
}

func TestInvoke(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

			var req messagesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "claude-3-sonnet", req.Model)
			assert.Equal(t, 256, req.MaxTokens)
			assert.Equal(t, "You are terse", req.System)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)

			json.NewEncoder(w).Encode(messagesResponse{
				ID:         "msg_1",
				Model:      "claude-3-sonnet",
				Content:    []contentBlock{{Type: "text", Text: "Hi."}},
				StopReason: "end_turn",
				Usage:      usage{InputTokens: 9, OutputTokens: 3},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		resp, err := adapter.Invoke(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "Hi.", resp.Text)
		assert.Equal(t, 9, resp.InputTokens)
		assert.Equal(t, 3, resp.OutputTokens)
		assert.Equal(t, "end_turn", resp.FinishReason)
		assert.False(t, resp.TokensEstimated)
	})

	t.Run("latency covers the upstream call", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(25 * time.Millisecond)
			json.NewEncoder(w).Encode(messagesResponse{
				Content:    []contentBlock{{Type: "text", Text: "Hi."}},
				StopReason: "end_turn",
				Usage:      usage{InputTokens: 9, OutputTokens: 3},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		resp, err := adapter.Invoke(context.Background(), testRequest())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, resp.LatencyMs, int64(25))
	})

	t.Run("max_tokens defaults when caller omits it", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req messagesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, fallbackMaxTokens, req.MaxTokens)

			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{{Type: "text", Text: "ok"}},
				Usage:   usage{InputTokens: 1, OutputTokens: 1},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		req := testRequest()
		req.Params.MaxTokens = 0
		_, err := adapter.Invoke(context.Background(), req)
		require.NoError(t, err)
	})

	t.Run("multiple text blocks are concatenated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{
					{Type: "text", Text: "part one "},
					{Type: "tool_use", Text: "ignored"},
					{Type: "text", Text: "part two"},
				},
				Usage: usage{InputTokens: 4, OutputTokens: 6},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		resp, err := adapter.Invoke(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "part one part two", resp.Text)
	})

	t.Run("missing usage falls back to estimation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{{Type: "text", Text: "estimated reply"}},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		resp, err := adapter.Invoke(context.Background(), testRequest())
		require.NoError(t, err)
		assert.True(t, resp.TokensEstimated)
		assert.Equal(t, providers.EstimateTokens("estimated reply"), resp.OutputTokens)
	})

	t.Run("overloaded classified as upstream 5xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		_, err := adapter.Invoke(context.Background(), testRequest())
		require.Error(t, err)

		pe, ok := providers.AsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, providers.KindUpstream5xx, pe.Kind)
		assert.Contains(t, pe.Message, "Overloaded")
	})

	t.Run("invalid request classified as upstream 4xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "invalid_request_error", "message": "max_tokens required"},
			})
		}))
		defer server.Close()

		adapter := NewAdapter(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		_, err := adapter.Invoke(context.Background(), testRequest())
		require.Error(t, err)

		pe, ok := providers.AsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, providers.KindUpstream4xx, pe.Kind)
		assert.False(t, pe.Infrastructure())
	})
}

func TestName(t *testing.T) {
	adapter := NewAdapter(providers.Config{APIKey: "test-key"})
	assert.Equal(t, "anthropic", adapter.Name())
	assert.Contains(t, adapter.Models(), "claude-3-opus")
}
