package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-dev-ops/governance-gateway/models"
)

func TestPrometheusSink(t *testing.T) {
	sink := NewPrometheusSink()
	teamID := uuid.New()

	sample := &models.MetricSample{
		RequestID:    uuid.New(),
		TeamID:       teamID,
		Provider:     "openai",
		Model:        "gpt-4",
		Verdict:      models.VerdictAllow,
		Cost:         0.06,
		InputTokens:  1000,
		OutputTokens: 500,
		LatencyMs:    420,
	}
	require.NoError(t, sink.WriteMetric(context.Background(), sample))

	denied := &models.MetricSample{
		RequestID: uuid.New(),
		TeamID:    teamID,
		Provider:  "openai",
		Model:     "gpt-4",
		Verdict:   models.VerdictDeny,
	}
	require.NoError(t, sink.WriteMetric(context.Background(), denied))

	rec := httptest.NewRecorder()
	sink.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `governance_requests_total{model="gpt-4",provider="openai",verdict="allow"} 1`)
	assert.Contains(t, body, `governance_requests_total{model="gpt-4",provider="openai",verdict="deny"} 1`)
	assert.Contains(t, body, `governance_tokens_total{direction="input",model="gpt-4",provider="openai"} 1000`)
	assert.Contains(t, body, `governance_cost_dollars_total`)
}

func TestNewLogger(t *testing.T) {
	t.Run("production json logger", func(t *testing.T) {
		logger, err := NewLogger("production", "info")
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("development logger with debug level", func(t *testing.T) {
		logger, err := NewLogger("development", "debug")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1)) // zapcore.DebugLevel
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		_, err := NewLogger("development", "verbose")
		assert.Error(t, err)
	})
}
