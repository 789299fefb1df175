package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/repositories"
)

func TestPolicyHandlerCreate(t *testing.T) {
	store := repositories.NewMemoryPolicyStore()
	handler := NewPolicyHandler(store, zap.NewNop())

	t.Run("creates a global policy", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"scope":       "global",
			"policy_type": "cost",
			"enforcement": "strict",
			"rules":       map[string]interface{}{"max_cost_per_request": 1.0},
		})
		req := httptest.NewRequest("POST", "/api/v1/policies", bytes.NewBuffer(body))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var created models.Policy
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, models.PolicyTypeCost, created.PolicyType)
		assert.Equal(t, 1, created.Version)
		assert.True(t, created.Active)

		policies, err := store.GetActivePolicies(context.Background(), uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.Len(t, policies, 1)
	})

	t.Run("team scope without team_id rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"scope":       "team",
			"policy_type": "usage",
			"enforcement": "warning",
			"rules":       map[string]interface{}{"max_tokens": 4000},
		})
		req := httptest.NewRequest("POST", "/api/v1/policies", bytes.NewBuffer(body))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown enforcement rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"scope":       "global",
			"policy_type": "cost",
			"enforcement": "hard",
			"rules":       map[string]interface{}{"max_cost_per_request": 1.0},
		})
		req := httptest.NewRequest("POST", "/api/v1/policies", bytes.NewBuffer(body))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPolicyHandlerDeactivate(t *testing.T) {
	store := repositories.NewMemoryPolicyStore()
	handler := NewPolicyHandler(store, zap.NewNop())

	router := chi.NewRouter()
	router.Delete("/api/v1/policies/{id}", handler.HandleDeactivate)

	t.Run("deactivates existing policy", func(t *testing.T) {
		p := models.NewPolicy(models.PolicyTypeCost, models.EnforcementStrict, json.RawMessage(`{"max_cost_per_request":1.0}`))
		require.NoError(t, store.CreatePolicy(context.Background(), p))

		req := httptest.NewRequest("DELETE", "/api/v1/policies/"+p.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown policy returns 404", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/v1/policies/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id returns 400", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/v1/policies/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
