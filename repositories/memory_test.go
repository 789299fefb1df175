package repositories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services"
)

func TestMemoryPolicyStore(t *testing.T) {
	ctx := context.Background()
	teamID := uuid.New()
	userID := uuid.New()

	teamPolicy := func() *models.Policy {
		p := models.NewPolicy(models.PolicyTypeUsage, models.EnforcementWarning, json.RawMessage(`{"max_tokens":4000}`))
		p.Scope = models.ScopeTeam
		p.TeamID = &teamID
		return p
	}

	t.Run("scoping", func(t *testing.T) {
		store := NewMemoryPolicyStore()

		global := models.NewPolicy(models.PolicyTypeCost, models.EnforcementStrict, json.RawMessage(`{"max_cost_per_request":1.0}`))
		require.NoError(t, store.CreatePolicy(ctx, global))
		require.NoError(t, store.CreatePolicy(ctx, teamPolicy()))

		otherTeam := uuid.New()
		other := models.NewPolicy(models.PolicyTypeUsage, models.EnforcementWarning, json.RawMessage(`{"max_tokens":1}`))
		other.Scope = models.ScopeTeam
		other.TeamID = &otherTeam
		require.NoError(t, store.CreatePolicy(ctx, other))

		userScoped := models.NewPolicy(models.PolicyTypeSecurity, models.EnforcementStrict, json.RawMessage(`{"allowed_providers":["openai"]}`))
		userScoped.Scope = models.ScopeUser
		userScoped.UserID = &userID
		require.NoError(t, store.CreatePolicy(ctx, userScoped))

		policies, err := store.GetActivePolicies(ctx, teamID, userID)
		require.NoError(t, err)
		assert.Len(t, policies, 3)
		for _, p := range policies {
			assert.NotEqual(t, other.ID, p.ID)
		}
	})

	t.Run("deactivated policies are excluded", func(t *testing.T) {
		store := NewMemoryPolicyStore()
		p := teamPolicy()
		require.NoError(t, store.CreatePolicy(ctx, p))
		require.NoError(t, store.DeactivatePolicy(ctx, p.ID))

		policies, err := store.GetActivePolicies(ctx, teamID, userID)
		require.NoError(t, err)
		assert.Empty(t, policies)
	})

	t.Run("deactivating unknown policy returns not found", func(t *testing.T) {
		store := NewMemoryPolicyStore()
		err := store.DeactivatePolicy(ctx, uuid.New())
		assert.ErrorIs(t, err, services.ErrPolicyNotFound)
	})

	t.Run("new version replaces by id", func(t *testing.T) {
		store := NewMemoryPolicyStore()
		p := teamPolicy()
		require.NoError(t, store.CreatePolicy(ctx, p))

		next := p.NextVersion(json.RawMessage(`{"max_tokens":8000}`))
		require.NoError(t, store.CreatePolicy(ctx, next))

		policies, err := store.GetActivePolicies(ctx, teamID, userID)
		require.NoError(t, err)
		require.Len(t, policies, 1)
		assert.Equal(t, 2, policies[0].Version)
	})
}
