package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/llm-dev-ops/governance-gateway/models"
)

// PolicyStore provides the policy snapshot the pipeline evaluates against
type PolicyStore interface {
	// GetActivePolicies returns the active policies applicable to the given
	// identity: global policies plus the team's and user's own
	GetActivePolicies(ctx context.Context, teamID, userID uuid.UUID) ([]*models.Policy, error)

	// CreatePolicy stores a new policy version
	CreatePolicy(ctx context.Context, policy *models.Policy) error

	// DeactivatePolicy retires a policy without deleting its history
	DeactivatePolicy(ctx context.Context, id uuid.UUID) error
}
