package repositories

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/services"
)

// MemoryPolicyStore is an in-memory PolicyStore for single-instance
// deployments and tests
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*models.Policy
}

// NewMemoryPolicyStore creates an empty in-memory policy store
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[uuid.UUID]*models.Policy),
	}
}

// GetActivePolicies returns active global policies plus those scoped to the
// given team or user
func (s *MemoryPolicyStore) GetActivePolicies(_ context.Context, teamID, userID uuid.UUID) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Policy
	for _, p := range s.policies {
		if !p.Active {
			continue
		}
		switch p.Scope {
		case models.ScopeGlobal:
			out = append(out, p)
		case models.ScopeTeam:
			if p.TeamID != nil && *p.TeamID == teamID {
				out = append(out, p)
			}
		case models.ScopeUser:
			if p.UserID != nil && *p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// CreatePolicy stores a new policy version
func (s *MemoryPolicyStore) CreatePolicy(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies[policy.ID] = policy
	return nil
}

// DeactivatePolicy retires a policy
func (s *MemoryPolicyStore) DeactivatePolicy(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return services.ErrPolicyNotFound
	}
	retired := *p
	retired.Active = false
	s.policies[id] = &retired
	return nil
}
