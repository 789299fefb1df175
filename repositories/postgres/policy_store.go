package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/repositories"
	"github.com/llm-dev-ops/governance-gateway/services"
)

// PolicyStore implements repositories.PolicyStore on PostgreSQL
type PolicyStore struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyStore creates a new PostgreSQL policy store
func NewPolicyStore(db *DB, logger *zap.Logger) repositories.PolicyStore {
	return &PolicyStore{
		db:     db,
		logger: logger,
	}
}

// GetActivePolicies returns active global policies plus those scoped to the
// given team or user
func (s *PolicyStore) GetActivePolicies(ctx context.Context, teamID, userID uuid.UUID) ([]*models.Policy, error) {
	query := `
		SELECT id, scope, team_id, user_id, policy_type, enforcement, rules, version, active, created_at, updated_at
		FROM policies
		WHERE active = true
		  AND (scope = 'global'
		    OR (scope = 'team' AND team_id = $1)
		    OR (scope = 'user' AND user_id = $2))
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, teamID, userID)
	if err != nil {
		return nil, services.WrapPolicyStore(fmt.Errorf("failed to query policies: %w", err))
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, services.WrapPolicyStore(err)
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapPolicyStore(fmt.Errorf("failed to iterate policies: %w", err))
	}

	return policies, nil
}

// CreatePolicy stores a new policy version
func (s *PolicyStore) CreatePolicy(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (id, scope, team_id, user_id, policy_type, enforcement, rules, version, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		policy.ID,
		policy.Scope,
		policy.TeamID,
		policy.UserID,
		policy.PolicyType,
		policy.Enforcement,
		[]byte(policy.Rules),
		policy.Version,
		policy.Active,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return services.WrapPolicyStore(fmt.Errorf("failed to create policy: %w", err))
	}

	s.logger.Debug("policy created",
		zap.String("id", policy.ID.String()),
		zap.String("policy_type", string(policy.PolicyType)),
		zap.Int("version", policy.Version))
	return nil
}

// DeactivatePolicy retires a policy without deleting its history
func (s *PolicyStore) DeactivatePolicy(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE policies SET active = false, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return services.WrapPolicyStore(fmt.Errorf("failed to deactivate policy: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return services.WrapPolicyStore(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if affected == 0 {
		return services.ErrPolicyNotFound
	}

	return nil
}

func scanPolicy(rows *sql.Rows) (*models.Policy, error) {
	var policy models.Policy
	var rules []byte

	err := rows.Scan(
		&policy.ID,
		&policy.Scope,
		&policy.TeamID,
		&policy.UserID,
		&policy.PolicyType,
		&policy.Enforcement,
		&rules,
		&policy.Version,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}

	policy.Rules = rules
	return &policy, nil
}
