package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
	"github.com/llm-dev-ops/governance-gateway/repositories"
	"github.com/llm-dev-ops/governance-gateway/utils"
)

// CreatePolicyRequest is the wire shape for creating a policy
type CreatePolicyRequest struct {
	Scope       string          `json:"scope" validate:"required,oneof=global team user"`
	TeamID      *uuid.UUID      `json:"team_id,omitempty"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	PolicyType  string          `json:"policy_type" validate:"required,oneof=cost rate_limit usage content_filter security compliance"`
	Enforcement string          `json:"enforcement" validate:"required,oneof=strict warning monitor"`
	Rules       json.RawMessage `json:"rules" validate:"required"`
}

// PolicyHandler handles policy administration requests
type PolicyHandler struct {
	store  repositories.PolicyStore
	logger *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(store repositories.PolicyStore, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		store:  store,
		logger: logger,
	}
}

// HandleCreate handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	scope := models.PolicyScope(req.Scope)
	if scope == models.ScopeTeam && req.TeamID == nil {
		_ = utils.WriteBadRequest(w, "team-scoped policies require team_id", nil)
		return
	}
	if scope == models.ScopeUser && req.UserID == nil {
		_ = utils.WriteBadRequest(w, "user-scoped policies require user_id", nil)
		return
	}

	policy := models.NewPolicy(models.PolicyType(req.PolicyType), models.EnforcementLevel(req.Enforcement), req.Rules)
	policy.Scope = scope
	policy.TeamID = req.TeamID
	policy.UserID = req.UserID

	if err := h.store.CreatePolicy(r.Context(), policy); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("policy_type", string(policy.PolicyType)),
		zap.String("enforcement", string(policy.Enforcement)))

	_ = utils.WriteCreated(w, policy)
}

// HandleDeactivate handles DELETE /api/v1/policies/{id}
func (h *PolicyHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "invalid policy id", nil)
		return
	}

	if err := h.store.DeactivatePolicy(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
