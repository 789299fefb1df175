package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/repositories/postgres"
	"github.com/llm-dev-ops/governance-gateway/services/breaker"
	"github.com/llm-dev-ops/governance-gateway/services/dispatch"
	"github.com/llm-dev-ops/governance-gateway/services/providers"
	"github.com/llm-dev-ops/governance-gateway/utils"
)

// HealthHandler reports liveness and readiness
type HealthHandler struct {
	db         *postgres.DB // nil when running without a database
	dispatcher *dispatch.Dispatcher
	breakers   *breaker.Registry
	registry   *providers.Registry
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *postgres.DB, dispatcher *dispatch.Dispatcher, breakers *breaker.Registry, registry *providers.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		dispatcher: dispatcher,
		breakers:   breakers,
		registry:   registry,
		logger:     logger,
	}
}

// breakerStatus is one provider's breaker state in the health body
type breakerStatus struct {
	State    string `json:"state"`
	Failures int    `json:"consecutive_failures"`
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	breakers := make(map[string]breakerStatus)
	for _, name := range h.registry.Names() {
		state, failures := h.breakers.Snapshot(name)
		breakers[name] = breakerStatus{State: string(state), Failures: failures}
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"status":     "ok",
		"timestamp":  time.Now().UTC(),
		"breakers":   breakers,
		"dispatcher": h.dispatcher.GetStats(),
	})
}

// HandleReady handles GET /readyz
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			_ = utils.WriteServiceUnavailable(w, "database unavailable")
			return
		}
	}

	_ = utils.WriteOK(w, map[string]string{"status": "ready"})
}
