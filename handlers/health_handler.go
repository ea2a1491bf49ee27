package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ryanvade/infra-demo-lnl/authn"
	"github.com/ryanvade/infra-demo-lnl/utils"
	"go.uber.org/zap"
)

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse is returned by GET /readyz
type ReadinessResponse struct {
	Status    string              `json:"status"`
	Timestamp string              `json:"timestamp"`
	Checks    map[string]string   `json:"checks"`
	KeySet    *authn.KeySetStatus `json:"keySet,omitempty"`
}

// DatabaseChecker reports database connectivity
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// KeySetReporter reports the cached signing key set
type KeySetReporter interface {
	Status() (authn.KeySetStatus, bool)
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     DatabaseChecker
	keys   KeySetReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil db skips the database check.
func NewHealthHandler(db DatabaseChecker, keys KeySetReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		keys:   keys,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only; always 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			ready = false
		} else {
			checks["database"] = "healthy"
		}
	}

	var keySet *authn.KeySetStatus
	if status, ok := h.keys.Status(); ok {
		keySet = &status
		checks["jwks"] = "healthy"
	} else {
		h.logger.Warn("no signing key set loaded")
		checks["jwks"] = "unavailable"
		ready = false
	}

	response := ReadinessResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		KeySet:    keySet,
	}
	httpStatus := http.StatusOK
	if !ready {
		response.Status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
