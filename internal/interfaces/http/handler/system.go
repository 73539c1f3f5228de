package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partnerbill/backend/internal/interfaces/http/dto"
)

// ReadinessChecker reports whether a backing dependency is reachable
type ReadinessChecker interface {
	Ping() error
}

// SystemHandler handles health and readiness probes
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checkers  map[string]ReadinessChecker
}

// NewSystemHandler creates a new SystemHandler. Checkers are probed by the
// readiness endpoint, keyed by dependency name.
func NewSystemHandler(checkers map[string]ReadinessChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// HealthResponse represents the health probe response
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health. Liveness only, no dependency checks.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// ReadyResponse represents the readiness probe response
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready handles GET /ready, probing every registered dependency
func (h *SystemHandler) Ready(c *gin.Context) {
	resp := ReadyResponse{
		Status: "ready",
		Checks: make(map[string]string, len(h.checkers)),
	}

	healthy := true
	for name, checker := range h.checkers {
		if err := checker.Ping(); err != nil {
			resp.Checks[name] = err.Error()
			healthy = false
			continue
		}
		resp.Checks[name] = "ok"
	}

	if !healthy {
		resp.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// RegisterRoutes registers system probe routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}
