// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyton-service/internal/config"
	"cyton-service/internal/service"
	"cyton-service/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	boardService *service.BoardService
	app          config.AppConfig
	logger       *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(boardService *service.BoardService, app config.AppConfig, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		boardService: boardService,
		app:          app,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports the session loop and the board link
// @Summary Health check
// @Description Get overall service health including the board session
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Session loop is not answering"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.app.Name,
		Version:   h.app.Version,
		Uptime:    h.boardService.Uptime().Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, err := h.boardService.Status(ctx)
	if err != nil {
		h.logger.Warn("Board session health check failed", zap.Error(err))
		health.Status = "unhealthy"
		health.Checks["session"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health.Checks["session"] = CheckResult{
		Status:  "healthy",
		Message: "Session loop responding",
		Data: map[string]interface{}{
			"session_id": status.SessionID,
			"transport":  status.Transport,
		},
	}

	board := CheckResult{
		Status: "disconnected",
		Data: map[string]interface{}{
			"streaming":      status.Streaming,
			"packets":        status.Stats.Packets,
			"bad_packets":    status.Stats.BadPackets,
			"missed_packets": status.Stats.MissedPackets,
		},
	}
	if status.Connected {
		board.Status = "connected"
		board.Data["firmware"] = status.Info.Firmware.String()
		board.Data["channels"] = status.Info.Channels
	}
	health.Checks["board"] = board

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Ready once the board session loop runs
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.boardService.Running() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "board session not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
