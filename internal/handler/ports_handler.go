// internal/handler/ports_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyton-service/internal/discovery"
	"cyton-service/internal/utils"
)

// PortScanner lists host serial ports
type PortScanner interface {
	Scan(ctx context.Context) ([]discovery.Port, error)
	FindDongle(ctx context.Context) (string, error)
}

// PortsHandler handles serial port discovery requests
type PortsHandler struct {
	scanner PortScanner
	logger  *utils.ServiceLogger
}

// NewPortsHandler creates a new ports handler
func NewPortsHandler(scanner PortScanner, logger *zap.Logger) *PortsHandler {
	return &PortsHandler{
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "ports-handler"),
	}
}

// RegisterRoutes registers port discovery routes
func (h *PortsHandler) RegisterRoutes(router *gin.RouterGroup) {
	ports := router.Group("/ports")
	{
		ports.GET("", h.ListPorts)
		ports.GET("/dongle", h.FindDongle)
	}
}

// ListPorts lists serial ports, likely dongles first
// @Summary List serial ports
// @Description List serial ports on the host ordered by dongle confidence
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{ports_found=int,ports=[]discovery.Port}} "Port scan completed"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /ports [get]
func (h *PortsHandler) ListPorts(c *gin.Context) {
	ports, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to scan serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}

// FindDongle returns the port of the radio dongle
// @Summary Find the radio dongle
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{port=string}} "Dongle found"
// @Failure 404 {object} utils.APIResponse "No dongle attached"
// @Router /ports/dongle [get]
func (h *PortsHandler) FindDongle(c *gin.Context) {
	port, err := h.scanner.FindDongle(c.Request.Context())
	if err != nil {
		if errors.Is(err, discovery.ErrNoDongle) {
			utils.ErrorResponse(c, http.StatusNotFound, "No dongle found", err)
			return
		}
		h.logger.Error("Failed to find dongle", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan serial ports", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Dongle found", gin.H{"port": port})
}
