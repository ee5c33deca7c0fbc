// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cyton-service/internal/config"
	"cyton-service/internal/handler"
	"cyton-service/internal/middleware"
	"cyton-service/internal/service"
	"cyton-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	boardService *service.BoardService
	scanner      handler.PortScanner
	wsHandler    *handler.WebSocketHandler
	gatherer     prometheus.Gatherer
}

// NewRouter creates a new router instance. A nil gatherer serves the
// default Prometheus registry.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	boardService *service.BoardService,
	scanner handler.PortScanner,
	wsHandler *handler.WebSocketHandler,
	gatherer prometheus.Gatherer,
) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		config:       config,
		logger:       logger,
		boardService: boardService,
		scanner:      scanner,
		wsHandler:    wsHandler,
		gatherer:     gatherer,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	// inside logging so panics are logged with their 500
	router.Use(middleware.RecoveryMiddleware(r.logger))

	router.Use(middleware.CORSMiddleware(r.config.Server.AllowedOrigins))

	r.logger.Info("Middleware configured")
}

func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.boardService, r.config.App, r.logger)
	boardHandler := handler.NewBoardHandler(r.boardService, r.logger)
	portsHandler := handler.NewPortsHandler(r.scanner, r.logger)

	healthHandler.RegisterRoutes(&router.RouterGroup)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	apiV1 := router.Group("/api/v1")
	boardHandler.RegisterRoutes(apiV1)
	portsHandler.RegisterRoutes(apiV1)

	if r.wsHandler != nil {
		r.wsHandler.RegisterRoutes(router.Group("/ws"))
	}

	r.logger.Info("All routes configured successfully")
}
