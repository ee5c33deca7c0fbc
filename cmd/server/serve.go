// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cyton-service/internal/config"
	"cyton-service/internal/discovery"
	"cyton-service/internal/handler"
	"cyton-service/internal/metrics"
	"cyton-service/internal/protocol"
	"cyton-service/internal/routes"
	"cyton-service/internal/service"
	"cyton-service/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func NewServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control service and the board session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			app, err := NewApplication(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
}

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	boardService *service.BoardService
	eventBus     *handler.EventBus
	wsHandler    *handler.WebSocketHandler
	metrics      *metrics.Metrics
	registry     *prometheus.Registry
}

// NewApplication wires the transport, session, event fan-out and HTTP server
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	serviceLogger := utils.NewServiceLogger(logger, "cyton-service")
	serviceLogger.LogServiceStart(cfg.App.Version,
		zap.String("environment", cfg.App.Environment),
		zap.String("transport", cfg.Transport.Type),
	)

	app := &Application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	transport, err := protocol.NewTransport(cfg.TransportConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	app.metrics = metrics.New(app.registry)
	app.eventBus = handler.NewEventBus(logger, cfg.Server.StreamSamples)
	app.boardService = service.NewBoardService(transport, cfg.SessionOptions(), logger,
		app.metrics.Observe,
		app.eventBus.Handle,
	)
	app.wsHandler = handler.NewWebSocketHandler(app.boardService, app.eventBus, cfg.Server.AllowedOrigins, logger)

	router := routes.NewRouter(cfg, logger, app.boardService, discovery.NewScanner(logger), app.wsHandler, app.registry).SetupRouter()
	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
	return app, nil
}

// Run serves until ctx is cancelled, then shuts everything down
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go app.eventBus.Start(ctx)
	go app.wsHandler.Start(ctx)

	sessionDone := make(chan error, 1)
	go func() { sessionDone <- app.boardService.Run(ctx) }()

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Received shutdown signal")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case err := <-sessionDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("board session stopped: %w", err)
		}
		sessionDone = nil
	}

	app.shutdown(cancel, sessionDone)
	return runErr
}

func (app *Application) shutdown(cancel context.CancelFunc, sessionDone <-chan error) {
	utils.NewServiceLogger(app.logger, "cyton-service").LogServiceStop("shutdown")

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	// stop streaming before the session loop goes away
	if err := app.boardService.Disconnect(ctx); err != nil {
		app.logger.Debug("Disconnect on shutdown", zap.Error(err))
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	cancel()
	if sessionDone != nil {
		select {
		case <-sessionDone:
		case <-ctx.Done():
			app.logger.Warn("Board session did not stop in time")
		}
	}

	app.logger.Info("Application shutdown completed")
	_ = utils.CloseLogger(app.logger)
}
