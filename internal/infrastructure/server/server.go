package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apihttp "github.com/blueprint-desktop/exthost/internal/api/http"
	"github.com/blueprint-desktop/exthost/internal/api/middleware"
	"github.com/blueprint-desktop/exthost/internal/api/ws"
	"github.com/blueprint-desktop/exthost/internal/domain/controller"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/tracing"
)

// scheduledCheckTimeout bounds one background update sweep. The sweep
// makes one store call per installed extension, so it gets far more
// room than a single interactive command.
const scheduledCheckTimeout = 5 * time.Minute

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	controller *controller.Controller
	cron       *cron.Cron
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer wires the extension host. Nothing listens and no child
// process spawns until Run.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		logger = l
	}

	logger.Info("Initializing Blueprint extension host",
		zap.String("port", cfg.Server.Port),
		zap.String("extensions_root", cfg.Extensions.Root),
		zap.String("store_url", cfg.Store.URL),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("exthost", logger.Logger)

	ctrl := controller.New(cfg, logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(ctrl, logger)
	metricsHandlers := apihttp.NewMetricsHandlers(metrics)
	wsHandler := ws.NewHandler(ctrl.Events(), logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/host/status", handlers.HostStatus)

	// Extension lifecycle
	router.GET("/extensions", handlers.ListExtensions)
	router.GET("/extensions/:id", handlers.GetExtension)
	router.GET("/extensions/:id/stats", handlers.ExtensionStats)
	router.POST("/extensions/:id/load", handlers.LoadExtension)
	router.POST("/extensions/:id/activate", handlers.ActivateExtension)
	router.POST("/extensions/:id/deactivate", handlers.DeactivateExtension)
	router.POST("/extensions/:id/enable", handlers.EnableExtension)
	router.POST("/extensions/:id/disable", handlers.DisableExtension)
	router.POST("/extensions/:id/kill", handlers.KillExtension)
	router.DELETE("/extensions/:id", handlers.UninstallExtension)

	// Installation and updates
	router.POST("/extensions/install", handlers.InstallExtension)
	router.POST("/extensions/install-file", handlers.InstallFromFile)
	router.POST("/extensions/:id/update", handlers.UpdateExtension)
	router.POST("/extensions/:id/rollback", handlers.RollbackExtension)
	router.POST("/extensions/:id/pin", handlers.PinExtension)
	router.DELETE("/extensions/:id/pin", handlers.UnpinExtension)
	router.GET("/updates/check", handlers.CheckUpdates)

	// Store browsing
	router.GET("/store", handlers.BrowseStore)
	router.GET("/store/search", handlers.SearchStore)
	router.GET("/store/:id", handlers.GetStoreExtension)

	// Renderer log forwarding
	router.POST("/logs", handlers.StreamLogs)

	// Event stream
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/metrics/json", metricsHandlers.Snapshot)

	var cronRunner *cron.Cron
	if cfg.Updates.Enabled {
		cronRunner = cron.New()
		_, err := cronRunner.AddFunc(cfg.Updates.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), scheduledCheckTimeout)
			defer cancel()
			ctrl.RunScheduledCheck(ctx)
		})
		if err != nil {
			logger.Warn("Invalid update schedule, periodic checks disabled",
				zap.String("schedule", cfg.Updates.Schedule),
				zap.Error(err))
			cronRunner = nil
		}
	}

	logger.Info("Host initialized successfully")

	return &Server{
		router:     router,
		controller: ctrl,
		cron:       cronRunner,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// Run brings the extension system up and serves HTTP until the process
// is told to stop.
func (s *Server) Run() error {
	if err := s.controller.Initialize(); err != nil {
		return fmt.Errorf("initialize extension system: %w", err)
	}

	if s.cron != nil {
		s.cron.Start()
		s.logger.Info("Update checks scheduled",
			zap.String("schedule", s.config.Updates.Schedule))
	}

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the extension system
func (s *Server) Close() error {
	s.logger.Info("Shutting down host...")

	if s.cron != nil {
		s.cron.Stop()
	}
	s.controller.Shutdown()

	s.logger.Sync()
	return nil
}
