package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classhub/internal/core/services"
	httphandlers "classhub/internal/handlers/http"
	"classhub/internal/infrastructure/live"
	"classhub/internal/infrastructure/middleware"
	"classhub/internal/infrastructure/monitoring"
	"classhub/internal/infrastructure/repositories"
	"classhub/pkg/config"
	"classhub/pkg/logger"
	"classhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPath := os.Getenv("CLASSHUB_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "classhub",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: "production",
		SampleRate:  1.0,
	})
	if err != nil {
		zlog.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, zlog)
	if err != nil {
		zlog.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	sessionRepo := repoFactory.CreateSessionRepository()
	deviceRepo := repoFactory.CreateDeviceRepository()
	participantRepo := repoFactory.CreateParticipantRepository()
	actionRepo := repoFactory.CreateControlActionRepository()
	shareRepo := repoFactory.CreateScreenShareRepository()

	collector := monitoring.NewPrometheusCollector(nil)

	registry := live.NewRegistry(nil)
	membership := live.NewMembership()
	liveServer := live.NewServer(registry, membership, deviceRepo, participantRepo, collector, live.Config{
		PingInterval:      cfg.Live.PingInterval,
		ReadTimeout:       cfg.Live.ReadTimeout,
		WriteTimeout:      cfg.Live.WriteTimeout,
		SendQueueSize:     cfg.Live.SendQueueSize,
		MessagesPerSecond: cfg.Live.MessagesPerSecond,
		MessageBurst:      cfg.Live.MessageBurst,
	}, zlog, nil)

	sessionService := services.NewSessionService(sessionRepo, participantRepo, deviceRepo, liveServer, zlog, nil)
	controlService := services.NewControlService(actionRepo, liveServer, zlog, nil)
	screenShareService := services.NewScreenShareService(shareRepo, liveServer, zlog, nil)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	liveServer.SetControlService(controlService)
	liveServer.SetScreenShareService(screenShareService)

	monitor := live.NewMonitor(liveServer, cfg.Live.SweepInterval, cfg.Live.HeartbeatTimeout, zlog, nil)
	go monitor.Start(context.Background())

	healthChecker := monitoring.NewHealthChecker(2 * time.Second)
	healthChecker.AddCheck("store", repoFactory.HealthCheck)

	sessionHandler := httphandlers.NewSessionHandler(sessionService, controlService, screenShareService)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(zlog))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	router.GET("/ws", func(c *gin.Context) {
		liveServer.HandleWebSocket(c.Writer, c.Request)
	})

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	sessionHandler.SetupRoutes(api)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": liveServer.ConnectionCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		zlog.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Infof("Starting ClassHub coordinator on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		zlog.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		zlog.Infow("received shutdown signal", "signal", sig)
	}

	zlog.Info("Shutting down ClassHub coordinator...")

	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("http server shutdown failed", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("tracer shutdown failed", "error", err)
	}

	zlog.Info("Shutdown complete")
}
