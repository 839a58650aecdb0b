package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supplyflow-backend/internal/agents"
	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/handlers"
	"supplyflow-backend/internal/metrics"
	"supplyflow-backend/internal/pkg/logger"
	"supplyflow-backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	registry := config.NewRegistry()

	var store services.AnalysisStore
	var redisService *services.RedisService
	if cfg.Redis.URL != "" {
		var err error
		redisService, err = services.NewRedisService(cfg.Redis, cfg.Analysis.ResultTTL, log)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		store = redisService
		defer redisService.Close()
	} else {
		log.Warn("REDIS_URL not set, analysis snapshots and step updates disabled")
	}

	coordinator, err := services.NewCoordinatorService(cfg.Gemini, log)
	if err != nil {
		return fmt.Errorf("coordinator initialization failed: %w", err)
	}

	orchestrator := services.NewOrchestrator(
		registry,
		agents.NewDemandAgent(log),
		agents.NewRouteAgent(cfg.Maps, registry, log),
		agents.NewCostAgent(registry, log),
		agents.NewRiskAgent(cfg.Weather, log),
		coordinator,
		store,
		cfg.Analysis,
		log,
	)
	defer orchestrator.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orchestrator.SetMetrics(metrics.New(promRegistry))

	var resultStore handlers.AnalysisResultStore
	if redisService != nil {
		resultStore = redisService
	}
	handler := handlers.NewAnalysisHandler(orchestrator, resultStore, registry, log)
	router := buildRouter(cfg, handler, promRegistry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "port", cfg.HTTP.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("HTTP server stopped cleanly")
	return nil
}

func buildRouter(cfg *config.Config, handler *handlers.AnalysisHandler, promRegistry *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/analyze", handler.Analyze)
		api.GET("/analysis/:id", handler.GetAnalysis)
		api.GET("/scenarios", handler.ListScenarios)
		api.GET("/cities", handler.ListCities)
		api.GET("/system/status", handler.SystemStatus)
	}

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	return router
}
