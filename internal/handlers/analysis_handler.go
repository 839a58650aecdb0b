package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

// AnalysisOrchestrator is the handler's view of the orchestrator.
type AnalysisOrchestrator interface {
	Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error)
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
	GetActiveAnalysesCount() int
}

// AnalysisResultStore serves stored snapshots of past analyses. Nil when no
// snapshot store is configured.
type AnalysisResultStore interface {
	GetAnalysisResult(ctx context.Context, analysisID string) (*models.AnalyzeResponse, error)
}

type AnalysisHandler struct {
	orchestrator AnalysisOrchestrator
	results      AnalysisResultStore
	registry     *config.Registry
	logger       *logger.Logger
	startTime    time.Time
}

func NewAnalysisHandler(orchestrator AnalysisOrchestrator, results AnalysisResultStore, registry *config.Registry, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		results:      results,
		registry:     registry,
		logger:       log,
		startTime:    time.Now(),
	}
}

func (handler *AnalysisHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.logger.WithError(err).Warn("Rejected malformed analyze request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"code":    "INVALID_REQUEST",
			"message": "origin, destination and scenario are required",
		})
		return
	}

	response, err := handler.orchestrator.Analyze(c.Request.Context(), &req)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Type == models.ErrorTypeValidation {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}

		// The orchestrator absorbs every non-validation failure, so this
		// path only fires on genuine internal bugs.
		handler.logger.WithError(err).Error("Analyze returned an unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"code":    models.ErrorCode(err),
			"message": "analysis failed unexpectedly",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (handler *AnalysisHandler) GetAnalysis(c *gin.Context) {
	if handler.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"code":    "NO_RESULT_STORE",
			"message": "analysis snapshots are not configured",
		})
		return
	}

	analysisID := c.Param("id")
	response, err := handler.results.GetAnalysisResult(c.Request.Context(), analysisID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "ANALYSIS_NOT_FOUND" {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}

		handler.logger.WithError(err).WithField("analysis_id", analysisID).Error("Failed to load stored analysis")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"code":    models.ErrorCode(err),
			"message": "failed to load stored analysis",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (handler *AnalysisHandler) ListScenarios(c *gin.Context) {
	scenarios := handler.registry.Scenarios()
	c.JSON(http.StatusOK, gin.H{
		"scenarios": scenarios,
		"count":     len(scenarios),
	})
}

func (handler *AnalysisHandler) ListCities(c *gin.Context) {
	cities := handler.registry.Cities()
	c.JSON(http.StatusOK, gin.H{
		"cities": cities,
		"count":  len(cities),
	})
}

func (handler *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (handler *AnalysisHandler) SystemStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	var healthErr string
	if err := handler.orchestrator.HealthCheck(ctx); err != nil {
		status = "degraded"
		healthErr = err.Error()
	}

	payload := gin.H{
		"status":          status,
		"uptime_seconds":  time.Since(handler.startTime).Seconds(),
		"active_analyses": handler.orchestrator.GetActiveAnalysesCount(),
		"orchestrator":    handler.orchestrator.GetStats(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	if healthErr != "" {
		payload["health_error"] = healthErr
	}

	c.JSON(http.StatusOK, payload)
}
