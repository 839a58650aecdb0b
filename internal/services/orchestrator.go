package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supplyflow-backend/internal/agents"
	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/metrics"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

// Collaborator contracts. The orchestrator owns the failure boundary: any
// error returned by an analyzer is downgraded to its documented fallback,
// only validation errors terminate a request.

type DemandAnalyzer interface {
	Forecast(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.DemandResult, error)
}

type RouteEstimator interface {
	GetBestRoute(ctx context.Context, req models.AnalyzeRequest) (models.RouteResult, error)
}

type CostAnalyzer interface {
	Compare(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.CostResult, error)
}

type RiskAssessor interface {
	CheckWeather(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.RiskResult, error)
}

type NarrativeGenerator interface {
	Enabled() bool
	GenerateNarrative(ctx context.Context, req models.AnalyzeRequest, results models.AnalysisResults) (string, error)
	HealthCheck(ctx context.Context) error
}

// AnalysisStore is the best-effort persistence surface. A nil store is valid.
type AnalysisStore interface {
	StoreAnalysisResult(ctx context.Context, analysisID string, response *models.AnalyzeResponse) error
	PublishStepUpdate(ctx context.Context, analysisID string, entry models.ExecutionLogEntry) error
	HealthCheck(ctx context.Context) error
}

// Fallback constructors, injectable so tests can pin them.
type fallbackSet struct {
	demand func(models.ScenarioConfig) models.DemandResult
	route  func(*config.Registry, models.AnalyzeRequest) models.RouteResult
	cost   func(*config.Registry, models.AnalyzeRequest, models.ScenarioConfig) models.CostResult
	risk   func(models.ScenarioConfig, time.Time) models.RiskResult
}

type Orchestrator struct {
	registry  *config.Registry
	demand    DemandAnalyzer
	route     RouteEstimator
	cost      CostAnalyzer
	risk      RiskAssessor
	narrative NarrativeGenerator
	store     AnalysisStore

	config    config.AnalysisConfig
	logger    *logger.Logger
	tracker   *StepTracker
	metrics   *metrics.Metrics
	fallbacks fallbackSet

	activeAnalyses sync.Map // analysis_id -> *models.AnalyzeRequest
	startTime      time.Time
}

func NewOrchestrator(
	registry *config.Registry,
	demand DemandAnalyzer,
	route RouteEstimator,
	cost CostAnalyzer,
	risk RiskAssessor,
	narrative NarrativeGenerator,
	store AnalysisStore,
	cfg config.AnalysisConfig,
	log *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		registry:  registry,
		demand:    demand,
		route:     route,
		cost:      cost,
		risk:      risk,
		narrative: narrative,
		store:     store,
		config:    cfg,
		logger:    log,
		tracker:   NewStepTracker(),
		fallbacks: defaultFallbacks(),
		startTime: time.Now(),
	}

	log.Info("Orchestrator Initialized Successfully",
		"steps", []string{models.StepDemand, models.StepRoute, models.StepCost, models.StepRisk},
		"coordinator_enabled", cfg.EnableCoordinator,
		"step_timeout", cfg.StepTimeout)

	return orchestrator
}

func defaultFallbacks() fallbackSet {
	return fallbackSet{
		demand: agents.FallbackDemandResult,
		route:  agents.FallbackRouteResult,
		cost:   agents.FallbackCostResult,
		risk:   agents.FallbackRiskResult,
	}
}

// SetMetrics attaches a metrics recorder. Nil disables recording.
func (orchestrator *Orchestrator) SetMetrics(m *metrics.Metrics) {
	orchestrator.metrics = m
}

// stepResult is what one tracked analysis goroutine produces.
type stepResult struct {
	entry   models.ExecutionLogEntry
	success bool
}

func (orchestrator *Orchestrator) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	startTime := time.Now()
	analysisID := models.GenerateAnalysisID()

	scenario, err := orchestrator.validate(req)
	if err != nil {
		orchestrator.metrics.RecordAnalysis(metrics.StatusRejected, 0)
		orchestrator.logger.LogAnalysis(analysisID, "analysis_rejected", time.Since(startTime), err)
		return nil, err
	}

	orchestrator.activeAnalyses.Store(analysisID, req)
	defer orchestrator.activeAnalyses.Delete(analysisID)

	orchestrator.logger.LogAnalysis(analysisID, "analysis_started", 0, nil)

	var (
		results models.AnalysisResults
		steps   [4]stepResult
		wg      sync.WaitGroup
	)

	// The four analyses are independent: fan out, apply fallbacks in place,
	// then reassemble the log in the fixed display order.
	wg.Add(4)

	go func() {
		defer wg.Done()
		steps[0] = orchestrator.runStep(ctx, models.StepDemand, func(stepCtx context.Context) (string, error) {
			demand, err := orchestrator.demand.Forecast(stepCtx, *req, scenario)
			if err != nil {
				return "", err
			}
			results.Demand = demand
			return fmt.Sprintf("forecast=%.1f baseline=%.1f method=%s", demand.ForecastValue, demand.BaselineValue, demand.Method), nil
		})
		if !steps[0].success {
			results.Demand = orchestrator.fallbacks.demand(scenario)
		}
	}()

	go func() {
		defer wg.Done()
		steps[1] = orchestrator.runStep(ctx, models.StepRoute, func(stepCtx context.Context) (string, error) {
			route, err := orchestrator.route.GetBestRoute(stepCtx, *req)
			if err != nil {
				return "", err
			}
			results.Route = route
			return fmt.Sprintf("distance_km=%.1f duration=%s source=%s", route.DistanceKm, route.Duration, route.Source), nil
		})
		if !steps[1].success {
			results.Route = orchestrator.fallbacks.route(orchestrator.registry, *req)
		}
	}()

	go func() {
		defer wg.Done()
		steps[2] = orchestrator.runStep(ctx, models.StepCost, func(stepCtx context.Context) (string, error) {
			cost, err := orchestrator.cost.Compare(stepCtx, *req, scenario)
			if err != nil {
				return "", err
			}
			results.Cost = cost
			return fmt.Sprintf("best_vendor=%s best_price=%.2f vendors=%d", cost.BestVendor, cost.BestPrice, len(cost.Vendors)), nil
		})
		if !steps[2].success {
			results.Cost = orchestrator.fallbacks.cost(orchestrator.registry, *req, scenario)
		}
	}()

	go func() {
		defer wg.Done()
		steps[3] = orchestrator.runStep(ctx, models.StepRisk, func(stepCtx context.Context) (string, error) {
			risk, err := orchestrator.risk.CheckWeather(stepCtx, *req, scenario)
			if err != nil {
				return "", err
			}
			results.Risk = risk
			return fmt.Sprintf("condition=%s risk_level=%s source=%s", risk.Condition, risk.RiskLevel, risk.Source), nil
		})
		if !steps[3].success {
			results.Risk = orchestrator.fallbacks.risk(scenario, time.Now())
		}
	}()

	wg.Wait()

	executionLog := []models.ExecutionLogEntry{
		steps[0].entry, steps[1].entry, steps[2].entry, steps[3].entry,
	}

	outcomes := map[string]bool{
		models.StepDemand: steps[0].success,
		models.StepRoute:  steps[1].success,
		models.StepCost:   steps[2].success,
		models.StepRisk:   steps[3].success,
	}

	narrative := ""
	if orchestrator.coordinatorEnabled() {
		entry, success := orchestrator.runCoordinator(ctx, *req, results, &narrative)
		executionLog = append(executionLog, entry)
		outcomes[models.StepCoordinator] = success
	}
	if narrative == "" {
		narrative = BuildFallbackNarrative(*req, results)
	}

	confidence := ScoreConfidence(outcomes)
	totalTime := time.Since(startTime)

	response := &models.AnalyzeResponse{
		AnalysisID:       analysisID,
		Forecast:         results.Demand.ForecastValue,
		ForecastOriginal: results.Demand.BaselineValue,
		ScenarioApplied:  scenario.Name,
		RouteInfo:        results.Route,
		BestVendor:       results.Cost.BestVendor,
		BestPrice:        results.Cost.BestPrice,
		OriginalPrice:    results.Cost.OriginalPrice,
		AllVendors:       results.Cost.Vendors,
		Risk:             results.Risk,
		CrewReasoning:    narrative,
		ExecutionMetadata: models.ExecutionMetadata{
			TotalTimeSeconds: totalTime.Seconds(),
			SuccessRates: models.SuccessRates{
				Demand: steps[0].success,
				Route:  steps[1].success,
				Cost:   steps[2].success,
				Risk:   steps[3].success,
			},
			ExecutionLog: executionLog,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		},
		RecommendationsConfidence: confidence,
	}

	orchestrator.recordOutcome(executionLog, outcomes, totalTime)
	orchestrator.persistBestEffort(ctx, analysisID, response, executionLog)

	orchestrator.logger.LogAnalysis(analysisID, "analysis_completed", totalTime, nil)

	return response, nil
}

// runStep executes one analysis under its own timeout and tracks it. The
// returned entry is always populated, success mirrors the tracked error.
func (orchestrator *Orchestrator) runStep(ctx context.Context, step string, fn func(context.Context) (string, error)) stepResult {
	stepCtx := ctx
	var cancel context.CancelFunc
	if orchestrator.config.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, orchestrator.config.StepTimeout)
		defer cancel()
	}

	entry, err := orchestrator.tracker.Track(step, func() (string, error) {
		return fn(stepCtx)
	})

	if err != nil {
		orchestrator.logger.LogAgent("", step, "analysis_step", time.Duration(entry.DurationSeconds*float64(time.Second)), nil, err)
	}

	return stepResult{entry: entry, success: err == nil}
}

func (orchestrator *Orchestrator) coordinatorEnabled() bool {
	return orchestrator.config.EnableCoordinator && orchestrator.narrative != nil && orchestrator.narrative.Enabled()
}

func (orchestrator *Orchestrator) runCoordinator(ctx context.Context, req models.AnalyzeRequest, results models.AnalysisResults, narrative *string) (models.ExecutionLogEntry, bool) {
	result := orchestrator.runStep(ctx, models.StepCoordinator, func(stepCtx context.Context) (string, error) {
		text, err := orchestrator.narrative.GenerateNarrative(stepCtx, req, results)
		if err != nil {
			return "", err
		}
		*narrative = text
		return fmt.Sprintf("narrative_length=%d", len(text)), nil
	})
	return result.entry, result.success
}

func (orchestrator *Orchestrator) validate(req *models.AnalyzeRequest) (models.ScenarioConfig, error) {
	if _, ok := orchestrator.registry.City(req.Origin); !ok {
		return models.ScenarioConfig{}, models.NewValidationError("UNKNOWN_ORIGIN", "Origin is not a supported city").
			WithMetadata("origin", req.Origin)
	}

	if _, ok := orchestrator.registry.City(req.Destination); !ok {
		return models.ScenarioConfig{}, models.NewValidationError("UNKNOWN_DESTINATION", "Destination is not a supported city").
			WithMetadata("destination", req.Destination)
	}

	origin, _ := orchestrator.registry.City(req.Origin)
	destination, _ := orchestrator.registry.City(req.Destination)
	if origin.Name == destination.Name {
		return models.ScenarioConfig{}, models.NewValidationError("SAME_ORIGIN_DESTINATION", "Origin and destination must differ").
			WithMetadata("origin", req.Origin)
	}

	scenario, ok := orchestrator.registry.Scenario(req.Scenario)
	if !ok {
		return models.ScenarioConfig{}, models.NewValidationError("UNKNOWN_SCENARIO", "Scenario is not supported").
			WithMetadata("scenario", req.Scenario)
	}

	return scenario, nil
}

func (orchestrator *Orchestrator) recordOutcome(executionLog []models.ExecutionLogEntry, outcomes map[string]bool, totalTime time.Duration) {
	status := metrics.StatusCompleted
	for _, entry := range executionLog {
		orchestrator.metrics.RecordStep(entry.Step, entry.DurationSeconds, outcomes[entry.Step])
		if entry.Status == models.StepStatusFailure {
			status = metrics.StatusDegraded
		}
	}
	orchestrator.metrics.RecordAnalysis(status, totalTime.Seconds())
}

func (orchestrator *Orchestrator) persistBestEffort(ctx context.Context, analysisID string, response *models.AnalyzeResponse, executionLog []models.ExecutionLogEntry) {
	if orchestrator.store == nil {
		return
	}

	for _, entry := range executionLog {
		if err := orchestrator.store.PublishStepUpdate(ctx, analysisID, entry); err != nil {
			orchestrator.logger.WithError(err).WithField("step", entry.Step).Warn("Failed to publish step update")
		}
	}

	if err := orchestrator.store.StoreAnalysisResult(ctx, analysisID, response); err != nil {
		orchestrator.logger.WithError(err).WithField("analysis_id", analysisID).Warn("Failed to store analysis result")
	}
}

func (orchestrator *Orchestrator) GetActiveAnalysesCount() int {
	count := 0
	orchestrator.activeAnalyses.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	checks := map[string]func() error{}

	if orchestrator.store != nil {
		checks["redis"] = func() error { return orchestrator.store.HealthCheck(ctx) }
	}
	if orchestrator.narrative != nil {
		checks["coordinator"] = func() error { return orchestrator.narrative.HealthCheck(ctx) }
	}

	for name, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("service %s health check failed: %w", name, err)
		}
	}

	return nil
}

func (orchestrator *Orchestrator) GetStats() map[string]interface{} {
	uptime := time.Since(orchestrator.startTime)

	return map[string]interface{}{
		"service":             "orchestrator",
		"uptime_seconds":      uptime.Seconds(),
		"active_analyses":     orchestrator.GetActiveAnalysesCount(),
		"coordinator_enabled": orchestrator.coordinatorEnabled(),
		"step_timeout":        orchestrator.config.StepTimeout.String(),
		"steps":               []string{models.StepDemand, models.StepRoute, models.StepCost, models.StepRisk},
	}
}

func (orchestrator *Orchestrator) Close() error {
	orchestrator.logger.Info("Orchestrator shutting down")

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			if active := orchestrator.GetActiveAnalysesCount(); active > 0 {
				orchestrator.logger.Warn("Timeout waiting for analyses to complete", "active_analyses", active)
			}
			return nil
		case <-ticker.C:
			if orchestrator.GetActiveAnalysesCount() == 0 {
				orchestrator.logger.Info("All analyses completed, orchestrator closed")
				return nil
			}
		}
	}
}
