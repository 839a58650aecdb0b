package services_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"supplyflow-backend/internal/agents"
	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
	"supplyflow-backend/internal/services"
)

type mockDemand struct {
	calls  int32
	result models.DemandResult
	err    error
}

func (m *mockDemand) Forecast(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.DemandResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.result, m.err
}

type mockRoute struct {
	calls  int32
	result models.RouteResult
	err    error
}

func (m *mockRoute) GetBestRoute(ctx context.Context, req models.AnalyzeRequest) (models.RouteResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.result, m.err
}

type mockCost struct {
	calls  int32
	result models.CostResult
	err    error
}

func (m *mockCost) Compare(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.CostResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.result, m.err
}

type mockRisk struct {
	calls  int32
	result models.RiskResult
	err    error
}

func (m *mockRisk) CheckWeather(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.RiskResult, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.result, m.err
}

type mockNarrative struct {
	enabled bool
	calls   int32
	text    string
	err     error
}

func (m *mockNarrative) Enabled() bool { return m.enabled }

func (m *mockNarrative) GenerateNarrative(ctx context.Context, req models.AnalyzeRequest, results models.AnalysisResults) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.text, m.err
}

func (m *mockNarrative) HealthCheck(ctx context.Context) error { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return log
}

func healthyMocks() (*mockDemand, *mockRoute, *mockCost, *mockRisk) {
	demand := &mockDemand{result: models.DemandResult{ForecastValue: 120, BaselineValue: 100, Method: "moving_average"}}
	route := &mockRoute{result: models.RouteResult{
		Path: []string{"Mumbai", "Delhi"}, DistanceKm: 1400, Duration: "31 hours 7 mins", Source: "Google Maps API",
	}}
	cost := &mockCost{result: models.CostResult{
		Vendors: []models.VendorQuote{
			{Vendor: "RailLink Express", TotalCost: 2940, CompositeScore: 8.9, Rank: 1},
			{Vendor: "GreenShip Co", TotalCost: 4480, CompositeScore: 8.1, Rank: 2},
		},
		BestVendor: "RailLink Express", BestPrice: 2940, OriginalPrice: 2940,
	}}
	risk := &mockRisk{result: models.RiskResult{
		Condition: "Clear", RiskLevel: models.RiskLevelLow, Temperature: "28.0°C", Source: "Weather API",
	}}
	return demand, route, cost, risk
}

func newTestOrchestrator(t *testing.T, demand services.DemandAnalyzer, route services.RouteEstimator,
	cost services.CostAnalyzer, risk services.RiskAssessor, narrative services.NarrativeGenerator,
	enableCoordinator bool) *services.Orchestrator {
	t.Helper()
	return services.NewOrchestrator(
		config.NewRegistry(),
		demand, route, cost, risk, narrative, nil,
		config.AnalysisConfig{StepTimeout: 5 * time.Second, EnableCoordinator: enableCoordinator},
		testLogger(t),
	)
}

func validRequest() *models.AnalyzeRequest {
	return &models.AnalyzeRequest{Origin: "Mumbai", Destination: "Delhi", Scenario: "Normal Operations"}
}

func TestAnalyzeAllSuccess(t *testing.T) {
	demand, route, cost, risk := healthyMocks()
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, nil, false)

	response, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	log := response.ExecutionMetadata.ExecutionLog
	if len(log) != 4 {
		t.Fatalf("Expected 4 log entries, got %d", len(log))
	}

	wantOrder := []string{models.StepDemand, models.StepRoute, models.StepCost, models.StepRisk}
	for i, step := range wantOrder {
		if log[i].Step != step {
			t.Errorf("Expected log entry %d to be %s, got %s", i, step, log[i].Step)
		}
		if log[i].Status != models.StepStatusSuccess {
			t.Errorf("Expected entry %s SUCCESS, got %s", step, log[i].Status)
		}
	}

	if response.RecommendationsConfidence.Level != services.ConfidenceHigh {
		t.Errorf("Expected High confidence, got %s", response.RecommendationsConfidence.Level)
	}
	if response.RecommendationsConfidence.Score != "100%" {
		t.Errorf("Expected score 100%%, got %s", response.RecommendationsConfidence.Score)
	}
	if response.ScenarioApplied != "Normal Operations" {
		t.Errorf("Expected scenario Normal Operations, got %s", response.ScenarioApplied)
	}
	if response.BestVendor != response.AllVendors[0].Vendor {
		t.Errorf("Expected best_vendor to match all_vendors[0], got %s vs %s",
			response.BestVendor, response.AllVendors[0].Vendor)
	}
	if response.BestPrice != response.AllVendors[0].TotalCost {
		t.Errorf("Expected best_price to match all_vendors[0], got %f vs %f",
			response.BestPrice, response.AllVendors[0].TotalCost)
	}
	if response.CrewReasoning == "" {
		t.Error("Expected non-empty crew_reasoning even without a coordinator")
	}
	sr := response.ExecutionMetadata.SuccessRates
	if !sr.Demand || !sr.Route || !sr.Cost || !sr.Risk {
		t.Errorf("Expected all success rates true, got %+v", sr)
	}
}

func TestAnalyzeRouteFailureUsesFallback(t *testing.T) {
	demand, _, cost, risk := healthyMocks()
	route := &mockRoute{err: errors.New("maps API exploded")}
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, nil, false)

	response, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Expected route failure to be absorbed, got %v", err)
	}

	if response.RouteInfo.Source != agents.RouteSourceFallback {
		t.Errorf("Expected fallback route source, got %s", response.RouteInfo.Source)
	}
	if response.RouteInfo.DistanceKm <= 0 {
		t.Errorf("Expected positive fallback distance, got %f", response.RouteInfo.DistanceKm)
	}
	if response.RouteInfo.Duration == "" {
		t.Error("Expected non-empty fallback duration")
	}

	routeEntry := response.ExecutionMetadata.ExecutionLog[1]
	if routeEntry.Step != models.StepRoute {
		t.Fatalf("Expected route entry at position 1, got %s", routeEntry.Step)
	}
	if routeEntry.Status != models.StepStatusFailure {
		t.Errorf("Expected route FAILURE entry, got %s", routeEntry.Status)
	}

	sr := response.ExecutionMetadata.SuccessRates
	if sr.Route {
		t.Error("Expected route success rate false")
	}
	if !sr.Demand || !sr.Cost || !sr.Risk {
		t.Errorf("Expected only route to fail, got %+v", sr)
	}

	if response.RecommendationsConfidence.Score != "75%" {
		t.Errorf("Expected score 75%%, got %s", response.RecommendationsConfidence.Score)
	}
	if response.RecommendationsConfidence.Level != services.ConfidenceHigh {
		t.Errorf("Expected 3/4 to stay High, got %s", response.RecommendationsConfidence.Level)
	}
}

func TestAnalyzeValidationRunsNoSteps(t *testing.T) {
	cases := []struct {
		name     string
		request  models.AnalyzeRequest
		wantCode string
	}{
		{"same origin and destination", models.AnalyzeRequest{Origin: "Mumbai", Destination: "mumbai", Scenario: "Normal Operations"}, "SAME_ORIGIN_DESTINATION"},
		{"unknown origin", models.AnalyzeRequest{Origin: "Atlantis", Destination: "Delhi", Scenario: "Normal Operations"}, "UNKNOWN_ORIGIN"},
		{"unknown destination", models.AnalyzeRequest{Origin: "Mumbai", Destination: "Gotham", Scenario: "Normal Operations"}, "UNKNOWN_DESTINATION"},
		{"unknown scenario", models.AnalyzeRequest{Origin: "Mumbai", Destination: "Delhi", Scenario: "Alien Invasion"}, "UNKNOWN_SCENARIO"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			demand, route, cost, risk := healthyMocks()
			narrative := &mockNarrative{enabled: true, text: "should not be called"}
			orchestrator := newTestOrchestrator(t, demand, route, cost, risk, narrative, true)

			response, err := orchestrator.Analyze(context.Background(), &tc.request)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if response != nil {
				t.Error("Expected nil response on validation failure")
			}
			if !models.IsValidationError(err) {
				t.Errorf("Expected a validation error, got %v", err)
			}
			if code := models.ErrorCode(err); code != tc.wantCode {
				t.Errorf("Expected code %s, got %s", tc.wantCode, code)
			}

			totalCalls := demand.calls + route.calls + cost.calls + risk.calls + narrative.calls
			if totalCalls != 0 {
				t.Errorf("Expected zero analysis calls, got %d", totalCalls)
			}
		})
	}
}

func TestAnalyzeIdempotence(t *testing.T) {
	demand, route, cost, risk := healthyMocks()
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, nil, false)

	first, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("First analysis failed: %v", err)
	}
	second, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Second analysis failed: %v", err)
	}

	if first.Forecast != second.Forecast {
		t.Errorf("Expected identical forecasts, got %f vs %f", first.Forecast, second.Forecast)
	}
	if first.RouteInfo.DistanceKm != second.RouteInfo.DistanceKm || first.RouteInfo.Source != second.RouteInfo.Source {
		t.Errorf("Expected identical route info, got %+v vs %+v", first.RouteInfo, second.RouteInfo)
	}
	if first.BestVendor != second.BestVendor || first.BestPrice != second.BestPrice {
		t.Errorf("Expected identical vendor selection, got %s/%f vs %s/%f",
			first.BestVendor, first.BestPrice, second.BestVendor, second.BestPrice)
	}
	if first.Risk.RiskLevel != second.Risk.RiskLevel || first.Risk.Condition != second.Risk.Condition {
		t.Errorf("Expected identical risk, got %+v vs %+v", first.Risk, second.Risk)
	}
}

func TestAnalyzeCoordinatorSuccess(t *testing.T) {
	demand, route, cost, risk := healthyMocks()
	narrative := &mockNarrative{enabled: true, text: "## Strategic plan: book RailLink Express."}
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, narrative, true)

	response, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	log := response.ExecutionMetadata.ExecutionLog
	if len(log) != 5 {
		t.Fatalf("Expected 5 log entries with coordinator, got %d", len(log))
	}
	if log[4].Step != models.StepCoordinator {
		t.Errorf("Expected coordinator entry last, got %s", log[4].Step)
	}
	if log[4].Status != models.StepStatusSuccess {
		t.Errorf("Expected coordinator SUCCESS, got %s", log[4].Status)
	}
	if response.CrewReasoning != narrative.text {
		t.Errorf("Expected generated narrative in crew_reasoning, got %q", response.CrewReasoning)
	}
	if response.RecommendationsConfidence.Score != "100%" {
		t.Errorf("Expected score 100%%, got %s", response.RecommendationsConfidence.Score)
	}
}

func TestAnalyzeCoordinatorFailureFallsBack(t *testing.T) {
	demand, route, cost, risk := healthyMocks()
	narrative := &mockNarrative{enabled: true, err: errors.New("gemini quota exhausted")}
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, narrative, true)

	response, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Expected coordinator failure to be absorbed, got %v", err)
	}

	log := response.ExecutionMetadata.ExecutionLog
	if len(log) != 5 {
		t.Fatalf("Expected 5 log entries, got %d", len(log))
	}
	if log[4].Step != models.StepCoordinator || log[4].Status != models.StepStatusFailure {
		t.Errorf("Expected coordinator FAILURE entry last, got %s/%s", log[4].Step, log[4].Status)
	}

	if response.CrewReasoning == "" {
		t.Fatal("Expected fallback narrative, got empty crew_reasoning")
	}
	if !strings.Contains(response.CrewReasoning, "STRATEGIC SUPPLY CHAIN ANALYSIS") {
		t.Errorf("Expected templated fallback narrative, got %q", response.CrewReasoning)
	}

	// 4 of 5 steps succeeded.
	if response.RecommendationsConfidence.Score != "80%" {
		t.Errorf("Expected score 80%%, got %s", response.RecommendationsConfidence.Score)
	}
	if response.RecommendationsConfidence.Level != services.ConfidenceHigh {
		t.Errorf("Expected High, got %s", response.RecommendationsConfidence.Level)
	}
}

func TestAnalyzeEndToEndWithRealAgents(t *testing.T) {
	registry := config.NewRegistry()
	log := testLogger(t)

	// No API keys configured: route and risk resolve through their internal
	// fallbacks, which still count as successful steps.
	orchestrator := services.NewOrchestrator(
		registry,
		agents.NewDemandAgent(log),
		agents.NewRouteAgent(config.MapsConfig{Timeout: time.Second}, registry, log),
		agents.NewCostAgent(registry, log),
		agents.NewRiskAgent(config.WeatherConfig{Timeout: time.Second}, log),
		nil, nil,
		config.AnalysisConfig{StepTimeout: 5 * time.Second},
		log,
	)

	response, err := orchestrator.Analyze(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if response.ScenarioApplied != "Normal Operations" {
		t.Errorf("Expected scenario_applied Normal Operations, got %s", response.ScenarioApplied)
	}
	if response.Forecast <= 0 {
		t.Errorf("Expected positive forecast, got %f", response.Forecast)
	}
	path := response.RouteInfo.Path
	if len(path) < 2 || path[0] != "Mumbai" || path[len(path)-1] != "Delhi" {
		t.Errorf("Expected path Mumbai..Delhi, got %v", path)
	}
	if response.RouteInfo.DistanceKm != 1400 {
		t.Errorf("Expected matrix distance 1400, got %f", response.RouteInfo.DistanceKm)
	}
	score := response.RecommendationsConfidence.Score
	if !strings.HasSuffix(score, "%") || len(score) < 2 {
		t.Errorf("Expected well-formed percentage string, got %q", score)
	}

	for i := 1; i < len(response.AllVendors); i++ {
		if response.AllVendors[i].CompositeScore > response.AllVendors[i-1].CompositeScore {
			t.Errorf("Expected vendors in descending composite order, position %d breaks it", i)
		}
	}
}

func TestOrchestratorStats(t *testing.T) {
	demand, route, cost, risk := healthyMocks()
	orchestrator := newTestOrchestrator(t, demand, route, cost, risk, nil, false)

	stats := orchestrator.GetStats()
	if stats["service"] != "orchestrator" {
		t.Errorf("Expected service orchestrator, got %v", stats["service"])
	}
	if stats["active_analyses"] != 0 {
		t.Errorf("Expected zero active analyses, got %v", stats["active_analyses"])
	}
}
