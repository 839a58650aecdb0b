package services

import (
	"context"
	"strings"
	"testing"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func narrativeInputs() (models.AnalyzeRequest, models.AnalysisResults) {
	req := models.AnalyzeRequest{
		Origin:      "Mumbai",
		Destination: "Delhi",
		Scenario:    "Peak Season Demand",
	}
	results := models.AnalysisResults{
		Demand: models.DemandResult{ForecastValue: 140, BaselineValue: 100, Method: "moving_average"},
		Route:  models.RouteResult{Path: []string{"Mumbai", "Delhi"}, DistanceKm: 1400, Duration: "31 hours 7 mins", Source: "Fallback"},
		Cost: models.CostResult{
			Vendors:    []models.VendorQuote{{Vendor: "RailLink Express", TotalCost: 3234, Rank: 1}},
			BestVendor: "RailLink Express",
			BestPrice:  3234,
		},
		Risk: models.RiskResult{Condition: "Clear", RiskLevel: models.RiskLevelMedium, Source: "Fallback"},
	}
	return req, results
}

func TestBuildFallbackNarrative(t *testing.T) {
	req, results := narrativeInputs()

	narrative := BuildFallbackNarrative(req, results)

	if narrative == "" {
		t.Fatal("Expected non-empty narrative")
	}
	for _, want := range []string{
		"STRATEGIC SUPPLY CHAIN ANALYSIS",
		"EXECUTIVE SUMMARY",
		"RailLink Express",
		"Peak Season Demand",
		"140 order",
		"Delhi",
	} {
		if !strings.Contains(narrative, want) {
			t.Errorf("Expected narrative to contain %q", want)
		}
	}
}

func TestCoordinatorFallbackOnlyMode(t *testing.T) {
	service, err := NewCoordinatorService(config.GeminiConfig{Model: "gemini-2.0-flash"}, testLogger(t))
	if err != nil {
		t.Fatalf("Expected fallback-only construction to succeed, got %v", err)
	}

	if service.Enabled() {
		t.Error("Expected coordinator disabled without an API key")
	}
	if err := service.HealthCheck(context.Background()); err != nil {
		t.Errorf("Expected fallback-only health check to pass, got %v", err)
	}
	req, results := narrativeInputs()
	if _, err := service.GenerateNarrative(context.Background(), req, results); err == nil {
		t.Error("Expected narrative generation to fail in fallback-only mode")
	}
}

func TestBuildNarrativePromptIncludesResults(t *testing.T) {
	req, results := narrativeInputs()

	prompt := buildNarrativePrompt(req, results)

	for _, want := range []string{"Mumbai to Delhi", "moving_average", "RailLink Express", "Medium"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
