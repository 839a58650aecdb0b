package models

import (
	"time"

	"github.com/google/uuid"
)

type AnalyzeRequest struct {
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Scenario    string `json:"scenario" binding:"required"`
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

type ScenarioConfig struct {
	Name             string    `json:"name"`
	DemandMultiplier float64   `json:"demand_multiplier"`
	CostMultiplier   float64   `json:"cost_multiplier"`
	RiskLevel        RiskLevel `json:"risk_level"`
}

type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type StepStatus string

const (
	StepStatusSuccess StepStatus = "SUCCESS"
	StepStatusFailure StepStatus = "FAILURE"
)

// Step names used across the tracker, execution log and metrics.
const (
	StepDemand      = "demand"
	StepRoute       = "route"
	StepCost        = "cost"
	StepRisk        = "risk"
	StepCoordinator = "coordinator"
)

type ExecutionLogEntry struct {
	Step            string     `json:"step"`
	Status          StepStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	DataSummary     string     `json:"data_summary,omitempty"`
}

type DemandResult struct {
	ForecastValue float64 `json:"forecast_value"`
	BaselineValue float64 `json:"baseline_value"`
	Method        string  `json:"method"`
}

type RouteResult struct {
	Path       []string `json:"path"`
	DistanceKm float64  `json:"distance_km"`
	Duration   string   `json:"duration"`
	Source     string   `json:"source"`
}

type VendorQuote struct {
	Vendor           string  `json:"vendor"`
	TotalCost        float64 `json:"total_cost"`
	CostPerKm        float64 `json:"cost_per_km"`
	EmissionPerKm    float64 `json:"emission_per_km"`
	ReliabilityScore float64 `json:"reliability_score"`
	ServiceQuality   float64 `json:"service_quality"`
	DeliverySpeed    string  `json:"delivery_speed"`
	CompositeScore   float64 `json:"composite_score"`
	Rank             int     `json:"rank"`
}

type CostResult struct {
	Vendors       []VendorQuote `json:"vendors"`
	BestVendor    string        `json:"best_vendor"`
	BestPrice     float64       `json:"best_price"`
	OriginalPrice float64       `json:"original_price"`
}

type RiskResult struct {
	Condition   string    `json:"condition"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Temperature string    `json:"temp"`
	Humidity    string    `json:"humidity,omitempty"`
	Wind        string    `json:"wind,omitempty"`
	Source      string    `json:"source"`
	Notes       string    `json:"notes,omitempty"`
}

// AnalysisResults bundles the four analysis outputs once fallbacks have been
// applied, so every field is always populated.
type AnalysisResults struct {
	Demand DemandResult `json:"demand"`
	Route  RouteResult  `json:"route"`
	Cost   CostResult   `json:"cost"`
	Risk   RiskResult   `json:"risk"`
}

type SuccessRates struct {
	Demand bool `json:"demand"`
	Route  bool `json:"route"`
	Cost   bool `json:"cost"`
	Risk   bool `json:"risk"`
}

type ExecutionMetadata struct {
	TotalTimeSeconds float64             `json:"total_time_seconds"`
	SuccessRates     SuccessRates        `json:"success_rates"`
	ExecutionLog     []ExecutionLogEntry `json:"execution_log"`
	Timestamp        string              `json:"timestamp"`
}

type ConfidenceAssessment struct {
	Score            string          `json:"score"`
	Level            string          `json:"level"`
	ComponentSuccess map[string]bool `json:"component_success,omitempty"`
}

type AnalyzeResponse struct {
	AnalysisID                string               `json:"analysis_id"`
	Forecast                  float64              `json:"forecast"`
	ForecastOriginal          float64              `json:"forecast_original"`
	ScenarioApplied           string               `json:"scenario_applied"`
	RouteInfo                 RouteResult          `json:"route_info"`
	BestVendor                string               `json:"best_vendor"`
	BestPrice                 float64              `json:"best_price"`
	OriginalPrice             float64              `json:"original_price"`
	AllVendors                []VendorQuote        `json:"all_vendors"`
	Risk                      RiskResult           `json:"risk"`
	CrewReasoning             string               `json:"crew_reasoning"`
	ExecutionMetadata         ExecutionMetadata    `json:"execution_metadata"`
	RecommendationsConfidence ConfidenceAssessment `json:"recommendations_confidence"`
}

func GenerateAnalysisID() string {
	return uuid.New().String()
}
