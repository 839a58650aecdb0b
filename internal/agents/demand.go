package agents

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"

	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

const (
	historyDays         = 90
	movingAverageWindow = 7

	// DefaultBaselineOrders anchors the synthetic history and the fallback
	// forecast when no history can be built at all.
	DefaultBaselineOrders = 100.0
)

// Forecast method names reported in DemandResult.Method.
const (
	MethodMovingAverage = "moving_average"
	MethodLinearTrend   = "linear_trend"
	MethodFallback      = "fallback"
)

// DemandAgent produces a demand forecast for a lane from a deterministic
// synthetic order history. The history is seeded by the lane so repeated
// requests forecast identical values.
type DemandAgent struct {
	logger *logger.Logger
}

func NewDemandAgent(log *logger.Logger) *DemandAgent {
	return &DemandAgent{logger: log}
}

func (agent *DemandAgent) Forecast(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.DemandResult, error) {
	if err := ctx.Err(); err != nil {
		return models.DemandResult{}, models.NewTimeoutError("DEMAND_CANCELLED", "Demand forecast cancelled").WithCause(err)
	}

	history := buildOrderHistory(req.Origin, req.Destination)
	baseline := mean(history)

	value, method := movingAverageForecast(history)
	if math.IsNaN(value) || value <= 0 {
		value, method = linearTrendForecast(history)
	}
	if math.IsNaN(value) || value <= 0 {
		return models.DemandResult{}, models.NewInternalError("DEMAND_NO_METHOD", "No forecast method produced a usable value").
			WithMetadata("origin", req.Origin).
			WithMetadata("destination", req.Destination)
	}

	result := models.DemandResult{
		ForecastValue: round1(value * scenario.DemandMultiplier),
		BaselineValue: round1(baseline),
		Method:        method,
	}

	agent.logger.LogAgent("", "demand", "forecast", 0, map[string]interface{}{
		"forecast": result.ForecastValue,
		"baseline": result.BaselineValue,
		"method":   result.Method,
	}, nil)

	return result, nil
}

// FallbackDemandResult is the documented demand fallback: the default baseline
// scaled by the scenario multiplier.
func FallbackDemandResult(scenario models.ScenarioConfig) models.DemandResult {
	return models.DemandResult{
		ForecastValue: round1(DefaultBaselineOrders * scenario.DemandMultiplier),
		BaselineValue: DefaultBaselineOrders,
		Method:        MethodFallback,
	}
}

// buildOrderHistory synthesizes a daily order series with yearly and weekly
// seasonality plus lane-seeded noise.
func buildOrderHistory(origin, destination string) []float64 {
	rng := rand.New(rand.NewSource(laneSeed(origin, destination)))

	history := make([]float64, historyDays)
	for day := range history {
		yearly := 15 * math.Sin(2*math.Pi*float64(day)/365)
		weekly := 10 * math.Sin(2*math.Pi*float64(day)/7)
		noise := rng.NormFloat64() * 5
		history[day] = math.Max(1, DefaultBaselineOrders+yearly+weekly+noise)
	}
	return history
}

func laneSeed(origin, destination string) int64 {
	hash := fnv.New64a()
	hash.Write([]byte(origin))
	hash.Write([]byte{0})
	hash.Write([]byte(destination))
	return int64(hash.Sum64())
}

// movingAverageForecast averages the trailing window and nudges it by the
// recent trend inside that window.
func movingAverageForecast(history []float64) (float64, string) {
	if len(history) < movingAverageWindow {
		return math.NaN(), MethodMovingAverage
	}

	window := history[len(history)-movingAverageWindow:]
	avg := mean(window)
	trend := (window[len(window)-1] - window[0]) / float64(len(window)-1)

	return avg + trend, MethodMovingAverage
}

// linearTrendForecast fits a least-squares line over the full history and
// extrapolates one step ahead.
func linearTrendForecast(history []float64) (float64, string) {
	n := float64(len(history))
	if n < 2 {
		return math.NaN(), MethodLinearTrend
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return math.NaN(), MethodLinearTrend
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	return intercept + slope*n, MethodLinearTrend
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
