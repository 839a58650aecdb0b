package agents

import (
	"context"
	"math"
	"sort"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

// Balanced composite weights over cost, service, eco and reliability scores.
const (
	weightCost        = 0.3
	weightService     = 0.25
	weightEco         = 0.25
	weightReliability = 0.2
)

// fallbackCostPerKm is the premium rate charged by the emergency vendor.
const fallbackCostPerKm = 3.5

type vendorProfile struct {
	name             string
	costPerKm        float64
	emissionPerKm    float64
	reliabilityScore float64
	serviceQuality   float64
	deliverySpeed    string
}

var vendorTable = []vendorProfile{
	{"LogiTech Express", 2.5, 0.8, 8.5, 8.0, "Standard"},
	{"GreenShip Co", 3.2, 0.3, 9.2, 9.0, "Eco"},
	{"FastTrack Logistics", 2.8, 0.6, 7.8, 7.5, "Fast"},
	{"EcoFreight Solutions", 3.5, 0.2, 9.5, 9.2, "Eco+"},
	{"SpeedyDelivery", 2.3, 0.9, 7.2, 6.8, "Express"},
	{"CargoMaster", 2.9, 0.7, 8.1, 8.3, "Standard"},
	{"BlueOcean Shipping", 2.7, 0.4, 8.8, 8.7, "Eco"},
	{"RailLink Express", 2.1, 0.15, 9.0, 8.9, "Rail"},
}

// CostAgent ranks the built-in vendor table for a lane. It derives its own
// distance from the registry so the four analyses stay independent of each
// other's outcomes.
type CostAgent struct {
	registry *config.Registry
	logger   *logger.Logger
}

func NewCostAgent(registry *config.Registry, log *logger.Logger) *CostAgent {
	return &CostAgent{registry: registry, logger: log}
}

func (agent *CostAgent) Compare(ctx context.Context, req models.AnalyzeRequest, scenario models.ScenarioConfig) (models.CostResult, error) {
	if err := ctx.Err(); err != nil {
		return models.CostResult{}, models.NewTimeoutError("COST_CANCELLED", "Cost analysis cancelled").WithCause(err)
	}

	distanceKm, distanceSource := agent.registry.DistanceKm(req.Origin, req.Destination)

	result := rankVendors(vendorTable, distanceKm, scenario.CostMultiplier)
	if len(result.Vendors) == 0 {
		return models.CostResult{}, models.NewInternalError("COST_NO_VENDORS", "Vendor table produced no quotes").
			WithMetadata("distance_km", distanceKm)
	}

	agent.logger.LogAgent("", "cost", "compare_vendors", 0, map[string]interface{}{
		"distance_km":     distanceKm,
		"distance_source": distanceSource,
		"best_vendor":     result.BestVendor,
		"best_price":      result.BestPrice,
		"vendor_count":    len(result.Vendors),
	}, nil)

	return result, nil
}

// rankVendors prices every vendor for the distance, scores them on the
// balanced weighting and orders them by composite score descending. Ties
// break toward the cheaper total.
func rankVendors(profiles []vendorProfile, distanceKm, costMultiplier float64) models.CostResult {
	if len(profiles) == 0 {
		return models.CostResult{}
	}

	costs := make([]float64, len(profiles))
	emissions := make([]float64, len(profiles))
	for i, p := range profiles {
		costs[i] = p.costPerKm * distanceKm
		emissions[i] = p.emissionPerKm * distanceKm
	}

	costEfficiency := invertedScale(costs)
	ecoEfficiency := invertedScale(emissions)

	quotes := make([]models.VendorQuote, len(profiles))
	for i, p := range profiles {
		service := (p.reliabilityScore + p.serviceQuality) / 2
		composite := weightCost*costEfficiency[i] +
			weightService*service +
			weightEco*ecoEfficiency[i] +
			weightReliability*p.reliabilityScore

		quotes[i] = models.VendorQuote{
			Vendor:           p.name,
			TotalCost:        round2(costs[i] * costMultiplier),
			CostPerKm:        p.costPerKm,
			EmissionPerKm:    p.emissionPerKm,
			ReliabilityScore: p.reliabilityScore,
			ServiceQuality:   p.serviceQuality,
			DeliverySpeed:    p.deliverySpeed,
			CompositeScore:   round2(composite),
		}
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].CompositeScore != quotes[j].CompositeScore {
			return quotes[i].CompositeScore > quotes[j].CompositeScore
		}
		return quotes[i].TotalCost < quotes[j].TotalCost
	})
	for i := range quotes {
		quotes[i].Rank = i + 1
	}

	best := quotes[0]
	return models.CostResult{
		Vendors:       quotes,
		BestVendor:    best.Vendor,
		BestPrice:     best.TotalCost,
		OriginalPrice: round2(best.TotalCost / costMultiplier),
	}
}

// FallbackCostResult is the documented cost fallback: a single emergency
// vendor at a premium per-km rate over the registry distance.
func FallbackCostResult(registry *config.Registry, req models.AnalyzeRequest, scenario models.ScenarioConfig) models.CostResult {
	distanceKm, _ := registry.DistanceKm(req.Origin, req.Destination)
	originalCost := round2(fallbackCostPerKm * distanceKm)
	totalCost := round2(originalCost * scenario.CostMultiplier)

	vendor := models.VendorQuote{
		Vendor:           "Emergency Logistics",
		TotalCost:        totalCost,
		CostPerKm:        fallbackCostPerKm,
		EmissionPerKm:    0.8,
		ReliabilityScore: 6.0,
		ServiceQuality:   6.0,
		DeliverySpeed:    "Standard",
		CompositeScore:   6.0,
		Rank:             1,
	}

	return models.CostResult{
		Vendors:       []models.VendorQuote{vendor},
		BestVendor:    vendor.Vendor,
		BestPrice:     vendor.TotalCost,
		OriginalPrice: originalCost,
	}
}

// invertedScale maps values onto 0..10 with the smallest value scoring 10.
func invertedScale(values []float64) []float64 {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	scores := make([]float64, len(values))
	if max == min {
		for i := range scores {
			scores[i] = 10
		}
		return scores
	}
	for i, v := range values {
		scores[i] = (max - v) / (max - min) * 10
	}
	return scores
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
