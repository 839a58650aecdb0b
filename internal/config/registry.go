package config

import (
	"math"
	"sort"
	"strings"

	"supplyflow-backend/internal/models"
)

// DefaultDistanceKm is the terminal fallback when neither the distance matrix
// nor city coordinates can produce an estimate.
const DefaultDistanceKm = 1200

// roadFactor converts great-circle distance into a road distance estimate.
const roadFactor = 1.25

// Distance sources reported by Registry.DistanceKm.
const (
	DistanceSourceMatrix    = "matrix"
	DistanceSourceHaversine = "haversine"
	DistanceSourceDefault   = "default"
)

// Registry holds the read-only scenario, city and distance data. It is built
// once at startup and shared without locking.
type Registry struct {
	scenarios map[string]models.ScenarioConfig
	cities    map[string]models.City
	distances map[string]float64
}

func NewRegistry() *Registry {
	reg := &Registry{
		scenarios: make(map[string]models.ScenarioConfig),
		cities:    make(map[string]models.City),
		distances: make(map[string]float64),
	}

	for _, sc := range []models.ScenarioConfig{
		{Name: "Normal Operations", DemandMultiplier: 1.0, CostMultiplier: 1.0, RiskLevel: models.RiskLevelLow},
		{Name: "Peak Season Demand", DemandMultiplier: 1.4, CostMultiplier: 1.1, RiskLevel: models.RiskLevelMedium},
		{Name: "Fuel Price Surge", DemandMultiplier: 1.0, CostMultiplier: 1.25, RiskLevel: models.RiskLevelMedium},
		{Name: "Monsoon Disruption", DemandMultiplier: 0.9, CostMultiplier: 1.15, RiskLevel: models.RiskLevelHigh},
		{Name: "Emergency Supply", DemandMultiplier: 1.2, CostMultiplier: 1.3, RiskLevel: models.RiskLevelMedium},
		{Name: "Industrial Strike", DemandMultiplier: 1.0, CostMultiplier: 1.2, RiskLevel: models.RiskLevelHigh},
	} {
		reg.scenarios[normalizeKey(sc.Name)] = sc
	}

	for _, city := range []models.City{
		{Name: "Mumbai", Lat: 19.0760, Lon: 72.8777},
		{Name: "Delhi", Lat: 28.7041, Lon: 77.1025},
		{Name: "Bangalore", Lat: 12.9716, Lon: 77.5946},
		{Name: "Chennai", Lat: 13.0827, Lon: 80.2707},
		{Name: "Kolkata", Lat: 22.5726, Lon: 88.3639},
		{Name: "Hyderabad", Lat: 17.3850, Lon: 78.4867},
		{Name: "Pune", Lat: 18.5204, Lon: 73.8567},
		{Name: "Ahmedabad", Lat: 23.0225, Lon: 72.5714},
		{Name: "Jaipur", Lat: 26.9124, Lon: 75.7873},
		{Name: "Lucknow", Lat: 26.8467, Lon: 80.9462},
		{Name: "Kanpur", Lat: 26.4499, Lon: 80.3319},
		{Name: "Nagpur", Lat: 21.1458, Lon: 79.0882},
		{Name: "Indore", Lat: 22.7196, Lon: 75.8577},
		{Name: "Bhopal", Lat: 23.2599, Lon: 77.4126},
	} {
		reg.cities[normalizeKey(city.Name)] = city
	}

	for pair, km := range map[[2]string]float64{
		{"mumbai", "delhi"}:        1400,
		{"mumbai", "bangalore"}:    980,
		{"mumbai", "chennai"}:      1340,
		{"mumbai", "kolkata"}:      2000,
		{"mumbai", "hyderabad"}:    710,
		{"mumbai", "pune"}:         150,
		{"mumbai", "ahmedabad"}:    530,
		{"delhi", "bangalore"}:     2150,
		{"delhi", "chennai"}:       2180,
		{"delhi", "kolkata"}:       1500,
		{"delhi", "hyderabad"}:     1580,
		{"delhi", "jaipur"}:        280,
		{"delhi", "lucknow"}:       550,
		{"bangalore", "chennai"}:   350,
		{"bangalore", "hyderabad"}: 570,
		{"bangalore", "kolkata"}:   1880,
		{"chennai", "kolkata"}:     1670,
		{"chennai", "hyderabad"}:   630,
	} {
		reg.distances[pairKey(pair[0], pair[1])] = km
	}

	return reg
}

func (r *Registry) Scenario(name string) (models.ScenarioConfig, bool) {
	sc, ok := r.scenarios[normalizeKey(name)]
	return sc, ok
}

func (r *Registry) City(name string) (models.City, bool) {
	city, ok := r.cities[normalizeKey(name)]
	return city, ok
}

// DistanceKm resolves the road distance between two known cities. Lookup order
// is the curated matrix, then a haversine estimate from coordinates, then the
// package default. The returned source names which rung was used.
func (r *Registry) DistanceKm(origin, destination string) (float64, string) {
	if km, ok := r.distances[pairKey(normalizeKey(origin), normalizeKey(destination))]; ok {
		return km, DistanceSourceMatrix
	}

	from, okFrom := r.City(origin)
	to, okTo := r.City(destination)
	if okFrom && okTo {
		return math.Round(haversineKm(from, to) * roadFactor), DistanceSourceHaversine
	}

	return DefaultDistanceKm, DistanceSourceDefault
}

func (r *Registry) Scenarios() []models.ScenarioConfig {
	out := make([]models.ScenarioConfig, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Cities() []models.City {
	out := make([]models.City, 0, len(r.cities))
	for _, city := range r.cities {
		out = append(out, city)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

const earthRadiusKm = 6371.0

func haversineKm(from, to models.City) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLon := (to.Lon - from.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
