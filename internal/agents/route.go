package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

// Route sources reported in RouteResult.Source.
const (
	RouteSourceMaps     = "Google Maps API"
	RouteSourceFallback = "Fallback"
)

// fallbackSpeedKmh is the assumed average truck speed when estimating
// duration from distance alone.
const fallbackSpeedKmh = 45.0

const routeMaxTries = 3

// RouteAgent resolves the best route for a lane via the Google Maps
// Directions API, degrading to a registry-based estimate when the API is
// unavailable or unconfigured.
type RouteAgent struct {
	config   config.MapsConfig
	registry *config.Registry
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *logger.Logger
}

func NewRouteAgent(cfg config.MapsConfig, registry *config.Registry, log *logger.Logger) *RouteAgent {
	return &RouteAgent{
		config:   cfg,
		registry: registry,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "google-maps",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: log,
	}
}

func (agent *RouteAgent) GetBestRoute(ctx context.Context, req models.AnalyzeRequest) (models.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return models.RouteResult{}, models.NewTimeoutError("ROUTE_CANCELLED", "Route lookup cancelled").WithCause(err)
	}

	if agent.config.APIKey == "" {
		agent.logger.Debug("Maps API key not configured, using fallback route",
			"origin", req.Origin, "destination", req.Destination)
		return FallbackRouteResult(agent.registry, req), nil
	}

	startTime := time.Now()
	result, err := agent.fetchRoute(ctx, req)
	agent.logger.LogAgent("", "route", "maps_directions", time.Since(startTime), map[string]interface{}{
		"origin":      req.Origin,
		"destination": req.Destination,
	}, err)

	if err != nil {
		if ctx.Err() != nil {
			return models.RouteResult{}, models.NewTimeoutError("ROUTE_TIMEOUT", "Route lookup timed out").WithCause(ctx.Err())
		}
		// API trouble is absorbed here so the step still succeeds with an
		// estimated route. Only cancellation reaches the caller as an error.
		agent.logger.WithError(err).Warn("Maps API unavailable, using fallback route")
		return FallbackRouteResult(agent.registry, req), nil
	}

	return result, nil
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

func (agent *RouteAgent) fetchRoute(ctx context.Context, req models.AnalyzeRequest) (models.RouteResult, error) {
	operation := func() (*directionsResponse, error) {
		response, err := agent.breaker.Execute(func() (interface{}, error) {
			return agent.callDirectionsAPI(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return response.(*directionsResponse), nil
	}

	directions, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(routeMaxTries))
	if err != nil {
		return models.RouteResult{}, models.NewExternalError("MAPS_API_FAILED", "Directions request failed").WithCause(err)
	}

	if directions.Status != "OK" || len(directions.Routes) == 0 || len(directions.Routes[0].Legs) == 0 {
		return models.RouteResult{}, models.NewExternalError("MAPS_NO_ROUTE", "Directions response contained no route").
			WithMetadata("status", directions.Status)
	}

	leg := directions.Routes[0].Legs[0]
	return models.RouteResult{
		Path:       []string{req.Origin, req.Destination},
		DistanceKm: math.Round(float64(leg.Distance.Value)/1000*10) / 10,
		Duration:   leg.Duration.Text,
		Source:     RouteSourceMaps,
	}, nil
}

func (agent *RouteAgent) callDirectionsAPI(ctx context.Context, req models.AnalyzeRequest) (*directionsResponse, error) {
	params := url.Values{}
	params.Set("origin", req.Origin+", India")
	params.Set("destination", req.Destination+", India")
	params.Set("key", agent.config.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, agent.config.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := agent.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions API returned status %d", resp.StatusCode)
	}

	var directions directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&directions); err != nil {
		return nil, err
	}
	return &directions, nil
}

// FallbackRouteResult estimates the route from registry data: distance matrix
// first, haversine second, package default last. Duration assumes a constant
// average speed.
func FallbackRouteResult(registry *config.Registry, req models.AnalyzeRequest) models.RouteResult {
	distanceKm, _ := registry.DistanceKm(req.Origin, req.Destination)
	hours := distanceKm / fallbackSpeedKmh

	return models.RouteResult{
		Path:       []string{req.Origin, req.Destination},
		DistanceKm: distanceKm,
		Duration:   formatDuration(hours),
		Source:     RouteSourceFallback,
	}
}

func formatDuration(hours float64) string {
	whole := int(hours)
	minutes := int(math.Round((hours - float64(whole)) * 60))
	if minutes == 60 {
		whole++
		minutes = 0
	}
	if whole == 0 {
		return fmt.Sprintf("%d mins", minutes)
	}
	return fmt.Sprintf("%d hours %d mins", whole, minutes)
}
