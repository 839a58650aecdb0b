package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
)

func TestWeatherRiskScoreClassification(t *testing.T) {
	march := time.March

	cases := []struct {
		name      string
		condition string
		windKph   float64
		tempC     float64
		humidity  float64
		wantLevel models.RiskLevel
	}{
		{"clear day", "Sunny", 10, 28, 50, models.RiskLevelLow},
		{"moderate rain", "Light rain", 30, 26, 88, models.RiskLevelMedium},
		{"cyclone", "Cyclone warning", 60, 24, 90, models.RiskLevelHigh},
		{"extreme heat with storm", "Thunderstorm", 45, 47, 60, models.RiskLevelHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := weatherRiskScore(tc.condition, tc.windKph, tc.tempC, tc.humidity, march)
			if level := riskLevelFromScore(score); level != tc.wantLevel {
				t.Errorf("Expected %s (score %d), got %s", tc.wantLevel, score, level)
			}
		})
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	if riskLevelFromScore(50) != models.RiskLevelHigh {
		t.Error("Expected score 50 to map to High")
	}
	if riskLevelFromScore(49) != models.RiskLevelMedium {
		t.Error("Expected score 49 to map to Medium")
	}
	if riskLevelFromScore(25) != models.RiskLevelMedium {
		t.Error("Expected score 25 to map to Medium")
	}
	if riskLevelFromScore(24) != models.RiskLevelLow {
		t.Error("Expected score 24 to map to Low")
	}
}

func TestCheckWeatherWithoutAPIKeyUsesFallback(t *testing.T) {
	agent := NewRiskAgent(config.WeatherConfig{Timeout: time.Second}, testLogger(t))
	req := models.AnalyzeRequest{Origin: "Mumbai", Destination: "Delhi", Scenario: "Normal Operations"}

	result, err := agent.CheckWeather(context.Background(), req, normalScenario())
	if err != nil {
		t.Fatalf("Expected fallback, not an error: %v", err)
	}

	if result.Source != RiskSourceFallback {
		t.Errorf("Expected fallback source, got %s", result.Source)
	}
	if result.Condition == "" || result.Temperature == "" {
		t.Errorf("Expected populated fallback conditions, got %+v", result)
	}
}

func TestCheckWeatherParsesAPIResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			t.Error("Expected API key in query")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"current": map[string]interface{}{
				"temp_c":    31.5,
				"humidity":  55.0,
				"wind_kph":  12.0,
				"condition": map[string]string{"text": "Sunny"},
			},
		})
	}))
	defer server.Close()

	agent := NewRiskAgent(config.WeatherConfig{
		APIKey:  "test-key",
		APIURL:  server.URL,
		Timeout: time.Second,
	}, testLogger(t))
	agent.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	result, err := agent.CheckWeather(context.Background(),
		models.AnalyzeRequest{Origin: "Mumbai", Destination: "Delhi"}, normalScenario())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Source != RiskSourceWeatherAPI {
		t.Errorf("Expected Weather API source, got %s", result.Source)
	}
	if result.Condition != "Sunny" {
		t.Errorf("Expected condition Sunny, got %s", result.Condition)
	}
	if result.Temperature != "31.5°C" {
		t.Errorf("Expected temp 31.5°C, got %s", result.Temperature)
	}
	if result.RiskLevel != models.RiskLevelLow {
		t.Errorf("Expected Low risk for a clear day, got %s", result.RiskLevel)
	}
}

func TestCheckWeatherAPIFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	agent := NewRiskAgent(config.WeatherConfig{
		APIKey:  "test-key",
		APIURL:  server.URL,
		Timeout: time.Second,
	}, testLogger(t))

	result, err := agent.CheckWeather(context.Background(),
		models.AnalyzeRequest{Origin: "Mumbai", Destination: "Delhi"}, normalScenario())
	if err != nil {
		t.Fatalf("Expected API failure to be absorbed, got %v", err)
	}
	if result.Source != RiskSourceFallback {
		t.Errorf("Expected fallback source after API failure, got %s", result.Source)
	}
}

func TestScenarioOverrides(t *testing.T) {
	base := models.RiskResult{Condition: "Clear", RiskLevel: models.RiskLevelLow, Source: RiskSourceWeatherAPI}

	monsoon := applyScenarioOverrides(base, models.ScenarioConfig{Name: "Monsoon Disruption"})
	if monsoon.Condition != "Heavy Rain" || monsoon.RiskLevel != models.RiskLevelHigh {
		t.Errorf("Expected Heavy Rain/High for monsoon scenario, got %s/%s", monsoon.Condition, monsoon.RiskLevel)
	}

	strike := applyScenarioOverrides(base, models.ScenarioConfig{Name: "Industrial Strike"})
	if strike.RiskLevel != models.RiskLevelHigh || strike.Notes == "" {
		t.Errorf("Expected High risk with a note for strike scenario, got %+v", strike)
	}

	emergency := applyScenarioOverrides(base, models.ScenarioConfig{Name: "Emergency Supply"})
	if emergency.RiskLevel != models.RiskLevelMedium {
		t.Errorf("Expected Low raised to Medium for emergency scenario, got %s", emergency.RiskLevel)
	}

	normal := applyScenarioOverrides(base, models.ScenarioConfig{Name: "Normal Operations"})
	if normal != base {
		t.Errorf("Expected normal scenario to leave the result untouched, got %+v", normal)
	}
}

func TestFallbackRiskResultSeasonal(t *testing.T) {
	monsoonDay := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	winterDay := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	monsoon := fallbackRiskResult(normalScenario(), monsoonDay)
	if monsoon.Condition != "Partly Cloudy (Monsoon Season)" {
		t.Errorf("Expected monsoon condition, got %s", monsoon.Condition)
	}

	winter := fallbackRiskResult(normalScenario(), winterDay)
	if winter.Condition != "Clear (Winter)" {
		t.Errorf("Expected winter condition, got %s", winter.Condition)
	}

	if monsoon.RiskLevel != normalScenario().RiskLevel {
		t.Errorf("Expected scenario risk level carried into fallback, got %s", monsoon.RiskLevel)
	}
}
