package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP     HTTPConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Weather  WeatherConfig
	Maps     MapsConfig
	Analysis AnalysisConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type WeatherConfig struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

type MapsConfig struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

type AnalysisConfig struct {
	StepTimeout       time.Duration
	EnableCoordinator bool
	ResultTTL         time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() (*Config, error) {
	// Best effort: running without a .env file is fine in containers.
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	idleTimeout, err := getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}

	redisPoolSize, err := getEnvInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}

	geminiMaxTokens, err := getEnvInt("GEMINI_MAX_TOKENS", 2048)
	if err != nil {
		return nil, err
	}

	geminiTemperature, err := getEnvFloat("GEMINI_TEMPERATURE", 0.7)
	if err != nil {
		return nil, err
	}

	geminiMaxRetries, err := getEnvInt("GEMINI_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	stepTimeout, err := getEnvDuration("ANALYSIS_STEP_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}

	resultTTL, err := getEnvDuration("ANALYSIS_RESULT_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	logMaxSize, err := getEnvInt("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}

	logMaxBackups, err := getEnvInt("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return nil, err
	}

	logMaxAge, err := getEnvInt("LOG_MAX_AGE_DAYS", 28)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         port,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     redisPoolSize,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Gemini: GeminiConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTokens:   geminiMaxTokens,
			Temperature: geminiTemperature,
			Timeout:     30 * time.Second,
			MaxRetries:  geminiMaxRetries,
			RetryDelay:  2 * time.Second,
		},
		Weather: WeatherConfig{
			APIKey:  os.Getenv("WEATHER_API_KEY"),
			APIURL:  getEnv("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
			Timeout: 10 * time.Second,
		},
		Maps: MapsConfig{
			APIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
			APIURL:  getEnv("GOOGLE_MAPS_API_URL", "https://maps.googleapis.com/maps/api/directions/json"),
			Timeout: 10 * time.Second,
		},
		Analysis: AnalysisConfig{
			StepTimeout:       stepTimeout,
			EnableCoordinator: getEnvBool("ANALYSIS_ENABLE_COORDINATOR", true),
			ResultTTL:         resultTTL,
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAgeDays: logMaxAge,
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
