package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"supplyflow-backend/internal/config"
	"supplyflow-backend/internal/models"
	"supplyflow-backend/internal/pkg/logger"
)

// RedisService keeps best-effort analysis snapshots and a per-analysis stream
// of step updates for dashboard consumers. The core never depends on it for
// correctness.
type RedisService struct {
	client    *redis.Client
	logger    *logger.Logger
	config    config.RedisConfig
	resultTTL time.Duration
}

func NewRedisService(cfg config.RedisConfig, resultTTL time.Duration, log *logger.Logger) (*RedisService, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.DialTimeout = cfg.DialTimeout

	service := &RedisService{
		client:    redis.NewClient(opt),
		logger:    log,
		config:    cfg,
		resultTTL: resultTTL,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Redis Service Initialized Successfully",
		"url", cfg.URL,
		"pool_size", cfg.PoolSize,
		"result_ttl", resultTTL)

	return service, nil
}

func (service *RedisService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := service.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connection to Redis failed: %w", err)
	}
	return nil
}

func (service *RedisService) Close() error {
	service.logger.Info("Closing Redis Service")
	return service.client.Close()
}

func analysisResultKey(analysisID string) string {
	return fmt.Sprintf("analysis:%s:result", analysisID)
}

func analysisUpdatesStream(analysisID string) string {
	return fmt.Sprintf("analysis:%s:updates", analysisID)
}

func (service *RedisService) StoreAnalysisResult(ctx context.Context, analysisID string, response *models.AnalyzeResponse) error {
	key := analysisResultKey(analysisID)
	startTime := time.Now()

	payload, err := json.Marshal(response)
	if err != nil {
		return models.NewInternalError("SERIALIZATION_FAILED", "Failed to serialize analysis result").WithCause(err)
	}

	if err := service.client.Set(ctx, key, payload, service.resultTTL).Err(); err != nil {
		service.logger.LogService("redis", "store_analysis_result", time.Since(startTime), map[string]interface{}{
			"analysis_id": analysisID,
			"key":         key,
		}, err)
		return models.NewExternalError("REDIS_STORE_FAILED", "Failed to store analysis result").WithCause(err)
	}

	service.logger.LogService("redis", "store_analysis_result", time.Since(startTime), map[string]interface{}{
		"analysis_id": analysisID,
	}, nil)

	return nil
}

func (service *RedisService) GetAnalysisResult(ctx context.Context, analysisID string) (*models.AnalyzeResponse, error) {
	key := analysisResultKey(analysisID)
	startTime := time.Now()

	payload, err := service.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, models.NewValidationError("ANALYSIS_NOT_FOUND", "No stored result for this analysis").
				WithMetadata("analysis_id", analysisID)
		}
		service.logger.LogService("redis", "get_analysis_result", time.Since(startTime), map[string]interface{}{
			"analysis_id": analysisID,
			"key":         key,
		}, err)
		return nil, models.NewExternalError("REDIS_GET_FAILED", "Failed to get analysis result").WithCause(err)
	}

	var response models.AnalyzeResponse
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		return nil, models.NewInternalError("DESERIALIZATION_FAILED", "Failed to deserialize analysis result").WithCause(err)
	}

	service.logger.LogService("redis", "get_analysis_result", time.Since(startTime), map[string]interface{}{
		"analysis_id": analysisID,
	}, nil)

	return &response, nil
}

func (service *RedisService) PublishStepUpdate(ctx context.Context, analysisID string, entry models.ExecutionLogEntry) error {
	streamName := analysisUpdatesStream(analysisID)

	values := map[string]interface{}{
		"type":             "step_update",
		"analysis_id":      analysisID,
		"step":             entry.Step,
		"status":           string(entry.Status),
		"started_at":       entry.StartedAt.Format(time.RFC3339Nano),
		"duration_seconds": fmt.Sprintf("%.3f", entry.DurationSeconds),
	}
	if entry.DataSummary != "" {
		values["data_summary"] = entry.DataSummary
	}

	messageID, err := service.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: values,
		MaxLen: 1024,
		Approx: true,
	}).Result()

	if err != nil {
		service.logger.LogService("redis", "publish_step_update", 0, map[string]interface{}{
			"stream_name": streamName,
			"step":        entry.Step,
			"analysis_id": analysisID,
		}, err)
		return models.NewExternalError("REDIS_PUBLISH_FAILED", "Failed to publish step update").WithCause(err)
	}

	service.logger.WithFields(logger.Fields{
		"stream_name": streamName,
		"message_id":  messageID,
		"step":        entry.Step,
		"status":      entry.Status,
	}).Debug("Published Step Update Successfully")

	return nil
}

func (service *RedisService) HealthCheck(ctx context.Context) error {
	if err := service.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}
