package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"supplyflow-backend/internal/config"
)

type Fields map[string]interface{}

// Logger wraps logrus with key/value convenience methods and the structured
// helpers used across services and agents.
type Logger struct {
	log *logrus.Logger
}

func New(cfg config.LogConfig) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	output, err := resolveOutput(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(output)

	return &Logger{log: log}, nil
}

func resolveOutput(cfg config.LogConfig) (io.Writer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}, nil
	}
}

func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.log.WithFields(logrus.Fields(fields))
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.log.WithError(err)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(parseKeyValues(keysAndValues)).Debug(msg)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(parseKeyValues(keysAndValues)).Info(msg)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(parseKeyValues(keysAndValues)).Warn(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(parseKeyValues(keysAndValues)).Error(msg)
}

// LogService records a service-level operation with its duration and outcome.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	for key, value := range fields {
		entry = entry.WithField(key, value)
	}

	if err != nil {
		entry.WithError(err).Error("service operation failed")
		return
	}
	entry.Debug("service operation completed")
}

// LogAgent records a single analysis step for one analysis run.
func (l *Logger) LogAgent(analysisID, agent, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"analysis_id": analysisID,
		"agent":       agent,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	for key, value := range fields {
		entry = entry.WithField(key, value)
	}

	if err != nil {
		entry.WithError(err).Warn("agent step failed")
		return
	}
	entry.Info("agent step completed")
}

// LogAnalysis records a lifecycle event for one analysis run.
func (l *Logger) LogAnalysis(analysisID, event string, duration time.Duration, err error) {
	entry := l.log.WithFields(logrus.Fields{
		"analysis_id": analysisID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("analysis event")
		return
	}
	entry.Info("analysis event")
}

func parseKeyValues(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
