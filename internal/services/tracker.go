package services

import (
	"time"

	"supplyflow-backend/internal/models"
)

// StepTracker produces exactly one execution log entry per tracked call.
// The clock is injectable so tests can pin durations.
type StepTracker struct {
	now func() time.Time
}

func NewStepTracker() *StepTracker {
	return &StepTracker{now: time.Now}
}

func NewStepTrackerWithClock(now func() time.Time) *StepTracker {
	return &StepTracker{now: now}
}

// Track runs fn and records its outcome. A nil error yields a SUCCESS entry
// carrying fn's summary; any error yields a FAILURE entry carrying the error
// text. The entry's duration is clamped at zero in case the clock moves
// backwards between readings.
func (t *StepTracker) Track(step string, fn func() (string, error)) (models.ExecutionLogEntry, error) {
	startedAt := t.now()
	summary, err := fn()
	duration := t.now().Sub(startedAt).Seconds()
	if duration < 0 {
		duration = 0
	}

	entry := models.ExecutionLogEntry{
		Step:            step,
		StartedAt:       startedAt,
		DurationSeconds: duration,
	}

	if err != nil {
		entry.Status = models.StepStatusFailure
		entry.DataSummary = err.Error()
		return entry, err
	}

	entry.Status = models.StepStatusSuccess
	entry.DataSummary = summary
	return entry, nil
}
