package services

import (
	"errors"
	"testing"
	"time"

	"supplyflow-backend/internal/models"
)

func TestTrackSuccess(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(250 * time.Millisecond)}
	tracker := NewStepTrackerWithClock(stubClock(times))

	entry, err := tracker.Track("demand", func() (string, error) {
		return "forecast=120.0", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if entry.Step != "demand" {
		t.Errorf("Expected step demand, got %s", entry.Step)
	}
	if entry.Status != models.StepStatusSuccess {
		t.Errorf("Expected SUCCESS, got %s", entry.Status)
	}
	if entry.DataSummary != "forecast=120.0" {
		t.Errorf("Expected summary to carry through, got %q", entry.DataSummary)
	}
	if entry.DurationSeconds != 0.25 {
		t.Errorf("Expected duration 0.25s, got %f", entry.DurationSeconds)
	}
	if !entry.StartedAt.Equal(base) {
		t.Errorf("Expected start time %v, got %v", base, entry.StartedAt)
	}
}

func TestTrackFailure(t *testing.T) {
	tracker := NewStepTracker()
	stepErr := errors.New("weather API unreachable")

	entry, err := tracker.Track("risk", func() (string, error) {
		return "", stepErr
	})

	if err == nil {
		t.Fatal("Expected the step error to propagate")
	}
	if entry.Status != models.StepStatusFailure {
		t.Errorf("Expected FAILURE, got %s", entry.Status)
	}
	if entry.DataSummary != stepErr.Error() {
		t.Errorf("Expected failure summary %q, got %q", stepErr.Error(), entry.DataSummary)
	}
}

func TestTrackClampsNegativeDuration(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-2 * time.Second)}
	tracker := NewStepTrackerWithClock(stubClock(times))

	entry, err := tracker.Track("cost", func() (string, error) {
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if entry.DurationSeconds != 0 {
		t.Errorf("Expected duration clamped to 0, got %f", entry.DurationSeconds)
	}
}

func stubClock(times []time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		now := times[i]
		if i < len(times)-1 {
			i++
		}
		return now
	}
}
