package services

import (
	"fmt"

	"supplyflow-backend/internal/models"
)

// Confidence levels reported in ConfidenceAssessment.Level.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// ScoreConfidence reduces step outcomes to a percentage string and a coarse
// level. The level comes from the exact success ratio, not the rounded
// string: High at >= 0.75, Medium at >= 0.5, both inclusive.
func ScoreConfidence(outcomes map[string]bool) models.ConfidenceAssessment {
	attempted := len(outcomes)
	if attempted == 0 {
		return models.ConfidenceAssessment{
			Score:            "0%",
			Level:            ConfidenceLow,
			ComponentSuccess: map[string]bool{},
		}
	}

	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}

	ratio := float64(successes) / float64(attempted)

	level := ConfidenceLow
	switch {
	case ratio >= 0.75:
		level = ConfidenceHigh
	case ratio >= 0.5:
		level = ConfidenceMedium
	}

	componentSuccess := make(map[string]bool, attempted)
	for step, ok := range outcomes {
		componentSuccess[step] = ok
	}

	return models.ConfidenceAssessment{
		Score:            fmt.Sprintf("%.0f%%", ratio*100),
		Level:            level,
		ComponentSuccess: componentSuccess,
	}
}
