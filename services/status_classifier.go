package services

import (
	"time"

	"kpiengine/config"
	"kpiengine/models"
)

// ClassifierInputs are everything status classification depends on. The
// clock is explicit so the same inputs always classify the same way.
type ClassifierInputs struct {
	CurrentValue  *float64
	TargetValue   float64
	WindowStart   time.Time
	WindowEnd     time.Time
	Now           time.Time
	HasEntries    bool
	RejectionRate float64
}

// ClassifyStatus derives a KPI lifecycle status. Priority order:
// completed, not_started, on_track, at_risk, behind. A high rejection rate
// caps an otherwise on-track KPI at at_risk.
func ClassifyStatus(in ClassifierInputs, cfg config.EngineConfig) models.KPIStatus {
	ratio := targetRatio(in.CurrentValue, in.TargetValue)

	if ratio >= 1.0 {
		return models.StatusCompleted
	}
	if !in.HasEntries {
		return models.StatusNotStarted
	}

	fraction := ScheduleFraction(in.WindowStart, in.WindowEnd, in.Now)
	switch {
	case ratio >= fraction:
		if in.RejectionRate > cfg.RejectionRateThreshold {
			return models.StatusAtRisk
		}
		return models.StatusOnTrack
	case ratio >= fraction-cfg.RiskMargin:
		return models.StatusAtRisk
	default:
		return models.StatusBehind
	}
}

// ScheduleFraction is the elapsed share of the schedule window, clamped to
// [0, 1]. A degenerate window counts as fully elapsed.
func ScheduleFraction(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= total {
		return 1
	}
	return float64(elapsed) / float64(total)
}

func targetRatio(current *float64, target float64) float64 {
	if current == nil || target == 0 {
		return 0
	}
	ratio := *current / target
	if ratio < 0 {
		return 0
	}
	return ratio
}

// statusRank orders statuses by health so alerting can measure how far a
// transition regressed.
func statusRank(s models.KPIStatus) int {
	switch s {
	case models.StatusCompleted:
		return 4
	case models.StatusOnTrack:
		return 3
	case models.StatusAtRisk:
		return 2
	case models.StatusBehind:
		return 1
	default:
		return 0
	}
}
