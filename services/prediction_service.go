package services

import (
	"context"
	"time"

	"kpiengine/clients"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"
)

// PredictionService asks the external scoring collaborator for a success
// probability and stores the answer as an opaque annotation. Best-effort:
// a missing or failing collaborator leaves the KPI unannotated and never
// fails the verification path.
type PredictionService interface {
	Annotate(ctx context.Context, kpi *models.KPI, now time.Time)
}

type predictionService struct {
	scorer clients.RiskScorer
	kpis   repository.KPIRepository
	log    *logger.Logger
}

func NewPredictionService(scorer clients.RiskScorer, kpis repository.KPIRepository, log *logger.Logger) PredictionService {
	return &predictionService{scorer: scorer, kpis: kpis, log: log}
}

func (s *predictionService) Annotate(ctx context.Context, kpi *models.KPI, now time.Time) {
	if s.scorer == nil {
		return
	}

	pct := kpi.PercentOfTarget()
	fraction := ScheduleFraction(kpi.WindowStart, kpi.WindowEnd, now)
	windowDays := kpi.WindowEnd.Sub(kpi.WindowStart).Hours() / 24

	// Delay expressed in days of schedule the verified progress is lagging.
	delay := (fraction - pct/100) * windowDays
	if delay < 0 {
		delay = 0
	}

	input := models.RiskInput{
		Progress:          pct,
		BudgetUtilization: 0, // not tracked by the engine
		DelayDays:         delay,
		EngagementScore:   engagementScore(kpi, now),
	}
	score, err := s.scorer.Score(ctx, input)
	if err != nil {
		s.log.Warn("risk scoring skipped", "kpi", kpi.Code, "error", err)
		return
	}

	annotation := models.RiskAnnotation{
		SuccessProbability: score.SuccessProbability,
		RiskLevel:          score.RiskLevel,
		Confidence:         score.Confidence,
		ScoredAt:           now,
	}
	if err := s.kpis.SetRisk(ctx, kpi.ID, annotation); err != nil {
		s.log.Warn("risk annotation store failed", "kpi", kpi.Code, "error", err)
		return
	}
	kpi.Risk = &annotation
}

// engagementScore approximates reporting discipline: 1.0 when the latest
// authoritative report is within one reporting period of now, decaying as
// it gets staler.
func engagementScore(kpi *models.KPI, now time.Time) float64 {
	if kpi.AuthoritativeDate == nil {
		return 0
	}
	period := periodDays(kpi.Frequency)
	staleness := now.Sub(*kpi.AuthoritativeDate).Hours() / 24
	if staleness <= period {
		return 1
	}
	score := period / staleness
	if score < 0 {
		return 0
	}
	return score
}

func periodDays(f models.Frequency) float64 {
	switch f {
	case models.FrequencyQuarterly:
		return 92
	case models.FrequencyAnnual:
		return 365
	default:
		return 31
	}
}
