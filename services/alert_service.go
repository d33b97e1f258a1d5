package services

import (
	"context"
	"fmt"
	"time"

	"kpiengine/clients"
	"kpiengine/config"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"

	"github.com/google/uuid"
)

// AlertService turns meaningful state transitions into alert events. Every
// emission passes through the dedup store first, so repeated recomputation
// inside the cool-down window produces exactly one alert per (type,
// subject).
type AlertService interface {
	StatusChanged(ctx context.Context, kpi *models.KPI, from, to models.KPIStatus)
	EntryRejected(ctx context.Context, entry *models.ProgressEntry, kpi *models.KPI)
	// EvaluateDeadlines checks the KPI's window end and its milestones'
	// due dates against the deadline horizon.
	EvaluateDeadlines(ctx context.Context, kpi *models.KPI, now time.Time)
}

type alertService struct {
	alerts   repository.AlertRepository
	kpis     repository.KPIRepository
	dedup    clients.DedupStore
	notifier clients.Notifier
	cfg      config.EngineConfig
	log      *logger.Logger
}

func NewAlertService(alerts repository.AlertRepository, kpis repository.KPIRepository, dedup clients.DedupStore, notifier clients.Notifier, cfg config.EngineConfig, log *logger.Logger) AlertService {
	return &alertService{alerts: alerts, kpis: kpis, dedup: dedup, notifier: notifier, cfg: cfg, log: log}
}

func (s *alertService) StatusChanged(ctx context.Context, kpi *models.KPI, from, to models.KPIStatus) {
	if from == to || to == models.StatusNotStarted {
		return
	}
	drop := statusRank(from) - statusRank(to)
	if drop <= 0 {
		return
	}

	priority := models.PriorityMedium
	switch {
	case drop >= 3:
		priority = models.PriorityCritical
	case drop == 2 || to == models.StatusBehind:
		priority = models.PriorityHigh
	}

	s.emit(ctx, &models.Alert{
		Type:     models.AlertPerformance,
		Priority: priority,
		Subject:  models.SubjectRef{Kind: models.SubjectKPI, ID: kpi.ID},
		Message:  fmt.Sprintf("KPI %s regressed from %s to %s", kpi.Code, from, to),
		Metadata: map[string]string{"from": string(from), "to": string(to)},
	})
}

func (s *alertService) EntryRejected(ctx context.Context, entry *models.ProgressEntry, kpi *models.KPI) {
	reason := ""
	if entry.RejectionReason != nil {
		reason = *entry.RejectionReason
	}
	s.emit(ctx, &models.Alert{
		Type:      models.AlertKPIUpdate,
		Priority:  models.PriorityMedium,
		Subject:   models.SubjectRef{Kind: models.SubjectKPI, ID: kpi.ID},
		Message:   fmt.Sprintf("progress entry for KPI %s was rejected: %s", kpi.Code, reason),
		Recipient: entry.ReporterID,
		Metadata:  map[string]string{"entry_id": entry.ID.Hex()},
	})
}

func (s *alertService) EvaluateDeadlines(ctx context.Context, kpi *models.KPI, now time.Time) {
	if kpi.Status != models.StatusCompleted {
		if priority, ok := s.deadlinePriority(kpi.WindowEnd, now); ok {
			s.emit(ctx, &models.Alert{
				Type:     models.AlertDeadline,
				Priority: priority,
				Subject:  models.SubjectRef{Kind: models.SubjectKPI, ID: kpi.ID},
				Message:  fmt.Sprintf("KPI %s is due %s with status %s", kpi.Code, kpi.WindowEnd.Format("2006-01-02"), kpi.Status),
			})
		}
	}

	milestones, err := s.kpis.ListMilestones(ctx, kpi.ID)
	if err != nil {
		s.log.Warn("deadline scan skipped, milestone load failed", "kpi", kpi.Code, "error", err)
		return
	}
	for i := range milestones {
		ms := &milestones[i]
		if ms.CompletionPercent >= 100 {
			continue
		}
		priority, ok := s.deadlinePriority(ms.DueDate, now)
		if !ok {
			continue
		}
		s.emit(ctx, &models.Alert{
			Type:     models.AlertDeadline,
			Priority: priority,
			Subject:  models.SubjectRef{Kind: models.SubjectMilestone, ID: ms.ID},
			Message:  fmt.Sprintf("milestone %q of KPI %s is due %s at %.0f%% complete", ms.Name, kpi.Code, ms.DueDate.Format("2006-01-02"), ms.CompletionPercent),
		})
	}
}

// deadlinePriority scales with proximity: low at the horizon edge, high in
// the final day, critical once overdue.
func (s *alertService) deadlinePriority(due, now time.Time) (models.AlertPriority, bool) {
	days := due.Sub(now).Hours() / 24
	horizon := float64(s.cfg.DeadlineWindowDays)
	switch {
	case days < 0:
		return models.PriorityCritical, true
	case days <= 1:
		return models.PriorityHigh, true
	case days <= 3:
		return models.PriorityMedium, true
	case days <= horizon:
		return models.PriorityLow, true
	default:
		return "", false
	}
}

func (s *alertService) emit(ctx context.Context, alert *models.Alert) {
	key := fmt.Sprintf("%s:%s:%s", alert.Type, alert.Subject.Kind, alert.Subject.ID.Hex())
	won, err := s.dedup.Acquire(ctx, key, s.cfg.AlertCooldown)
	if err != nil {
		s.log.Error("alert dedup check failed, suppressing emission", "key", key, "error", err)
		return
	}
	if !won {
		s.log.Debug("alert suppressed by cool-down", "key", key)
		return
	}

	alert.EventID = uuid.NewString()
	alert.CreatedAt = time.Now()
	if err := s.alerts.Insert(ctx, alert); err != nil {
		s.log.Error("alert store failed", "key", key, "error", err)
		return
	}

	event := models.AlertEvent{
		EventID:     alert.EventID,
		Type:        alert.Type,
		Priority:    alert.Priority,
		SubjectType: alert.Subject.Kind,
		SubjectID:   alert.Subject.ID.Hex(),
		Message:     alert.Message,
		Metadata:    alert.Metadata,
	}
	if err := s.notifier.Push(ctx, event); err != nil {
		// Sink failures never block the verification path; the alert is
		// stored and queryable regardless.
		s.log.Warn("alert sink push failed", "event_id", alert.EventID, "error", err)
	}

	s.log.Info("alert emitted",
		"event_id", alert.EventID,
		"type", alert.Type,
		"priority", alert.Priority,
		"subject_kind", alert.Subject.Kind,
		"subject_id", alert.Subject.ID.Hex(),
	)
}
