package services

import (
	"context"
	"math"
	"time"

	"kpiengine/apperrors"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmitCommand is the validated payload for one progress measurement.
type SubmitCommand struct {
	KPIID         primitive.ObjectID
	MilestoneID   *primitive.ObjectID
	Value         float64
	ReportingDate time.Time
	Source        models.EntrySource
	ReporterID    string
	Notes         string
}

// LedgerService appends measurements to the progress ledger. Every entry
// starts pending; nothing here touches current values or rollups.
type LedgerService interface {
	Submit(ctx context.Context, cmd SubmitCommand) (*models.ProgressEntry, error)
	ListEntries(ctx context.Context, kpiID primitive.ObjectID) ([]models.ProgressEntry, error)
}

type ledgerService struct {
	kpis    repository.KPIRepository
	entries repository.ProgressRepository
	log     *logger.Logger
	now     func() time.Time
}

func NewLedgerService(kpis repository.KPIRepository, entries repository.ProgressRepository, log *logger.Logger) LedgerService {
	return &ledgerService{kpis: kpis, entries: entries, log: log, now: time.Now}
}

func (s *ledgerService) Submit(ctx context.Context, cmd SubmitCommand) (*models.ProgressEntry, error) {
	kpi, err := s.kpis.GetByID(ctx, cmd.KPIID)
	if err != nil {
		return nil, err
	}

	if cmd.MilestoneID != nil {
		ms, err := s.kpis.GetMilestone(ctx, *cmd.MilestoneID)
		if err != nil {
			return nil, err
		}
		if ms.KPIID != kpi.ID {
			return nil, apperrors.New(apperrors.KindIntegrity, "milestone %s does not belong to KPI %s", ms.ID.Hex(), kpi.ID.Hex())
		}
		// Milestone rows carry a completion percentage regardless of the
		// KPI's own measurement type.
		if err := validateValue(models.MeasurementPercentage, cmd.Value); err != nil {
			return nil, err
		}
	} else if err := validateValue(kpi.MeasurementType, cmd.Value); err != nil {
		return nil, err
	}

	today := s.now().Truncate(24 * time.Hour)
	if cmd.ReportingDate.After(today) {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.ErrOutOfWindow)
	}

	source := cmd.Source
	if source == "" {
		source = models.SourceManual
	}

	entry := &models.ProgressEntry{
		KPIID:         kpi.ID,
		MilestoneID:   cmd.MilestoneID,
		Value:         cmd.Value,
		ReportingDate: cmd.ReportingDate,
		Source:        source,
		State:         models.EntryPending,
		ReporterID:    cmd.ReporterID,
		Notes:         cmd.Notes,
		CreatedAt:     s.now(),
	}
	if err := s.entries.Insert(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info("progress entry submitted",
		"entry_id", entry.ID.Hex(),
		"kpi", kpi.Code,
		"value", cmd.Value,
		"source", source,
	)
	return entry, nil
}

func (s *ledgerService) ListEntries(ctx context.Context, kpiID primitive.ObjectID) ([]models.ProgressEntry, error) {
	return s.entries.ListByKPI(ctx, kpiID)
}

// validateValue enforces the measurement-type domain: percentages live in
// [0, 100], ratios and currency amounts are non-negative, and nothing may
// be NaN or infinite. Plain numbers may be negative (net-change KPIs).
func validateValue(mt models.MeasurementType, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return apperrors.Wrap(apperrors.KindValidation, apperrors.ErrInvalidValue)
	}
	switch mt {
	case models.MeasurementPercentage:
		if value < 0 || value > 100 {
			return apperrors.Wrap(apperrors.KindValidation, apperrors.ErrInvalidValue)
		}
	case models.MeasurementRatio, models.MeasurementCurrency:
		if value < 0 {
			return apperrors.Wrap(apperrors.KindValidation, apperrors.ErrInvalidValue)
		}
	}
	return nil
}
