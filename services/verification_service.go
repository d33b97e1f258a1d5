package services

import (
	"context"
	"time"

	"kpiengine/apperrors"
	"kpiengine/config"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"
	"kpiengine/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationService resolves pending entries and is the only writer of
// KPI authoritative state. All work on one KPI runs inside that KPI's
// critical section, so concurrent verifications serialize instead of
// racing on current_value and status.
type VerificationService interface {
	Verify(ctx context.Context, entryID primitive.ObjectID, verifierID string) (*models.ProgressEntry, error)
	Reject(ctx context.Context, entryID primitive.ObjectID, verifierID, reason string) (*models.ProgressEntry, error)
}

type verificationService struct {
	kpis       repository.KPIRepository
	entries    repository.ProgressRepository
	rollups    RollupService
	alerts     AlertService
	prediction PredictionService
	locks      *utils.KeyMutex
	cfg        config.EngineConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewVerificationService(
	kpis repository.KPIRepository,
	entries repository.ProgressRepository,
	rollups RollupService,
	alerts AlertService,
	prediction PredictionService,
	cfg config.EngineConfig,
	log *logger.Logger,
) VerificationService {
	return &verificationService{
		kpis:       kpis,
		entries:    entries,
		rollups:    rollups,
		alerts:     alerts,
		prediction: prediction,
		locks:      utils.NewKeyMutex(),
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

func (s *verificationService) Verify(ctx context.Context, entryID primitive.ObjectID, verifierID string) (*models.ProgressEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entry.KPIID.Hex())
	defer unlock()

	// Re-read under the lock: a concurrent resolution may have landed.
	entry, err = s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.State != models.EntryPending {
		return nil, apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrAlreadyResolved)
	}
	if entry.ReporterID == verifierID {
		return nil, apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrSelfVerification)
	}

	now := s.now()
	if err := s.entries.MarkVerified(ctx, entryID, verifierID, now); err != nil {
		return nil, err
	}
	entry.State = models.EntryVerified
	entry.VerifierID = &verifierID
	entry.ResolvedAt = &now

	kpi, err := s.kpis.GetByID(ctx, entry.KPIID)
	if err != nil {
		return nil, err
	}

	if entry.MilestoneID != nil {
		if err := s.kpis.SetMilestoneCompletion(ctx, *entry.MilestoneID, entry.Value, verifierID); err != nil {
			return nil, err
		}
		s.alerts.EvaluateDeadlines(ctx, kpi, now)
		s.log.Info("milestone entry verified",
			"entry_id", entryID.Hex(),
			"milestone_id", entry.MilestoneID.Hex(),
			"completion", entry.Value,
		)
		return entry, nil
	}

	if err := s.settleAuthoritative(ctx, kpi, now); err != nil {
		return nil, err
	}

	s.log.Info("progress entry verified",
		"entry_id", entryID.Hex(),
		"kpi", kpi.Code,
		"verifier", verifierID,
	)
	return entry, nil
}

func (s *verificationService) Reject(ctx context.Context, entryID primitive.ObjectID, verifierID, reason string) (*models.ProgressEntry, error) {
	if reason == "" {
		return nil, apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrMissingReason)
	}

	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(entry.KPIID.Hex())
	defer unlock()

	entry, err = s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.State != models.EntryPending {
		return nil, apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrAlreadyResolved)
	}

	now := s.now()
	if err := s.entries.MarkRejected(ctx, entryID, verifierID, reason, now); err != nil {
		return nil, err
	}
	entry.State = models.EntryRejected
	entry.VerifierID = &verifierID
	entry.RejectionReason = &reason
	entry.ResolvedAt = &now

	kpi, err := s.kpis.GetByID(ctx, entry.KPIID)
	if err != nil {
		return nil, err
	}
	s.alerts.EntryRejected(ctx, entry, kpi)

	// The authoritative value is untouched, but a failed update still moves
	// the schedule clock and the rejection rate, which can downgrade the
	// status.
	if err := s.reclassify(ctx, kpi, now); err != nil {
		return nil, err
	}

	s.log.Info("progress entry rejected",
		"entry_id", entryID.Hex(),
		"kpi", kpi.Code,
		"verifier", verifierID,
		"reason", reason,
	)
	return entry, nil
}

// settleAuthoritative recomputes current_value from the ledger's verified
// ordering, classifies, persists, and fans out rollups and alerts. A
// late-verified entry older than the authoritative date changes history
// only: the ordering query still returns the newer entry.
func (s *verificationService) settleAuthoritative(ctx context.Context, kpi *models.KPI, now time.Time) error {
	latest, err := s.entries.LatestVerified(ctx, kpi.ID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	inputs, err := s.classifierInputs(ctx, kpi, &latest.Value, now)
	if err != nil {
		return err
	}
	oldStatus := kpi.Status
	newStatus := ClassifyStatus(inputs, s.cfg)

	if err := s.kpis.SetAuthoritative(ctx, kpi.ID, latest.Value, latest.ReportingDate, latest.ID, newStatus); err != nil {
		return err
	}
	kpi.CurrentValue = &latest.Value
	kpi.AuthoritativeDate = &latest.ReportingDate
	kpi.AuthoritativeEntry = &latest.ID
	kpi.Status = newStatus

	s.rollups.RecomputeAncestors(ctx, kpi)
	s.alerts.StatusChanged(ctx, kpi, oldStatus, newStatus)
	s.alerts.EvaluateDeadlines(ctx, kpi, now)
	s.prediction.Annotate(ctx, kpi, now)
	return nil
}

// reclassify recomputes status without touching the authoritative value.
func (s *verificationService) reclassify(ctx context.Context, kpi *models.KPI, now time.Time) error {
	inputs, err := s.classifierInputs(ctx, kpi, kpi.CurrentValue, now)
	if err != nil {
		return err
	}
	oldStatus := kpi.Status
	newStatus := ClassifyStatus(inputs, s.cfg)
	if newStatus == oldStatus {
		return nil
	}
	if err := s.kpis.SetStatus(ctx, kpi.ID, newStatus); err != nil {
		return err
	}
	kpi.Status = newStatus
	s.alerts.StatusChanged(ctx, kpi, oldStatus, newStatus)
	return nil
}

func (s *verificationService) classifierInputs(ctx context.Context, kpi *models.KPI, current *float64, now time.Time) (ClassifierInputs, error) {
	hasEntries, err := s.entries.HasAny(ctx, kpi.ID)
	if err != nil {
		return ClassifierInputs{}, err
	}
	verified, rejected, err := s.entries.CountResolved(ctx, kpi.ID)
	if err != nil {
		return ClassifierInputs{}, err
	}
	var rate float64
	if verified+rejected > 0 {
		rate = float64(rejected) / float64(verified+rejected)
	}
	return ClassifierInputs{
		CurrentValue:  current,
		TargetValue:   kpi.TargetValue,
		WindowStart:   kpi.WindowStart,
		WindowEnd:     kpi.WindowEnd,
		Now:           now,
		HasEntries:    hasEntries,
		RejectionRate: rate,
	}, nil
}
