package services

import (
	"context"
	"time"

	"kpiengine/apperrors"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KPIService manages the entities the engine aggregates over: KPIs, their
// milestones, and the Pillar/Department/Initiative roots.
type KPIService interface {
	CreateKPI(ctx context.Context, req *models.CreateKPIRequest, actor string) (*models.KPI, error)
	GetKPIByID(ctx context.Context, id primitive.ObjectID) (*models.KPI, error)
	GetAllKPIs(ctx context.Context) ([]models.KPI, error)
	// DeleteKPI cascades to the KPI's entries and milestones.
	DeleteKPI(ctx context.Context, id primitive.ObjectID) error

	CreatePillar(ctx context.Context, req *models.CreatePillarRequest, actor string) (*models.Pillar, error)
	// DeletePillar refuses while KPIs still reference the pillar, so a
	// parent can never silently orphan its children.
	DeletePillar(ctx context.Context, id primitive.ObjectID) error
	CreateDepartment(ctx context.Context, req *models.CreateDepartmentRequest, actor string) (*models.Department, error)
	CreateInitiative(ctx context.Context, req *models.CreateInitiativeRequest, actor string) (*models.Initiative, error)
	CreateMilestone(ctx context.Context, kpiID primitive.ObjectID, req *models.CreateMilestoneRequest, actor string) (*models.Milestone, error)
}

type kpiService struct {
	kpis    repository.KPIRepository
	rollups repository.RollupRepository
	log     *logger.Logger
}

func NewKPIService(kpis repository.KPIRepository, rollups repository.RollupRepository, log *logger.Logger) KPIService {
	return &kpiService{kpis: kpis, rollups: rollups, log: log}
}

func (s *kpiService) CreateKPI(ctx context.Context, req *models.CreateKPIRequest, actor string) (*models.KPI, error) {
	pillarID, err := primitive.ObjectIDFromHex(req.PillarID)
	if err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "invalid pillar id %q", req.PillarID)
	}
	if _, err := s.rollups.GetPillar(ctx, pillarID); err != nil {
		return nil, apperrors.New(apperrors.KindIntegrity, "pillar %s does not exist", req.PillarID)
	}

	var departmentID *primitive.ObjectID
	if req.DepartmentID != "" {
		id, err := primitive.ObjectIDFromHex(req.DepartmentID)
		if err != nil {
			return nil, apperrors.New(apperrors.KindValidation, "invalid department id %q", req.DepartmentID)
		}
		if _, err := s.rollups.GetDepartment(ctx, id); err != nil {
			return nil, apperrors.New(apperrors.KindIntegrity, "department %s does not exist", req.DepartmentID)
		}
		departmentID = &id
	}

	now := time.Now()
	kpi := &models.KPI{
		Code:            req.Code,
		Name:            req.Name,
		TargetValue:     req.TargetValue,
		Unit:            req.Unit,
		MeasurementType: models.MeasurementType(req.MeasurementType),
		Frequency:       models.Frequency(req.Frequency),
		Weight:          req.Weight,
		WindowStart:     req.WindowStart,
		WindowEnd:       req.WindowEnd,
		Status:          models.StatusNotStarted,
		PillarID:        pillarID,
		DepartmentID:    departmentID,
		Active:          true,
		Metadata: models.Metadata{
			CreatedBy: actor, UpdatedBy: actor,
			CreatedAt: now, UpdatedAt: now,
		},
	}
	if err := s.kpis.Create(ctx, kpi); err != nil {
		return nil, err
	}
	s.log.Info("kpi created", "code", kpi.Code, "pillar_id", kpi.PillarID.Hex(), "actor", actor)
	return kpi, nil
}

func (s *kpiService) GetKPIByID(ctx context.Context, id primitive.ObjectID) (*models.KPI, error) {
	return s.kpis.GetByID(ctx, id)
}

func (s *kpiService) GetAllKPIs(ctx context.Context) ([]models.KPI, error) {
	return s.kpis.GetAll(ctx)
}

func (s *kpiService) DeleteKPI(ctx context.Context, id primitive.ObjectID) error {
	return s.kpis.Delete(ctx, id)
}

func (s *kpiService) CreatePillar(ctx context.Context, req *models.CreatePillarRequest, actor string) (*models.Pillar, error) {
	var initiativeID *primitive.ObjectID
	if req.InitiativeID != "" {
		id, err := primitive.ObjectIDFromHex(req.InitiativeID)
		if err != nil {
			return nil, apperrors.New(apperrors.KindValidation, "invalid initiative id %q", req.InitiativeID)
		}
		if _, err := s.rollups.GetInitiative(ctx, id); err != nil {
			return nil, apperrors.New(apperrors.KindIntegrity, "initiative %s does not exist", req.InitiativeID)
		}
		initiativeID = &id
	}

	now := time.Now()
	pillar := &models.Pillar{
		Name:         req.Name,
		InitiativeID: initiativeID,
		Metadata:     models.Metadata{CreatedBy: actor, UpdatedBy: actor, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.rollups.CreatePillar(ctx, pillar); err != nil {
		return nil, err
	}
	return pillar, nil
}

func (s *kpiService) DeletePillar(ctx context.Context, id primitive.ObjectID) error {
	count, err := s.kpis.CountByPillar(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Wrap(apperrors.KindIntegrity, apperrors.ErrParentInUse)
	}
	return s.rollups.DeletePillar(ctx, id)
}

func (s *kpiService) CreateDepartment(ctx context.Context, req *models.CreateDepartmentRequest, actor string) (*models.Department, error) {
	now := time.Now()
	department := &models.Department{
		Name:     req.Name,
		Metadata: models.Metadata{CreatedBy: actor, UpdatedBy: actor, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.rollups.CreateDepartment(ctx, department); err != nil {
		return nil, err
	}
	return department, nil
}

func (s *kpiService) CreateInitiative(ctx context.Context, req *models.CreateInitiativeRequest, actor string) (*models.Initiative, error) {
	now := time.Now()
	initiative := &models.Initiative{
		Name:     req.Name,
		Metadata: models.Metadata{CreatedBy: actor, UpdatedBy: actor, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.rollups.CreateInitiative(ctx, initiative); err != nil {
		return nil, err
	}
	return initiative, nil
}

func (s *kpiService) CreateMilestone(ctx context.Context, kpiID primitive.ObjectID, req *models.CreateMilestoneRequest, actor string) (*models.Milestone, error) {
	if _, err := s.kpis.GetByID(ctx, kpiID); err != nil {
		return nil, err
	}
	now := time.Now()
	milestone := &models.Milestone{
		KPIID:    kpiID,
		Name:     req.Name,
		DueDate:  req.DueDate,
		Metadata: models.Metadata{CreatedBy: actor, UpdatedBy: actor, CreatedAt: now, UpdatedAt: now},
	}
	if err := s.kpis.CreateMilestone(ctx, milestone); err != nil {
		return nil, err
	}
	return milestone, nil
}
