package services

import (
	"context"
	"fmt"
	"time"

	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

// RollupService derives the weighted progress of aggregation roots from
// their constituent KPIs. Recomputation is idempotent: its only side
// effect is the cached percentage plus a recompute version, and stale
// overlapping writes are discarded by the version guard.
type RollupService interface {
	// RecomputeAncestors refreshes every root above a KPI: its pillar, the
	// pillar's initiative when it feeds one, and the KPI's department.
	// Failures degrade to stale cached values and are only logged.
	RecomputeAncestors(ctx context.Context, kpi *models.KPI)
	Recompute(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.RollupState, error)
	Progress(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.ProgressSnapshot, error)
}

type rollupService struct {
	kpis    repository.KPIRepository
	rollups repository.RollupRepository
	log     *logger.Logger
	group   singleflight.Group
	now     func() time.Time
}

func NewRollupService(kpis repository.KPIRepository, rollups repository.RollupRepository, log *logger.Logger) RollupService {
	return &rollupService{kpis: kpis, rollups: rollups, log: log, now: time.Now}
}

// WeightedRollup is the aggregation formula: weighted average of the
// children's percentage-of-target, weights defaulting to 1.0 and
// normalized by their sum. No active children reads as exactly 0.
func WeightedRollup(kpis []models.KPI) float64 {
	var weighted, weights float64
	for i := range kpis {
		w := kpis[i].EffectiveWeight()
		weighted += kpis[i].PercentOfTarget() * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}

func (s *rollupService) RecomputeAncestors(ctx context.Context, kpi *models.KPI) {
	pillar, err := s.rollups.GetPillar(ctx, kpi.PillarID)
	if err != nil {
		s.log.Warn("rollup kept stale, pillar load failed", "pillar_id", kpi.PillarID.Hex(), "error", err)
	} else {
		if _, err := s.Recompute(ctx, models.EntityPillar, pillar.ID); err != nil {
			s.log.Warn("rollup kept stale", "entity", models.EntityPillar, "id", pillar.ID.Hex(), "error", err)
		}
		if pillar.InitiativeID != nil {
			if _, err := s.Recompute(ctx, models.EntityInitiative, *pillar.InitiativeID); err != nil {
				s.log.Warn("rollup kept stale", "entity", models.EntityInitiative, "id", pillar.InitiativeID.Hex(), "error", err)
			}
		}
	}
	if kpi.DepartmentID != nil {
		if _, err := s.Recompute(ctx, models.EntityDepartment, *kpi.DepartmentID); err != nil {
			s.log.Warn("rollup kept stale", "entity", models.EntityDepartment, "id", kpi.DepartmentID.Hex(), "error", err)
		}
	}
}

func (s *rollupService) Recompute(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.RollupState, error) {
	// Concurrent children invalidating the same root collapse into one
	// recompute; every caller shares its result.
	key := string(entity) + ":" + id.Hex()
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.recompute(ctx, entity, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RollupState), nil
}

func (s *rollupService) recompute(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.RollupState, error) {
	kpis, err := s.constituents(ctx, entity, id)
	if err != nil {
		return nil, err
	}

	state := models.RollupState{
		Percentage: WeightedRollup(kpis),
		Version:    s.now().UnixNano(),
		ComputedAt: s.now(),
	}
	updated, err := s.rollups.SaveRollup(ctx, entity, id, state)
	if err != nil {
		return nil, err
	}
	if !updated {
		s.log.Debug("stale rollup write discarded", "entity", entity, "id", id.Hex(), "version", state.Version)
	}
	return &state, nil
}

func (s *rollupService) constituents(ctx context.Context, entity models.EntityType, id primitive.ObjectID) ([]models.KPI, error) {
	switch entity {
	case models.EntityPillar:
		return s.kpis.ListActiveByPillar(ctx, id)
	case models.EntityDepartment:
		return s.kpis.ListActiveByDepartment(ctx, id)
	case models.EntityInitiative:
		pillars, err := s.rollups.ListPillarsByInitiative(ctx, id)
		if err != nil {
			return nil, err
		}
		var all []models.KPI
		for i := range pillars {
			kpis, err := s.kpis.ListActiveByPillar(ctx, pillars[i].ID)
			if err != nil {
				return nil, err
			}
			all = append(all, kpis...)
		}
		return all, nil
	default:
		return nil, fmt.Errorf("entity type %q has no constituents", entity)
	}
}

func (s *rollupService) Progress(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.ProgressSnapshot, error) {
	if entity == models.EntityKPI {
		kpi, err := s.kpis.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &models.ProgressSnapshot{
			EntityType: entity,
			EntityID:   id.Hex(),
			Percentage: kpi.PercentOfTarget(),
			AsOf:       kpi.Metadata.UpdatedAt,
		}, nil
	}

	state, err := s.cached(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	if state.ComputedAt.IsZero() {
		// Never computed: derive on demand.
		state, err = s.Recompute(ctx, entity, id)
		if err != nil {
			return nil, err
		}
	}
	return &models.ProgressSnapshot{
		EntityType: entity,
		EntityID:   id.Hex(),
		Percentage: state.Percentage,
		AsOf:       state.ComputedAt,
	}, nil
}

func (s *rollupService) cached(ctx context.Context, entity models.EntityType, id primitive.ObjectID) (*models.RollupState, error) {
	switch entity {
	case models.EntityPillar:
		p, err := s.rollups.GetPillar(ctx, id)
		if err != nil {
			return nil, err
		}
		return &p.Rollup, nil
	case models.EntityDepartment:
		d, err := s.rollups.GetDepartment(ctx, id)
		if err != nil {
			return nil, err
		}
		return &d.Rollup, nil
	case models.EntityInitiative:
		i, err := s.rollups.GetInitiative(ctx, id)
		if err != nil {
			return nil, err
		}
		return &i.Rollup, nil
	default:
		return nil, fmt.Errorf("unknown rollup entity type %q", entity)
	}
}
