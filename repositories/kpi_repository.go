package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kpiengine/apperrors"
	"kpiengine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type KPIRepository interface {
	Create(ctx context.Context, kpi *models.KPI) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.KPI, error)
	GetByCode(ctx context.Context, code string) (*models.KPI, error)
	GetAll(ctx context.Context) ([]models.KPI, error)
	ListActiveByPillar(ctx context.Context, pillarID primitive.ObjectID) ([]models.KPI, error)
	ListActiveByDepartment(ctx context.Context, departmentID primitive.ObjectID) ([]models.KPI, error)
	CountByPillar(ctx context.Context, pillarID primitive.ObjectID) (int64, error)
	// SetAuthoritative writes the derived current value, its provenance and
	// the freshly classified status in one update. Only the verification
	// workflow calls this.
	SetAuthoritative(ctx context.Context, id primitive.ObjectID, value float64, date time.Time, entryID primitive.ObjectID, status models.KPIStatus) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.KPIStatus) error
	SetRisk(ctx context.Context, id primitive.ObjectID, risk models.RiskAnnotation) error
	// Delete removes the KPI and cascades to its owned entries and
	// milestones.
	Delete(ctx context.Context, id primitive.ObjectID) error

	CreateMilestone(ctx context.Context, m *models.Milestone) error
	GetMilestone(ctx context.Context, id primitive.ObjectID) (*models.Milestone, error)
	ListMilestones(ctx context.Context, kpiID primitive.ObjectID) ([]models.Milestone, error)
	SetMilestoneCompletion(ctx context.Context, id primitive.ObjectID, percent float64, updatedBy string) error
}

type kpiRepository struct {
	kpis       *mongo.Collection
	entries    *mongo.Collection
	milestones *mongo.Collection
}

func NewKPIRepository(db *mongo.Database) KPIRepository {
	return &kpiRepository{
		kpis:       db.Collection("kpis"),
		entries:    db.Collection("progress_entries"),
		milestones: db.Collection("milestones"),
	}
}

func (r *kpiRepository) Create(ctx context.Context, kpi *models.KPI) error {
	kpi.ID = primitive.NewObjectID()
	_, err := r.kpis.InsertOne(ctx, kpi)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.New(apperrors.KindValidation, "KPI code %q already in use", kpi.Code)
	}
	return err
}

func (r *kpiRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.KPI, error) {
	var kpi models.KPI
	err := r.kpis.FindOne(ctx, bson.M{"_id": id}).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &kpi, nil
}

func (r *kpiRepository) GetByCode(ctx context.Context, code string) (*models.KPI, error) {
	var kpi models.KPI
	err := r.kpis.FindOne(ctx, bson.M{"code": code}).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &kpi, nil
}

func (r *kpiRepository) GetAll(ctx context.Context) ([]models.KPI, error) {
	return r.find(ctx, bson.M{})
}

func (r *kpiRepository) ListActiveByPillar(ctx context.Context, pillarID primitive.ObjectID) ([]models.KPI, error) {
	return r.find(ctx, bson.M{"pillar_id": pillarID, "active": true})
}

func (r *kpiRepository) ListActiveByDepartment(ctx context.Context, departmentID primitive.ObjectID) ([]models.KPI, error) {
	return r.find(ctx, bson.M{"department_id": departmentID, "active": true})
}

func (r *kpiRepository) find(ctx context.Context, filter bson.M) ([]models.KPI, error) {
	cursor, err := r.kpis.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var kpis []models.KPI
	if err = cursor.All(ctx, &kpis); err != nil {
		return nil, err
	}
	return kpis, nil
}

func (r *kpiRepository) CountByPillar(ctx context.Context, pillarID primitive.ObjectID) (int64, error) {
	return r.kpis.CountDocuments(ctx, bson.M{"pillar_id": pillarID})
}

func (r *kpiRepository) SetAuthoritative(ctx context.Context, id primitive.ObjectID, value float64, date time.Time, entryID primitive.ObjectID, status models.KPIStatus) error {
	update := bson.M{
		"$set": bson.M{
			"current_value":       value,
			"authoritative_date":  date,
			"authoritative_entry": entryID,
			"status":              status,
			"metadata.updated_at": time.Now(),
		},
	}
	result, err := r.kpis.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return nil
}

func (r *kpiRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.KPIStatus) error {
	result, err := r.kpis.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "metadata.updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return nil
}

func (r *kpiRepository) SetRisk(ctx context.Context, id primitive.ObjectID, risk models.RiskAnnotation) error {
	_, err := r.kpis.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"risk": risk}})
	return err
}

func (r *kpiRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.kpis.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	if _, err := r.entries.DeleteMany(ctx, bson.M{"kpi_id": id}); err != nil {
		return fmt.Errorf("cascade entries for %s: %w", id.Hex(), err)
	}
	if _, err := r.milestones.DeleteMany(ctx, bson.M{"kpi_id": id}); err != nil {
		return fmt.Errorf("cascade milestones for %s: %w", id.Hex(), err)
	}
	return nil
}

func (r *kpiRepository) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	m.ID = primitive.NewObjectID()
	_, err := r.milestones.InsertOne(ctx, m)
	return err
}

func (r *kpiRepository) GetMilestone(ctx context.Context, id primitive.ObjectID) (*models.Milestone, error) {
	var m models.Milestone
	err := r.milestones.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *kpiRepository) ListMilestones(ctx context.Context, kpiID primitive.ObjectID) ([]models.Milestone, error) {
	cursor, err := r.milestones.Find(ctx, bson.M{"kpi_id": kpiID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ms []models.Milestone
	if err = cursor.All(ctx, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (r *kpiRepository) SetMilestoneCompletion(ctx context.Context, id primitive.ObjectID, percent float64, updatedBy string) error {
	result, err := r.milestones.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"completion_percent":  percent,
			"metadata.updated_by": updatedBy,
			"metadata.updated_at": time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return nil
}
