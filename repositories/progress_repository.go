package repository

import (
	"context"
	"errors"
	"time"

	"kpiengine/apperrors"
	"kpiengine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProgressRepository is the append-only ledger of progress measurements.
// Resolved entries are never updated again: MarkVerified and MarkRejected
// only match pending documents, which makes double resolution lose at the
// storage layer even if two verifiers race past the service checks.
type ProgressRepository interface {
	Insert(ctx context.Context, entry *models.ProgressEntry) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.ProgressEntry, error)
	ListByKPI(ctx context.Context, kpiID primitive.ObjectID) ([]models.ProgressEntry, error)
	ExistsForDate(ctx context.Context, kpiID primitive.ObjectID, date time.Time) (bool, error)
	MarkVerified(ctx context.Context, id primitive.ObjectID, verifierID string, at time.Time) error
	MarkRejected(ctx context.Context, id primitive.ObjectID, verifierID, reason string, at time.Time) error
	// LatestVerified returns the authoritative entry for a KPI: newest
	// reporting date, creation order breaking ties. Nil when nothing is
	// verified yet.
	LatestVerified(ctx context.Context, kpiID primitive.ObjectID) (*models.ProgressEntry, error)
	HasAny(ctx context.Context, kpiID primitive.ObjectID) (bool, error)
	CountResolved(ctx context.Context, kpiID primitive.ObjectID) (verified, rejected int64, err error)
}

type progressRepository struct {
	entries *mongo.Collection
}

func NewProgressRepository(db *mongo.Database) ProgressRepository {
	return &progressRepository{entries: db.Collection("progress_entries")}
}

func (r *progressRepository) Insert(ctx context.Context, entry *models.ProgressEntry) error {
	entry.ID = primitive.NewObjectID()
	_, err := r.entries.InsertOne(ctx, entry)
	return err
}

func (r *progressRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ProgressEntry, error) {
	var entry models.ProgressEntry
	err := r.entries.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *progressRepository) ListByKPI(ctx context.Context, kpiID primitive.ObjectID) ([]models.ProgressEntry, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "reporting_date", Value: -1},
		{Key: "created_at", Value: -1},
	})
	cursor, err := r.entries.Find(ctx, bson.M{"kpi_id": kpiID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.ProgressEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *progressRepository) ExistsForDate(ctx context.Context, kpiID primitive.ObjectID, date time.Time) (bool, error) {
	count, err := r.entries.CountDocuments(ctx, bson.M{"kpi_id": kpiID, "reporting_date": date})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *progressRepository) MarkVerified(ctx context.Context, id primitive.ObjectID, verifierID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"state":       models.EntryVerified,
		"verifier_id": verifierID,
		"resolved_at": at,
	}}
	return r.resolvePending(ctx, id, update)
}

func (r *progressRepository) MarkRejected(ctx context.Context, id primitive.ObjectID, verifierID, reason string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"state":            models.EntryRejected,
		"verifier_id":      verifierID,
		"rejection_reason": reason,
		"resolved_at":      at,
	}}
	return r.resolvePending(ctx, id, update)
}

func (r *progressRepository) resolvePending(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.entries.UpdateOne(ctx, bson.M{"_id": id, "state": models.EntryPending}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.Wrap(apperrors.KindStateConflict, apperrors.ErrAlreadyResolved)
	}
	return nil
}

func (r *progressRepository) LatestVerified(ctx context.Context, kpiID primitive.ObjectID) (*models.ProgressEntry, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "reporting_date", Value: -1},
		{Key: "created_at", Value: -1},
	})
	var entry models.ProgressEntry
	err := r.entries.FindOne(ctx, bson.M{
		"kpi_id":       kpiID,
		"state":        models.EntryVerified,
		"milestone_id": nil,
	}, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *progressRepository) HasAny(ctx context.Context, kpiID primitive.ObjectID) (bool, error) {
	count, err := r.entries.CountDocuments(ctx, bson.M{"kpi_id": kpiID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *progressRepository) CountResolved(ctx context.Context, kpiID primitive.ObjectID) (int64, int64, error) {
	verified, err := r.entries.CountDocuments(ctx, bson.M{"kpi_id": kpiID, "state": models.EntryVerified})
	if err != nil {
		return 0, 0, err
	}
	rejected, err := r.entries.CountDocuments(ctx, bson.M{"kpi_id": kpiID, "state": models.EntryRejected})
	if err != nil {
		return 0, 0, err
	}
	return verified, rejected, nil
}
