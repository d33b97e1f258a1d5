package repository

import (
	"context"
	"errors"
	"fmt"

	"kpiengine/apperrors"
	"kpiengine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RollupRepository stores the aggregation roots and their cached derived
// percentages.
type RollupRepository interface {
	CreatePillar(ctx context.Context, p *models.Pillar) error
	GetPillar(ctx context.Context, id primitive.ObjectID) (*models.Pillar, error)
	ListPillarsByInitiative(ctx context.Context, initiativeID primitive.ObjectID) ([]models.Pillar, error)
	DeletePillar(ctx context.Context, id primitive.ObjectID) error

	CreateDepartment(ctx context.Context, d *models.Department) error
	GetDepartment(ctx context.Context, id primitive.ObjectID) (*models.Department, error)

	CreateInitiative(ctx context.Context, i *models.Initiative) error
	GetInitiative(ctx context.Context, id primitive.ObjectID) (*models.Initiative, error)

	// SaveRollup writes a cached percentage only when its version beats the
	// stored one. Returns false when a newer recompute already landed, which
	// callers treat as a benign lost race.
	SaveRollup(ctx context.Context, entity models.EntityType, id primitive.ObjectID, state models.RollupState) (bool, error)
}

type rollupRepository struct {
	pillars     *mongo.Collection
	departments *mongo.Collection
	initiatives *mongo.Collection
}

func NewRollupRepository(db *mongo.Database) RollupRepository {
	return &rollupRepository{
		pillars:     db.Collection("pillars"),
		departments: db.Collection("departments"),
		initiatives: db.Collection("initiatives"),
	}
}

func (r *rollupRepository) CreatePillar(ctx context.Context, p *models.Pillar) error {
	p.ID = primitive.NewObjectID()
	_, err := r.pillars.InsertOne(ctx, p)
	return err
}

func (r *rollupRepository) GetPillar(ctx context.Context, id primitive.ObjectID) (*models.Pillar, error) {
	var p models.Pillar
	if err := r.decodeOne(ctx, r.pillars, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *rollupRepository) ListPillarsByInitiative(ctx context.Context, initiativeID primitive.ObjectID) ([]models.Pillar, error) {
	cursor, err := r.pillars.Find(ctx, bson.M{"initiative_id": initiativeID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var pillars []models.Pillar
	if err = cursor.All(ctx, &pillars); err != nil {
		return nil, err
	}
	return pillars, nil
}

func (r *rollupRepository) DeletePillar(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.pillars.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return nil
}

func (r *rollupRepository) CreateDepartment(ctx context.Context, d *models.Department) error {
	d.ID = primitive.NewObjectID()
	_, err := r.departments.InsertOne(ctx, d)
	return err
}

func (r *rollupRepository) GetDepartment(ctx context.Context, id primitive.ObjectID) (*models.Department, error) {
	var d models.Department
	if err := r.decodeOne(ctx, r.departments, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *rollupRepository) CreateInitiative(ctx context.Context, i *models.Initiative) error {
	i.ID = primitive.NewObjectID()
	_, err := r.initiatives.InsertOne(ctx, i)
	return err
}

func (r *rollupRepository) GetInitiative(ctx context.Context, id primitive.ObjectID) (*models.Initiative, error) {
	var i models.Initiative
	if err := r.decodeOne(ctx, r.initiatives, id, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *rollupRepository) decodeOne(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, out interface{}) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return err
}

func (r *rollupRepository) SaveRollup(ctx context.Context, entity models.EntityType, id primitive.ObjectID, state models.RollupState) (bool, error) {
	coll, err := r.collectionFor(entity)
	if err != nil {
		return false, err
	}
	filter := bson.M{"_id": id, "rollup.version": bson.M{"$lt": state.Version}}
	result, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"rollup": state}})
	if err != nil {
		return false, err
	}
	if result.MatchedCount == 0 {
		// Either the root is gone or a newer version is already stored.
		count, err := coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return false, err
		}
		if count == 0 {
			return false, apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
		}
		return false, nil
	}
	return true, nil
}

func (r *rollupRepository) collectionFor(entity models.EntityType) (*mongo.Collection, error) {
	switch entity {
	case models.EntityPillar:
		return r.pillars, nil
	case models.EntityDepartment:
		return r.departments, nil
	case models.EntityInitiative:
		return r.initiatives, nil
	default:
		return nil, fmt.Errorf("no rollup collection for entity type %q", entity)
	}
}
