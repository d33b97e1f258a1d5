package repository

import (
	"context"
	"time"

	"kpiengine/apperrors"
	"kpiengine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AlertRepository interface {
	Insert(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, unreadOnly bool, limit int64) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id primitive.ObjectID) error
}

type alertRepository struct {
	alerts *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) AlertRepository {
	return &alertRepository{alerts: db.Collection("alerts")}
}

func (r *alertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	alert.ID = primitive.NewObjectID()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	_, err := r.alerts.InsertOne(ctx, alert)
	return err
}

func (r *alertRepository) List(ctx context.Context, unreadOnly bool, limit int64) ([]models.Alert, error) {
	filter := bson.M{}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.alerts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err = cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) Acknowledge(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.alerts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"read": true, "acknowledged": true},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.Wrap(apperrors.KindNotFound, apperrors.ErrNotFound)
	}
	return nil
}
