package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes bootstraps the indexes the engine's hot paths rely on.
func CreateIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// KPI lookup by unique code, plus the rollup constituent scans.
	kpiIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetName("idx_code_unique").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "pillar_id", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().SetName("idx_pillar_active"),
		},
		{
			Keys: bson.D{
				{Key: "department_id", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().SetName("idx_department_active"),
		},
	}
	if _, err := db.Collection("kpis").Indexes().CreateMany(ctx, kpiIndexes); err != nil {
		return fmt.Errorf("create kpi indexes: %w", err)
	}

	// Ledger: conflict detection on (kpi, date) and the authoritative-entry
	// ordering query.
	entryIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "kpi_id", Value: 1},
				{Key: "reporting_date", Value: 1},
			},
			Options: options.Index().SetName("idx_kpi_reporting_date"),
		},
		{
			Keys: bson.D{
				{Key: "kpi_id", Value: 1},
				{Key: "state", Value: 1},
				{Key: "reporting_date", Value: -1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_kpi_state_ordering"),
		},
	}
	if _, err := db.Collection("progress_entries").Indexes().CreateMany(ctx, entryIndexes); err != nil {
		return fmt.Errorf("create progress entry indexes: %w", err)
	}

	milestoneIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kpi_id", Value: 1}},
			Options: options.Index().SetName("idx_milestone_kpi"),
		},
		{
			Keys:    bson.D{{Key: "due_date", Value: 1}},
			Options: options.Index().SetName("idx_milestone_due"),
		},
	}
	if _, err := db.Collection("milestones").Indexes().CreateMany(ctx, milestoneIndexes); err != nil {
		return fmt.Errorf("create milestone indexes: %w", err)
	}

	alertIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subject.kind", Value: 1},
				{Key: "subject.id", Value: 1},
				{Key: "type", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_alert_subject"),
		},
		{
			Keys: bson.D{
				{Key: "read", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_alert_read"),
		},
	}
	if _, err := db.Collection("alerts").Indexes().CreateMany(ctx, alertIndexes); err != nil {
		return fmt.Errorf("create alert indexes: %w", err)
	}

	pillarIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "initiative_id", Value: 1}},
			Options: options.Index().SetName("idx_pillar_initiative"),
		},
	}
	if _, err := db.Collection("pillars").Indexes().CreateMany(ctx, pillarIndexes); err != nil {
		return fmt.Errorf("create pillar indexes: %w", err)
	}

	return nil
}
