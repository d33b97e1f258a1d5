package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EntityType string

const (
	EntityKPI        EntityType = "kpi"
	EntityPillar     EntityType = "pillar"
	EntityDepartment EntityType = "department"
	EntityInitiative EntityType = "initiative"
)

// RollupState is the cached derived progress of an aggregation root. It is
// never ground truth: any write carries a monotonically increasing version
// so overlapping recomputes discard stale results.
type RollupState struct {
	Percentage float64   `json:"percentage" bson:"percentage"`
	Version    int64     `json:"version" bson:"version"`
	ComputedAt time.Time `json:"computed_at" bson:"computed_at"`
}

// Pillar aggregates KPIs and optionally feeds an Initiative.
type Pillar struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name         string              `json:"name" bson:"name"`
	InitiativeID *primitive.ObjectID `json:"initiative_id,omitempty" bson:"initiative_id,omitempty"`
	Rollup       RollupState         `json:"rollup" bson:"rollup"`
	Metadata     Metadata            `json:"metadata" bson:"metadata"`
}

type Department struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name     string             `json:"name" bson:"name"`
	Rollup   RollupState        `json:"rollup" bson:"rollup"`
	Metadata Metadata           `json:"metadata" bson:"metadata"`
}

type Initiative struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name     string             `json:"name" bson:"name"`
	Rollup   RollupState        `json:"rollup" bson:"rollup"`
	Metadata Metadata           `json:"metadata" bson:"metadata"`
}

// ProgressSnapshot is what the rollup query endpoint returns.
type ProgressSnapshot struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Percentage float64    `json:"percentage"`
	AsOf       time.Time  `json:"as_of"`
}
