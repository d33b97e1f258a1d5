package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MeasurementType string

const (
	MeasurementPercentage MeasurementType = "percentage"
	MeasurementNumber     MeasurementType = "number"
	MeasurementCurrency   MeasurementType = "currency"
	MeasurementRatio      MeasurementType = "ratio"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

type KPIStatus string

const (
	StatusNotStarted KPIStatus = "not_started"
	StatusOnTrack    KPIStatus = "on_track"
	StatusAtRisk     KPIStatus = "at_risk"
	StatusBehind     KPIStatus = "behind"
	StatusCompleted  KPIStatus = "completed"
)

type Metadata struct {
	CreatedBy string    `json:"created_by" bson:"created_by"`
	UpdatedBy string    `json:"updated_by" bson:"updated_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// RiskAnnotation is the opaque result of the external prediction
// collaborator. It never feeds status classification.
type RiskAnnotation struct {
	SuccessProbability float64   `json:"success_probability" bson:"success_probability"`
	RiskLevel          string    `json:"risk_level" bson:"risk_level"`
	Confidence         float64   `json:"confidence" bson:"confidence"`
	ScoredAt           time.Time `json:"scored_at" bson:"scored_at"`
}

// KPI is the unit of measurable progress toward a target.
//
// CurrentValue is derived: it always mirrors the latest verified progress
// entry by reporting date (creation order breaking ties) and is only ever
// written by the verification workflow. It stays nil until the first entry
// is verified.
type KPI struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Code               string              `json:"code" bson:"code"`
	Name               string              `json:"name" bson:"name"`
	TargetValue        float64             `json:"target_value" bson:"target_value"`
	CurrentValue       *float64            `json:"current_value" bson:"current_value"`
	Unit               string              `json:"unit" bson:"unit"`
	MeasurementType    MeasurementType     `json:"measurement_type" bson:"measurement_type"`
	Frequency          Frequency           `json:"frequency" bson:"frequency"`
	Weight             float64             `json:"weight" bson:"weight"`
	WindowStart        time.Time           `json:"window_start" bson:"window_start"`
	WindowEnd          time.Time           `json:"window_end" bson:"window_end"`
	Status             KPIStatus           `json:"status" bson:"status"`
	PillarID           primitive.ObjectID  `json:"pillar_id" bson:"pillar_id"`
	DepartmentID       *primitive.ObjectID `json:"department_id" bson:"department_id,omitempty"`
	Active             bool                `json:"active" bson:"active"`
	AuthoritativeDate  *time.Time          `json:"authoritative_date" bson:"authoritative_date"`
	AuthoritativeEntry *primitive.ObjectID `json:"authoritative_entry" bson:"authoritative_entry"`
	Risk               *RiskAnnotation     `json:"risk,omitempty" bson:"risk,omitempty"`
	Metadata           Metadata            `json:"metadata" bson:"metadata"`
}

// EffectiveWeight defaults unset or nonsense weights to a neutral 1.0 so
// rollups never divide by zero.
func (k *KPI) EffectiveWeight() float64 {
	if k.Weight <= 0 {
		return 1.0
	}
	return k.Weight
}

// PercentOfTarget reports verified progress as a percentage of target,
// clamped to [0, 100]. A zero target or no verified value reads as 0.
func (k *KPI) PercentOfTarget() float64 {
	if k.CurrentValue == nil {
		return 0
	}
	return PercentOfTarget(*k.CurrentValue, k.TargetValue)
}

func PercentOfTarget(current, target float64) float64 {
	if target == 0 {
		return 0
	}
	pct := current / target * 100
	if pct < 0 || math.IsNaN(pct) {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
