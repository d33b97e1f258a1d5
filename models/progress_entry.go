package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EntrySource string

const (
	SourceManual EntrySource = "manual"
	SourceUpload EntrySource = "upload"
	SourceAPI    EntrySource = "api"
	SourceSystem EntrySource = "system"
)

type EntryState string

const (
	EntryPending  EntryState = "pending"
	EntryVerified EntryState = "verified"
	EntryRejected EntryState = "rejected"
)

// ProgressEntry is one reported measurement against a KPI. Entries are
// immutable once resolved: a correction is always a new submission.
//
// MilestoneID, when set, routes the verified value to that milestone's
// completion percentage instead of the KPI's current value; the entry still
// belongs to the owning KPI.
type ProgressEntry struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	KPIID           primitive.ObjectID  `json:"kpi_id" bson:"kpi_id"`
	MilestoneID     *primitive.ObjectID `json:"milestone_id,omitempty" bson:"milestone_id,omitempty"`
	Value           float64             `json:"value" bson:"value"`
	ReportingDate   time.Time           `json:"reporting_date" bson:"reporting_date"`
	Source          EntrySource         `json:"source" bson:"source"`
	State           EntryState          `json:"state" bson:"state"`
	ReporterID      string              `json:"reporter_id" bson:"reporter_id"`
	VerifierID      *string             `json:"verifier_id" bson:"verifier_id"`
	RejectionReason *string             `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	Notes           string              `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	ResolvedAt      *time.Time          `json:"resolved_at" bson:"resolved_at"`
}

// Milestone hangs off a KPI with its own completion percentage and due
// date. It feeds schedule-risk and deadline alerting, never value rollups.
type Milestone struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	KPIID             primitive.ObjectID `json:"kpi_id" bson:"kpi_id"`
	Name              string             `json:"name" bson:"name"`
	CompletionPercent float64            `json:"completion_percent" bson:"completion_percent"`
	DueDate           time.Time          `json:"due_date" bson:"due_date"`
	Metadata          Metadata           `json:"metadata" bson:"metadata"`
}
