package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertKPIUpdate   AlertType = "kpi_update"
	AlertDeadline    AlertType = "deadline"
)

type AlertPriority string

const (
	PriorityLow      AlertPriority = "low"
	PriorityMedium   AlertPriority = "medium"
	PriorityHigh     AlertPriority = "high"
	PriorityCritical AlertPriority = "critical"
)

type SubjectKind string

const (
	SubjectKPI       SubjectKind = "kpi"
	SubjectMilestone SubjectKind = "milestone"
	SubjectPillar    SubjectKind = "pillar"
)

// SubjectRef is a tagged reference to the heterogeneous thing an alert is
// about, instead of a dynamically dispatched polymorphic relation.
type SubjectRef struct {
	Kind SubjectKind        `json:"kind" bson:"kind"`
	ID   primitive.ObjectID `json:"id" bson:"id"`
}

// Alert is an immutable event record. Consumers only ever flip the read and
// acknowledged flags.
type Alert struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EventID      string             `json:"event_id" bson:"event_id"`
	Type         AlertType          `json:"type" bson:"type"`
	Priority     AlertPriority      `json:"priority" bson:"priority"`
	Subject      SubjectRef         `json:"subject" bson:"subject"`
	Message      string             `json:"message" bson:"message"`
	Recipient    string             `json:"recipient,omitempty" bson:"recipient,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Read         bool               `json:"read" bson:"read"`
	Acknowledged bool               `json:"acknowledged" bson:"acknowledged"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// AlertEvent is the outbound shape pushed to the notification collaborator.
type AlertEvent struct {
	EventID     string            `json:"event_id"`
	Type        AlertType         `json:"type"`
	Priority    AlertPriority     `json:"priority"`
	SubjectType SubjectKind       `json:"subject_type"`
	SubjectID   string            `json:"subject_id"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RiskInput and RiskScore are the opaque exchange with the prediction
// collaborator.
type RiskInput struct {
	Progress          float64 `json:"progress"`
	BudgetUtilization float64 `json:"budget_utilization"`
	DelayDays         float64 `json:"delay_days"`
	EngagementScore   float64 `json:"engagement_score"`
}

type RiskScore struct {
	SuccessProbability float64 `json:"success_probability"`
	RiskLevel          string  `json:"risk_level"`
	Confidence         float64 `json:"confidence"`
}
