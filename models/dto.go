package models

import "time"

// Request DTOs: every mutating operation has an explicit, validated shape.
// Actor identity is never part of a payload; it comes from the JWT context.

type CreateKPIRequest struct {
	Code            string     `json:"code" validate:"required"`
	Name            string     `json:"name" validate:"required"`
	TargetValue     float64    `json:"target_value" validate:"required"`
	Unit            string     `json:"unit"`
	MeasurementType string     `json:"measurement_type" validate:"required,oneof=percentage number currency ratio"`
	Frequency       string     `json:"frequency" validate:"required,oneof=monthly quarterly annual"`
	Weight          float64    `json:"weight" validate:"gte=0"`
	WindowStart     time.Time  `json:"window_start" validate:"required"`
	WindowEnd       time.Time  `json:"window_end" validate:"required,gtfield=WindowStart"`
	PillarID        string     `json:"pillar_id" validate:"required"`
	DepartmentID    string     `json:"department_id"`
}

type CreatePillarRequest struct {
	Name         string `json:"name" validate:"required"`
	InitiativeID string `json:"initiative_id"`
}

type CreateDepartmentRequest struct {
	Name string `json:"name" validate:"required"`
}

type CreateInitiativeRequest struct {
	Name string `json:"name" validate:"required"`
}

type CreateMilestoneRequest struct {
	Name    string    `json:"name" validate:"required"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

type SubmitRequest struct {
	KPIID         string   `json:"kpi_id" validate:"required"`
	MilestoneID   string   `json:"milestone_id"`
	Value         *float64 `json:"value" validate:"required"`
	ReportingDate string   `json:"reporting_date" validate:"required,datetime=2006-01-02"`
	Source        string   `json:"source" validate:"omitempty,oneof=manual upload api system"`
	Notes         string   `json:"notes"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}
