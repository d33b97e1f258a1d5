package models

import "time"

// IngestRow is one parsed row from a bulk upload file, validated before any
// entry is created.
type IngestRow struct {
	RowNumber     int
	KPIID         string `validate:"required_without=MilestoneID"`
	MilestoneID   string
	ReportingDate string `validate:"required,datetime=2006-01-02"`
	Value         string `validate:"required"`
	Notes         string
	EntryType     string `validate:"omitempty,oneof=manual upload api system"`
}

type RowStatus string

const (
	RowProcessed RowStatus = "processed"
	RowConflict  RowStatus = "conflict"
	RowErrored   RowStatus = "error"
)

type RowResult struct {
	Row     int       `json:"row"`
	Status  RowStatus `json:"status"`
	EntryID string    `json:"entry_id,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// BatchResult is the caller-facing report of a bulk ingestion run. Row
// failures are recorded, never fatal: only a systemic failure aborts a
// batch.
type BatchResult struct {
	BatchID    string      `json:"batch_id"`
	Processed  int         `json:"processed"`
	Skipped    int         `json:"skipped"`
	Errored    int         `json:"errored"`
	Rows       []RowResult `json:"rows"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
