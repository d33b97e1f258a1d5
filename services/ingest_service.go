package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"kpiengine/config"
	"kpiengine/logger"
	"kpiengine/models"
	repository "kpiengine/repositories"
	"kpiengine/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// BatchOptions applies to a whole ingestion run.
type BatchOptions struct {
	OverwriteExisting bool
	ReporterID        string
}

// IngestService reconciles bulk upload files into ledger entries. Row
// failures are recorded per row and never abort the batch; only a
// malformed file or unreachable storage does. Ingested entries always land
// pending — verification is a separate, human step.
type IngestService interface {
	IngestFile(ctx context.Context, r io.Reader, opts BatchOptions) (*models.BatchResult, error)
}

type ingestService struct {
	kpis    repository.KPIRepository
	entries repository.ProgressRepository
	ledger  LedgerService
	cfg     config.EngineConfig
	log     *logger.Logger
	now     func() time.Time
}

func NewIngestService(kpis repository.KPIRepository, entries repository.ProgressRepository, ledger LedgerService, cfg config.EngineConfig, log *logger.Logger) IngestService {
	return &ingestService{kpis: kpis, entries: entries, ledger: ledger, cfg: cfg, log: log, now: time.Now}
}

// resolvedRow is a row after validation: either a submit command or the
// error that disqualified it.
type resolvedRow struct {
	row models.IngestRow
	cmd SubmitCommand
	err error
}

func (s *ingestService) IngestFile(ctx context.Context, r io.Reader, opts BatchOptions) (*models.BatchResult, error) {
	rows, err := parseRows(r)
	if err != nil {
		return nil, fmt.Errorf("parse upload file: %w", err)
	}

	result := &models.BatchResult{
		BatchID:   uuid.NewString(),
		StartedAt: s.now(),
		Rows:      make([]models.RowResult, len(rows)),
	}
	s.log.Info("bulk ingestion started", "batch_id", result.BatchID, "rows", len(rows), "overwrite", opts.OverwriteExisting)

	// Validation touches storage (target resolution), so it runs with
	// bounded parallelism. No KPI lock is held here: locking happens per
	// entry at verification time, never across a batch.
	resolved := make([]resolvedRow, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.IngestParallelism)
	for i := range rows {
		g.Go(func() error {
			resolved[i] = s.resolveRow(gctx, rows[i], opts.ReporterID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Apply in file order so same-KPI rows keep their creation ordering.
	for i := range resolved {
		result.Rows[i] = s.applyRow(ctx, &resolved[i], opts.OverwriteExisting)
		switch result.Rows[i].Status {
		case models.RowProcessed:
			result.Processed++
		case models.RowConflict:
			result.Skipped++
		default:
			result.Errored++
		}
	}

	result.FinishedAt = s.now()
	s.log.Info("bulk ingestion finished",
		"batch_id", result.BatchID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errored", result.Errored,
	)
	return result, nil
}

func (s *ingestService) resolveRow(ctx context.Context, row models.IngestRow, reporterID string) resolvedRow {
	out := resolvedRow{row: row}

	if err := utils.Validate.Struct(row); err != nil {
		out.err = fmt.Errorf("row shape: %w", err)
		return out
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(row.Value), 64)
	if err != nil {
		out.err = fmt.Errorf("value %q is not numeric", row.Value)
		return out
	}
	date, err := time.Parse("2006-01-02", row.ReportingDate)
	if err != nil {
		out.err = fmt.Errorf("reporting date %q is not an ISO date", row.ReportingDate)
		return out
	}

	cmd := SubmitCommand{
		Value:         value,
		ReportingDate: date,
		Source:        models.SourceUpload,
		ReporterID:    reporterID,
		Notes:         row.Notes,
	}
	if row.EntryType != "" {
		cmd.Source = models.EntrySource(row.EntryType)
	}

	if row.MilestoneID != "" {
		msID, err := primitive.ObjectIDFromHex(row.MilestoneID)
		if err != nil {
			out.err = fmt.Errorf("milestone id %q is not a valid id", row.MilestoneID)
			return out
		}
		ms, err := s.kpis.GetMilestone(ctx, msID)
		if err != nil {
			out.err = fmt.Errorf("milestone %s: %w", row.MilestoneID, err)
			return out
		}
		cmd.MilestoneID = &ms.ID
		cmd.KPIID = ms.KPIID
		out.cmd = cmd
		return out
	}

	kpi, err := s.resolveKPI(ctx, row.KPIID)
	if err != nil {
		out.err = fmt.Errorf("kpi %s: %w", row.KPIID, err)
		return out
	}
	cmd.KPIID = kpi.ID
	out.cmd = cmd
	return out
}

// resolveKPI accepts either a hex object id or a KPI code.
func (s *ingestService) resolveKPI(ctx context.Context, ref string) (*models.KPI, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return s.kpis.GetByID(ctx, id)
	}
	return s.kpis.GetByCode(ctx, ref)
}

func (s *ingestService) applyRow(ctx context.Context, rr *resolvedRow, overwrite bool) models.RowResult {
	res := models.RowResult{Row: rr.row.RowNumber}
	if rr.err != nil {
		res.Status = models.RowErrored
		res.Error = rr.err.Error()
		return res
	}

	// Conflict policy: an existing entry for the same KPI and reporting
	// date skips the row unless the batch allows overwriting, in which
	// case a NEW entry is submitted. The old entry is never mutated; the
	// new one supersedes it by ordering once verified.
	exists, err := s.entries.ExistsForDate(ctx, rr.cmd.KPIID, rr.cmd.ReportingDate)
	if err != nil {
		res.Status = models.RowErrored
		res.Error = err.Error()
		return res
	}
	if exists && !overwrite {
		res.Status = models.RowConflict
		res.Error = fmt.Sprintf("entry already exists for %s", rr.row.ReportingDate)
		return res
	}

	entry, err := s.ledger.Submit(ctx, rr.cmd)
	if err != nil {
		res.Status = models.RowErrored
		res.Error = err.Error()
		return res
	}
	res.Status = models.RowProcessed
	res.EntryID = entry.ID.Hex()
	return res
}

// parseRows reads the upload CSV. Column order is free; resolution is by
// header name. Either kpi_id or milestone_id identifies the target, and
// value/completion_percentage are interchangeable.
func parseRows(r io.Reader) ([]models.IngestRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["kpi_id"]; !ok {
		if _, ok := cols["milestone_id"]; !ok {
			return nil, fmt.Errorf("header names neither kpi_id nor milestone_id")
		}
	}

	pick := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []models.IngestRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value := pick(record, "value")
		if value == "" {
			value = pick(record, "completion_percentage")
		}
		rows = append(rows, models.IngestRow{
			RowNumber:     line,
			KPIID:         pick(record, "kpi_id"),
			MilestoneID:   pick(record, "milestone_id"),
			ReportingDate: pick(record, "reporting_date"),
			Value:         value,
			Notes:         pick(record, "notes"),
			EntryType:     pick(record, "entry_type"),
		})
	}
	return rows, nil
}
