package services

import (
	"context"
	"testing"
	"time"

	"kpiengine/apperrors"
	"kpiengine/logger"
	"kpiengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture(t *testing.T) (*memStore, LedgerService, *models.KPI) {
	t.Helper()
	s := newMemStore()
	svc := NewLedgerService(fakeKPIRepo{s}, fakeProgressRepo{s}, logger.NewNop())

	kpi := &models.KPI{
		Code:            "FIN-002",
		TargetValue:     500,
		MeasurementType: models.MeasurementCurrency,
		Weight:          1,
		Active:          true,
	}
	require.NoError(t, fakeKPIRepo{s}.Create(context.Background(), kpi))
	return s, svc, kpi
}

func yesterday() time.Time {
	return time.Now().AddDate(0, 0, -1).Truncate(24 * time.Hour)
}

func TestSubmitAppendsPendingEntry(t *testing.T) {
	ctx := context.Background()
	s, svc, kpi := newLedgerFixture(t)

	entry, err := svc.Submit(ctx, SubmitCommand{
		KPIID:         kpi.ID,
		Value:         120,
		ReportingDate: yesterday(),
		ReporterID:    "alice",
		Notes:         "Q3 close",
	})
	require.NoError(t, err)

	assert.Equal(t, models.EntryPending, entry.State)
	assert.Equal(t, models.SourceManual, entry.Source)
	assert.False(t, entry.ID.IsZero())
	assert.Nil(t, entry.VerifierID)

	// Submission never promotes a value.
	kpiStored, err := fakeKPIRepo{s}.GetByID(ctx, kpi.ID)
	require.NoError(t, err)
	assert.Nil(t, kpiStored.CurrentValue)
	assert.Equal(t, models.KPIStatus(""), kpiStored.Status)
}

func TestSubmitRejectsFutureReportingDate(t *testing.T) {
	ctx := context.Background()
	_, svc, kpi := newLedgerFixture(t)

	_, err := svc.Submit(ctx, SubmitCommand{
		KPIID:         kpi.ID,
		Value:         10,
		ReportingDate: time.Now().AddDate(0, 0, 3),
		ReporterID:    "alice",
	})
	require.ErrorIs(t, err, apperrors.ErrOutOfWindow)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, kind)
}

func TestSubmitEnforcesMeasurementDomain(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mt      models.MeasurementType
		value   float64
		wantErr bool
	}{
		{"percentage in range", models.MeasurementPercentage, 55, false},
		{"percentage above 100", models.MeasurementPercentage, 101, true},
		{"percentage negative", models.MeasurementPercentage, -1, true},
		{"currency negative", models.MeasurementCurrency, -50, true},
		{"ratio negative", models.MeasurementRatio, -0.1, true},
		{"number may be negative", models.MeasurementNumber, -12, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			svc := NewLedgerService(fakeKPIRepo{s}, fakeProgressRepo{s}, logger.NewNop())
			kpi := &models.KPI{Code: "X", TargetValue: 100, MeasurementType: tt.mt, Active: true}
			require.NoError(t, fakeKPIRepo{s}.Create(ctx, kpi))

			_, err := svc.Submit(ctx, SubmitCommand{
				KPIID:         kpi.ID,
				Value:         tt.value,
				ReportingDate: yesterday(),
				ReporterID:    "alice",
			})
			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrInvalidValue)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSubmitChecksMilestoneOwnership(t *testing.T) {
	ctx := context.Background()
	s, svc, kpi := newLedgerFixture(t)

	other := &models.KPI{Code: "OTHER", TargetValue: 10, MeasurementType: models.MeasurementNumber, Active: true}
	require.NoError(t, fakeKPIRepo{s}.Create(ctx, other))
	ms := &models.Milestone{KPIID: other.ID, Name: "foreign"}
	require.NoError(t, fakeKPIRepo{s}.CreateMilestone(ctx, ms))

	_, err := svc.Submit(ctx, SubmitCommand{
		KPIID:         kpi.ID,
		MilestoneID:   &ms.ID,
		Value:         50,
		ReportingDate: yesterday(),
		ReporterID:    "alice",
	})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindIntegrity, kind)
}

func TestSubmitMilestoneValueIsAlwaysPercentage(t *testing.T) {
	ctx := context.Background()
	s, svc, kpi := newLedgerFixture(t)

	ms := &models.Milestone{KPIID: kpi.ID, Name: "phase 1"}
	require.NoError(t, fakeKPIRepo{s}.CreateMilestone(ctx, ms))

	// The KPI measures currency, but milestone rows are completion
	// percentages and stay in [0, 100].
	_, err := svc.Submit(ctx, SubmitCommand{
		KPIID:         kpi.ID,
		MilestoneID:   &ms.ID,
		Value:         250,
		ReportingDate: yesterday(),
		ReporterID:    "alice",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidValue)

	_, err = svc.Submit(ctx, SubmitCommand{
		KPIID:         kpi.ID,
		MilestoneID:   &ms.ID,
		Value:         75,
		ReportingDate: yesterday(),
		ReporterID:    "alice",
	})
	require.NoError(t, err)
}
