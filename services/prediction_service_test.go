package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kpiengine/logger"
	"kpiengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	score *models.RiskScore
	err   error
	last  *models.RiskInput
}

func (s *stubScorer) Score(_ context.Context, in models.RiskInput) (*models.RiskScore, error) {
	s.last = &in
	return s.score, s.err
}

func TestAnnotateStoresTheScore(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	scorer := &stubScorer{score: &models.RiskScore{SuccessProbability: 0.72, RiskLevel: "medium", Confidence: 0.9}}
	svc := NewPredictionService(scorer, fakeKPIRepo{s}, logger.NewNop())

	now := time.Now()
	reported := now.AddDate(0, 0, -10)
	kpi := &models.KPI{
		Code:              "GOV-003",
		TargetValue:       100,
		CurrentValue:      fptr(40),
		Frequency:         models.FrequencyMonthly,
		WindowStart:       now.AddDate(0, 0, -50),
		WindowEnd:         now.AddDate(0, 0, 50),
		AuthoritativeDate: &reported,
		Active:            true,
	}
	require.NoError(t, fakeKPIRepo{s}.Create(ctx, kpi))

	svc.Annotate(ctx, kpi, now)

	require.NotNil(t, kpi.Risk)
	assert.Equal(t, 0.72, kpi.Risk.SuccessProbability)
	assert.Equal(t, "medium", kpi.Risk.RiskLevel)

	stored, err := fakeKPIRepo{s}.GetByID(ctx, kpi.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Risk)
	assert.Equal(t, 0.72, stored.Risk.SuccessProbability)

	require.NotNil(t, scorer.last)
	assert.InDelta(t, 40.0, scorer.last.Progress, 1e-9)
	// Ten days behind a half-elapsed hundred-day schedule.
	assert.InDelta(t, 10.0, scorer.last.DelayDays, 0.5)
	assert.Equal(t, 1.0, scorer.last.EngagementScore)
}

func TestAnnotateIsBestEffort(t *testing.T) {
	ctx := context.Background()

	t.Run("no collaborator configured", func(t *testing.T) {
		s := newMemStore()
		svc := NewPredictionService(nil, fakeKPIRepo{s}, logger.NewNop())
		kpi := &models.KPI{Code: "X", Active: true}
		require.NoError(t, fakeKPIRepo{s}.Create(ctx, kpi))

		svc.Annotate(ctx, kpi, time.Now())
		assert.Nil(t, kpi.Risk)
	})

	t.Run("collaborator failure leaves the kpi unannotated", func(t *testing.T) {
		s := newMemStore()
		scorer := &stubScorer{err: errors.New("upstream 503")}
		svc := NewPredictionService(scorer, fakeKPIRepo{s}, logger.NewNop())
		kpi := &models.KPI{Code: "X", TargetValue: 100, Active: true}
		require.NoError(t, fakeKPIRepo{s}.Create(ctx, kpi))

		svc.Annotate(ctx, kpi, time.Now())
		assert.Nil(t, kpi.Risk)

		stored, err := fakeKPIRepo{s}.GetByID(ctx, kpi.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.Risk)
	})
}
