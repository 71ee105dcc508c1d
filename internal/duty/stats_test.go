package duty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/models"
)

func TestOfficerStatsEmpty(t *testing.T) {
	s := ComputeOfficerStats(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.CompletionRate)
	assert.Zero(t, s.Reliability)
}

func TestOfficerStatsReliabilityClamped(t *testing.T) {
	assignments := []models.DutyAssignment{
		{Status: models.AssignmentNoShow},
		{Status: models.AssignmentNoShow},
		{Status: models.AssignmentCompleted},
	}
	s := ComputeOfficerStats(assignments)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.NoShow)
	assert.InDelta(t, 1.0/3.0, s.CompletionRate, 1e-9)
	assert.Zero(t, s.Reliability, "(1-2)/3*100 clamps to 0")
}

func TestOfficerStats(t *testing.T) {
	assignments := []models.DutyAssignment{
		{Status: models.AssignmentCompleted},
		{Status: models.AssignmentCompleted},
		{Status: models.AssignmentCompleted},
		{Status: models.AssignmentDeclined},
		{Status: models.AssignmentNoShow},
	}
	s := ComputeOfficerStats(assignments)
	assert.InDelta(t, 0.6, s.CompletionRate, 1e-9)
	assert.InDelta(t, 40.0, s.Reliability, 1e-9)
}

func TestFillRateDailyBuckets(t *testing.T) {
	from := date(2026, time.March, 2)
	to := date(2026, time.March, 8)
	fills := []ScheduleFill{
		{Date: date(2026, time.March, 2), Required: 2, Filled: 2},
		{Date: date(2026, time.March, 2), Required: 2, Filled: 1},
		{Date: date(2026, time.March, 4), Required: 3, Filled: 0},
	}
	buckets := ComputeFillRate(fills, from, to)
	require.Len(t, buckets, 2)
	assert.Equal(t, date(2026, time.March, 2), buckets[0].Start)
	assert.Equal(t, 4, buckets[0].Required)
	assert.Equal(t, 3, buckets[0].Filled)
	assert.InDelta(t, 0.75, buckets[0].FillRate, 1e-9)
	assert.Zero(t, buckets[1].FillRate)
}

func TestFillRateWeeklyBucketsOverThirtyDays(t *testing.T) {
	from := date(2026, time.March, 2)
	to := date(2026, time.April, 20)
	fills := []ScheduleFill{
		{Date: date(2026, time.March, 2), Required: 2, Filled: 2}, // Monday
		{Date: date(2026, time.March, 8), Required: 2, Filled: 1}, // Sunday, same ISO week
		{Date: date(2026, time.March, 9), Required: 1, Filled: 1}, // next Monday
	}
	buckets := ComputeFillRate(fills, from, to)
	require.Len(t, buckets, 2)
	assert.Equal(t, date(2026, time.March, 2), buckets[0].Start)
	assert.Equal(t, 4, buckets[0].Required)
	assert.InDelta(t, 0.75, buckets[0].FillRate, 1e-9)
	assert.Equal(t, date(2026, time.March, 9), buckets[1].Start)
}
