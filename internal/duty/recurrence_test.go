package duty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandNoneProducesNothing(t *testing.T) {
	out, err := ExpandRecurrence(date(2026, time.March, 2), models.Recurrence{Type: models.RecurrenceNone})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExpandRequiresEndDate(t *testing.T) {
	_, err := ExpandRecurrence(date(2026, time.March, 2), models.Recurrence{Type: models.RecurrenceDaily})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExpandDaily(t *testing.T) {
	end := date(2026, time.March, 5)
	out, err := ExpandRecurrence(date(2026, time.March, 2), models.Recurrence{Type: models.RecurrenceDaily, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, date(2026, time.March, 3), out[0])
	assert.Equal(t, date(2026, time.March, 5), out[2], "end date itself is included")
}

func TestExpandWeeklyMonWedTwoWeeks(t *testing.T) {
	// Monday 2026-03-02 start, Mon/Wed, end two weeks later on Monday
	// 2026-03-16: Wed 3/4, Mon 3/9, Wed 3/11, Mon 3/16.
	start := date(2026, time.March, 2)
	end := start.AddDate(0, 0, 14)
	out, err := ExpandRecurrence(start, models.Recurrence{
		Type:    models.RecurrenceWeekly,
		Days:    []int{1, 3},
		EndDate: &end,
	})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, date(2026, time.March, 4), out[0])
	assert.Equal(t, date(2026, time.March, 9), out[1])
	assert.Equal(t, date(2026, time.March, 11), out[2])
	assert.Equal(t, date(2026, time.March, 16), out[3])
	for _, d := range out {
		wd := d.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Wednesday)
	}
}

func TestExpandWeeklyWrapsToNextWeek(t *testing.T) {
	// Friday start with only Tuesday configured wraps to next Tuesday.
	start := date(2026, time.March, 6)
	end := date(2026, time.March, 12)
	out, err := ExpandRecurrence(start, models.Recurrence{
		Type:    models.RecurrenceWeekly,
		Days:    []int{2},
		EndDate: &end,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, date(2026, time.March, 10), out[0])
}

func TestExpandWeeklyNoDays(t *testing.T) {
	start := date(2026, time.March, 2)
	end := start.AddDate(0, 0, 21)
	out, err := ExpandRecurrence(start, models.Recurrence{Type: models.RecurrenceWeekly, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, start.AddDate(0, 0, 7), out[0])
}

func TestExpandBiweekly(t *testing.T) {
	start := date(2026, time.March, 2)
	end := start.AddDate(0, 0, 28)
	out, err := ExpandRecurrence(start, models.Recurrence{Type: models.RecurrenceBiweekly, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, start.AddDate(0, 0, 14), out[0])
	assert.Equal(t, start.AddDate(0, 0, 28), out[1])
}

func TestExpandMonthlyUsesCalendarArithmetic(t *testing.T) {
	start := date(2026, time.January, 15)
	end := date(2026, time.April, 15)
	out, err := ExpandRecurrence(start, models.Recurrence{Type: models.RecurrenceMonthly, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, date(2026, time.February, 15), out[0], "February keeps the day of month, not +30 days")
	assert.Equal(t, date(2026, time.March, 15), out[1])
	assert.Equal(t, date(2026, time.April, 15), out[2])
}

func TestExpandRejectsBadWeekday(t *testing.T) {
	end := date(2026, time.March, 30)
	_, err := ExpandRecurrence(date(2026, time.March, 2), models.Recurrence{
		Type:    models.RecurrenceWeekly,
		Days:    []int{7},
		EndDate: &end,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOccurrenceAlwaysDraft(t *testing.T) {
	end := date(2026, time.June, 1)
	base := &models.DutySchedule{
		Title:            "Night patrol",
		Location:         "North gate",
		Date:             date(2026, time.March, 2),
		StartTime:        "22:00",
		EndTime:          "06:00",
		RequiredOfficers: 2,
		Status:           models.SchedulePublished,
		Recurrence:       models.Recurrence{Type: models.RecurrenceWeekly, EndDate: &end},
	}
	occ := Occurrence(base, date(2026, time.March, 9))
	assert.Equal(t, models.ScheduleDraft, occ.Status, "occurrences never inherit published status")
	assert.Equal(t, models.RecurrenceNone, occ.Recurrence.Type)
	assert.Equal(t, base.Title, occ.Title)
	assert.Equal(t, base.RequiredOfficers, occ.RequiredOfficers)
}
