package duty

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// maxOccurrences caps expansion so a distant end date cannot flood the
// schedule table.
const maxOccurrences = 366

// rruleWeekdays maps stored weekday numbers, 0 Sunday through 6 Saturday.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ExpandRecurrence generates the occurrence dates for a base schedule,
// excluding the base date itself. Dates run strictly after the base date up
// to and including the end date.
func ExpandRecurrence(base time.Time, rec models.Recurrence) ([]time.Time, error) {
	if rec.Type == "" || rec.Type == models.RecurrenceNone {
		return nil, nil
	}
	if rec.EndDate == nil {
		return nil, fmt.Errorf("%w: recurrence requires an end date", domain.ErrValidation)
	}
	base = truncateDate(base)
	end := truncateDate(*rec.EndDate)
	if end.Before(base) {
		return nil, fmt.Errorf("%w: recurrence end date before schedule date", domain.ErrValidation)
	}

	opt := rrule.ROption{Dtstart: base, Until: end}
	switch rec.Type {
	case models.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case models.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		days, err := normalizeDays(rec.Days)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case models.RecurrenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case models.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("%w: unknown recurrence type %q", domain.ErrValidation, rec.Type)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var out []time.Time
	next := rule.Iterator()
	for len(out) < maxOccurrences {
		n, ok := next()
		if !ok || n.After(end) {
			break
		}
		if !n.After(base) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// normalizeDays sorts and dedupes weekday numbers 0 (Sunday) through 6.
func normalizeDays(days []int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", domain.ErrValidation, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

// Occurrence clones the base schedule onto a new date. Generated rows always
// start as drafts regardless of the base status.
func Occurrence(base *models.DutySchedule, date time.Time) *models.DutySchedule {
	return &models.DutySchedule{
		OrganizationID:   base.OrganizationID,
		Title:            base.Title,
		Location:         base.Location,
		Date:             date,
		StartTime:        base.StartTime,
		EndTime:          base.EndTime,
		RequiredOfficers: base.RequiredOfficers,
		Status:           models.ScheduleDraft,
		Recurrence:       models.Recurrence{Type: models.RecurrenceNone},
		CreatedBy:        base.CreatedBy,
	}
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
