package duty

import (
	"sort"
	"time"

	"github.com/chapterhub/backend/internal/models"
)

// OfficerStats summarizes one officer's assignment history.
type OfficerStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Declined       int     `json:"declined"`
	NoShow         int     `json:"no_show"`
	CompletionRate float64 `json:"completion_rate"`
	Reliability    float64 `json:"reliability"`
}

// ComputeOfficerStats derives the completion rate and reliability score
// from a set of assignments. Reliability is (completed - no_show) / total
// scaled to 0..100 and clamped.
func ComputeOfficerStats(assignments []models.DutyAssignment) OfficerStats {
	var s OfficerStats
	for _, a := range assignments {
		s.Total++
		switch a.Status {
		case models.AssignmentCompleted:
			s.Completed++
		case models.AssignmentDeclined:
			s.Declined++
		case models.AssignmentNoShow:
			s.NoShow++
		}
	}
	if s.Total == 0 {
		return s
	}
	s.CompletionRate = float64(s.Completed) / float64(s.Total)
	score := float64(s.Completed-s.NoShow) / float64(s.Total) * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	s.Reliability = score
	return s
}

// FillBucket is one day or week of fill-rate data.
type FillBucket struct {
	Start    time.Time `json:"start"`
	Required int       `json:"required"`
	Filled   int       `json:"filled"`
	FillRate float64   `json:"fill_rate"`
}

// ScheduleFill pairs a schedule's slot demand with its filled count.
// Filled counts assignments that still occupy a slot (assigned, confirmed,
// or completed).
type ScheduleFill struct {
	Date     time.Time
	Required int
	Filled   int
}

// weeklyBucketThreshold is the range length above which fill rates bucket
// by ISO week instead of by day.
const weeklyBucketThreshold = 30 * 24 * time.Hour

// ComputeFillRate buckets schedule demand over [from, to]. Ranges longer
// than 30 days bucket by week (weeks start Monday), shorter ranges by day.
func ComputeFillRate(fills []ScheduleFill, from, to time.Time) []FillBucket {
	weekly := to.Sub(from) > weeklyBucketThreshold
	byStart := map[time.Time]*FillBucket{}
	var order []time.Time
	for _, f := range fills {
		start := truncateDate(f.Date)
		if weekly {
			start = weekStart(start)
		}
		b, ok := byStart[start]
		if !ok {
			b = &FillBucket{Start: start}
			byStart[start] = b
			order = append(order, start)
		}
		b.Required += f.Required
		b.Filled += f.Filled
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	out := make([]FillBucket, 0, len(order))
	for _, start := range order {
		b := byStart[start]
		if b.Required > 0 {
			b.FillRate = float64(b.Filled) / float64(b.Required)
		}
		out = append(out, *b)
	}
	return out
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
