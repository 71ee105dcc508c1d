package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus is the lifecycle state of a duty slot.
type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "draft"
	SchedulePublished ScheduleStatus = "published"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Recurrence types for schedule expansion.
const (
	RecurrenceNone     = "none"
	RecurrenceDaily    = "daily"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
)

// Recurrence describes how a base schedule expands into occurrences.
// Days are weekday numbers 0 (Sunday) through 6, used only for weekly.
type Recurrence struct {
	Type    string     `json:"type"`
	Days    []int      `json:"days,omitempty"`
	EndDate *time.Time `json:"end_date,omitempty"`
}

// DutySchedule is one duty slot on a date, owning assignments.
type DutySchedule struct {
	ID               uuid.UUID      `json:"id"`
	OrganizationID   uuid.UUID      `json:"organization_id"`
	Title            string         `json:"title"`
	Location         string         `json:"location,omitempty"`
	Date             time.Time      `json:"date"`
	StartTime        string         `json:"start_time"`
	EndTime          string         `json:"end_time"`
	RequiredOfficers int            `json:"required_officers"`
	Status           ScheduleStatus `json:"status"`
	Recurrence       Recurrence     `json:"recurrence"`
	CreatedBy        uuid.UUID      `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AssignmentStatus is the lifecycle state of one officer's assignment.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentNoShow    AssignmentStatus = "no_show"
)

// DutyAssignment is one officer's assignment to a schedule. Unique per
// (schedule, officer).
type DutyAssignment struct {
	ID          uuid.UUID        `json:"id"`
	ScheduleID  uuid.UUID        `json:"schedule_id"`
	OfficerID   uuid.UUID        `json:"officer_id"`
	Status      AssignmentStatus `json:"status"`
	AssignedBy  uuid.UUID        `json:"assigned_by"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
	CheckInAt   *time.Time       `json:"check_in_at,omitempty"`
	CheckOutAt  *time.Time       `json:"check_out_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapApproved  SwapStatus = "approved"
	SwapDeclined  SwapStatus = "declined"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
)

// Active reports whether the swap still blocks new swaps on its assignment.
func (s SwapStatus) Active() bool {
	return s == SwapPending || s == SwapApproved
}

// DutySwapRequest proposes transferring an assignment. A nil ToOfficerID
// means an open swap any eligible member may accept.
type DutySwapRequest struct {
	ID           uuid.UUID  `json:"id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	FromOfficer  uuid.UUID  `json:"from_officer_id"`
	ToOfficerID  *uuid.UUID `json:"to_officer_id,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Status       SwapStatus `json:"status"`
	ReviewedBy   *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewNotes  string     `json:"review_notes,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
