package duty

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

// Assignment lifecycle. Unlike review recipient views, repeating an
// already-applied transition here is a domain error, never a no-op.

// Confirm moves an assignment from assigned to confirmed.
func Confirm(a *models.DutyAssignment, now time.Time) error {
	if a.Status != models.AssignmentAssigned {
		return fmt.Errorf("%w: cannot confirm assignment in status %q", domain.ErrInvalidTransition, a.Status)
	}
	a.Status = models.AssignmentConfirmed
	a.ConfirmedAt = &now
	a.UpdatedAt = now
	return nil
}

// DeclineAssignment is legal from assigned or confirmed.
func DeclineAssignment(a *models.DutyAssignment, now time.Time) error {
	if a.Status != models.AssignmentAssigned && a.Status != models.AssignmentConfirmed {
		return fmt.Errorf("%w: cannot decline assignment in status %q", domain.ErrInvalidTransition, a.Status)
	}
	a.Status = models.AssignmentDeclined
	a.UpdatedAt = now
	return nil
}

// CheckIn is legal only from confirmed and only once.
func CheckIn(a *models.DutyAssignment, now time.Time) error {
	if a.Status != models.AssignmentConfirmed {
		return fmt.Errorf("%w: check-in requires a confirmed assignment, got %q", domain.ErrInvalidTransition, a.Status)
	}
	if a.CheckInAt != nil {
		return fmt.Errorf("%w: already checked in", domain.ErrInvalidTransition)
	}
	a.CheckInAt = &now
	a.UpdatedAt = now
	return nil
}

// CheckOut is legal only after check-in and only once, and force-completes
// the assignment.
func CheckOut(a *models.DutyAssignment, now time.Time) error {
	if a.CheckInAt == nil {
		return fmt.Errorf("%w: check-out requires a prior check-in", domain.ErrInvalidTransition)
	}
	if a.CheckOutAt != nil {
		return fmt.Errorf("%w: already checked out", domain.ErrInvalidTransition)
	}
	a.CheckOutAt = &now
	a.Status = models.AssignmentCompleted
	a.UpdatedAt = now
	return nil
}

// MarkNoShow is a manual transition. Nothing flips assignments to no_show
// on a timer; a scheduler or admin calls this after the duty window passes.
func MarkNoShow(a *models.DutyAssignment, now time.Time) error {
	if a.Status != models.AssignmentConfirmed && a.Status != models.AssignmentAssigned {
		return fmt.Errorf("%w: cannot mark no-show in status %q", domain.ErrInvalidTransition, a.Status)
	}
	if a.CheckInAt != nil {
		return fmt.Errorf("%w: officer already checked in", domain.ErrInvalidTransition)
	}
	a.Status = models.AssignmentNoShow
	a.UpdatedAt = now
	return nil
}

// Swap workflow.

// NewSwap validates creation preconditions: the requester owns the
// assignment, the assignment is confirmed, the duty date is not in the
// past, and no other active swap exists for the assignment.
func NewSwap(assignment *models.DutyAssignment, schedule *models.DutySchedule, requesterID uuid.UUID, toOfficerID *uuid.UUID, reason string, hasActiveSwap bool, now time.Time) (*models.DutySwapRequest, error) {
	if assignment.OfficerID != requesterID {
		return nil, fmt.Errorf("%w: only the assigned officer may request a swap", domain.ErrUnauthorized)
	}
	if assignment.Status != models.AssignmentConfirmed {
		return nil, fmt.Errorf("%w: swaps require a confirmed assignment, got %q", domain.ErrInvalidTransition, assignment.Status)
	}
	if truncateDate(schedule.Date).Before(truncateDate(now)) {
		return nil, fmt.Errorf("%w: cannot swap a past duty", domain.ErrValidation)
	}
	if hasActiveSwap {
		return nil, fmt.Errorf("%w: assignment already has an outstanding swap", domain.ErrConflict)
	}
	if toOfficerID != nil && *toOfficerID == requesterID {
		return nil, fmt.Errorf("%w: cannot direct a swap to yourself", domain.ErrValidation)
	}
	return &models.DutySwapRequest{
		AssignmentID: assignment.ID,
		FromOfficer:  requesterID,
		ToOfficerID:  toOfficerID,
		Reason:       reason,
		Status:       models.SwapPending,
	}, nil
}

// AcceptSwap executes the transfer. For an open swap any member other than
// the requester may accept; for a directed swap only the named officer may.
// The underlying assignment is reassigned to the accepting officer and set
// to confirmed.
func AcceptSwap(swap *models.DutySwapRequest, assignment *models.DutyAssignment, acceptorID uuid.UUID, now time.Time) error {
	if swap.Status != models.SwapPending {
		return fmt.Errorf("%w: swap is %q, not pending", domain.ErrInvalidTransition, swap.Status)
	}
	if acceptorID == swap.FromOfficer {
		return fmt.Errorf("%w: cannot accept your own swap request", domain.ErrValidation)
	}
	if swap.ToOfficerID != nil && *swap.ToOfficerID != acceptorID {
		return fmt.Errorf("%w: swap is directed at another officer", domain.ErrUnauthorized)
	}
	swap.Status = models.SwapAccepted
	swap.ToOfficerID = &acceptorID
	swap.UpdatedAt = now
	assignment.OfficerID = acceptorID
	assignment.Status = models.AssignmentConfirmed
	assignment.ConfirmedAt = &now
	assignment.CheckInAt = nil
	assignment.CheckOutAt = nil
	assignment.UpdatedAt = now
	return nil
}

// DeclineSwap is the target officer refusing a directed swap. Legal only
// while pending.
func DeclineSwap(swap *models.DutySwapRequest, declinerID uuid.UUID, notes string, now time.Time) error {
	if swap.Status != models.SwapPending {
		return fmt.Errorf("%w: swap is %q, not pending", domain.ErrInvalidTransition, swap.Status)
	}
	if swap.ToOfficerID == nil || *swap.ToOfficerID != declinerID {
		return fmt.Errorf("%w: only the targeted officer may decline", domain.ErrUnauthorized)
	}
	swap.Status = models.SwapDeclined
	swap.ReviewedBy = &declinerID
	swap.ReviewNotes = notes
	swap.ReviewedAt = &now
	swap.UpdatedAt = now
	return nil
}

// CancelSwap is the requester withdrawing. Legal only while pending; no
// reviewer metadata is stamped.
func CancelSwap(swap *models.DutySwapRequest, requesterID uuid.UUID, now time.Time) error {
	if swap.Status != models.SwapPending {
		return fmt.Errorf("%w: swap is %q, not pending", domain.ErrInvalidTransition, swap.Status)
	}
	if swap.FromOfficer != requesterID {
		return fmt.Errorf("%w: only the requester may cancel", domain.ErrUnauthorized)
	}
	swap.Status = models.SwapCancelled
	swap.UpdatedAt = now
	return nil
}

// ReviewSwap is the admin path. Approving an open swap only stamps reviewer
// metadata and leaves the swap pending for members to accept; approving a
// directed swap immediately reassigns the assignment. Rejection closes the
// swap either way.
func ReviewSwap(swap *models.DutySwapRequest, assignment *models.DutyAssignment, reviewerID uuid.UUID, approve bool, notes string, now time.Time) error {
	if swap.Status != models.SwapPending {
		return fmt.Errorf("%w: swap is %q, not pending", domain.ErrInvalidTransition, swap.Status)
	}
	swap.ReviewedBy = &reviewerID
	swap.ReviewNotes = notes
	swap.ReviewedAt = &now
	swap.UpdatedAt = now
	if !approve {
		swap.Status = models.SwapRejected
		return nil
	}
	if swap.ToOfficerID == nil {
		// Pre-vetted, not executed. Members still race to accept it.
		return nil
	}
	swap.Status = models.SwapApproved
	assignment.OfficerID = *swap.ToOfficerID
	assignment.Status = models.AssignmentConfirmed
	assignment.ConfirmedAt = &now
	assignment.CheckInAt = nil
	assignment.CheckOutAt = nil
	assignment.UpdatedAt = now
	return nil
}
