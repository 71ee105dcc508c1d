package duty

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/internal/permissions"
)

func newAssignment(status models.AssignmentStatus) *models.DutyAssignment {
	return &models.DutyAssignment{
		ID:        uuid.New(),
		OfficerID: uuid.New(),
		Status:    status,
	}
}

func TestConfirmOnlyFromAssigned(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentAssigned)
	require.NoError(t, Confirm(a, now))
	assert.Equal(t, models.AssignmentConfirmed, a.Status)
	require.NotNil(t, a.ConfirmedAt)

	err := Confirm(a, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCheckInRequiresConfirmed(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentAssigned)
	err := CheckIn(a, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Nil(t, a.CheckInAt)

	require.NoError(t, Confirm(a, now))
	require.NoError(t, CheckIn(a, now))
	require.NotNil(t, a.CheckInAt)

	// A second check-in is an error, not a no-op.
	err = CheckIn(a, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCheckOutForceCompletes(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)

	err := CheckOut(a, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "check-out before check-in")

	require.NoError(t, CheckIn(a, now))
	require.NoError(t, CheckOut(a, now))
	assert.Equal(t, models.AssignmentCompleted, a.Status)
	require.NotNil(t, a.CheckOutAt)

	err = CheckOut(a, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "double check-out")
}

func TestDeclineAssignment(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []models.AssignmentStatus{models.AssignmentAssigned, models.AssignmentConfirmed} {
		a := newAssignment(status)
		require.NoError(t, DeclineAssignment(a, now))
		assert.Equal(t, models.AssignmentDeclined, a.Status)
	}
	a := newAssignment(models.AssignmentCompleted)
	assert.ErrorIs(t, DeclineAssignment(a, now), domain.ErrInvalidTransition)
}

func TestMarkNoShowIsManual(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)
	require.NoError(t, MarkNoShow(a, now))
	assert.Equal(t, models.AssignmentNoShow, a.Status)

	checkedIn := newAssignment(models.AssignmentConfirmed)
	require.NoError(t, CheckIn(checkedIn, now))
	assert.ErrorIs(t, MarkNoShow(checkedIn, now), domain.ErrInvalidTransition)
}

func swapFixture(t *testing.T) (*models.DutySwapRequest, *models.DutyAssignment) {
	t.Helper()
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)
	sched := &models.DutySchedule{Date: now.AddDate(0, 0, 3)}
	swap, err := NewSwap(a, sched, a.OfficerID, nil, "family emergency", false, now)
	require.NoError(t, err)
	return swap, a
}

func TestNewSwapPreconditions(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)
	sched := &models.DutySchedule{Date: now.AddDate(0, 0, 1)}

	_, err := NewSwap(a, sched, uuid.New(), nil, "", false, now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "not the assignment owner")

	unconfirmed := newAssignment(models.AssignmentAssigned)
	_, err = NewSwap(unconfirmed, sched, unconfirmed.OfficerID, nil, "", false, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	past := &models.DutySchedule{Date: now.AddDate(0, 0, -1)}
	_, err = NewSwap(a, past, a.OfficerID, nil, "", false, now)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewSwap(a, sched, a.OfficerID, nil, "", true, now)
	assert.ErrorIs(t, err, domain.ErrConflict, "one active swap per assignment")

	self := a.OfficerID
	_, err = NewSwap(a, sched, a.OfficerID, &self, "", false, now)
	assert.ErrorIs(t, err, domain.ErrValidation, "directed at self")
}

func TestOpenSwapAcceptReassigns(t *testing.T) {
	now := time.Now().UTC()
	swap, a := swapFixture(t)
	original := a.OfficerID
	acceptor := uuid.New()

	require.NoError(t, AcceptSwap(swap, a, acceptor, now))
	assert.Equal(t, models.SwapAccepted, swap.Status)
	require.NotNil(t, swap.ToOfficerID)
	assert.Equal(t, acceptor, *swap.ToOfficerID)
	assert.Equal(t, acceptor, a.OfficerID)
	assert.NotEqual(t, original, a.OfficerID)
	assert.Equal(t, models.AssignmentConfirmed, a.Status)

	// Second acceptor races and loses.
	err := AcceptSwap(swap, a, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCannotAcceptOwnSwap(t *testing.T) {
	now := time.Now().UTC()
	swap, a := swapFixture(t)
	err := AcceptSwap(swap, a, swap.FromOfficer, now)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, models.SwapPending, swap.Status)
}

func TestDirectedSwapOnlyTargetMayAct(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)
	sched := &models.DutySchedule{Date: now.AddDate(0, 0, 2)}
	target := uuid.New()
	swap, err := NewSwap(a, sched, a.OfficerID, &target, "", false, now)
	require.NoError(t, err)

	err = AcceptSwap(swap, a, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "stranger cannot accept a directed swap")

	err = DeclineSwap(swap, uuid.New(), "", now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, DeclineSwap(swap, target, "busy that day", now))
	assert.Equal(t, models.SwapDeclined, swap.Status)
	require.NotNil(t, swap.ReviewedBy)
	assert.Equal(t, target, *swap.ReviewedBy)
}

func TestCancelSwap(t *testing.T) {
	now := time.Now().UTC()
	swap, _ := swapFixture(t)

	err := CancelSwap(swap, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, CancelSwap(swap, swap.FromOfficer, now))
	assert.Equal(t, models.SwapCancelled, swap.Status)
	assert.Nil(t, swap.ReviewedBy, "cancel stamps no reviewer metadata")

	err = CancelSwap(swap, swap.FromOfficer, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReviewOpenSwapApproveDoesNotReassign(t *testing.T) {
	now := time.Now().UTC()
	swap, a := swapFixture(t)
	original := a.OfficerID
	admin := uuid.New()

	require.NoError(t, ReviewSwap(swap, a, admin, true, "looks fine", now))
	assert.Equal(t, models.SwapPending, swap.Status, "pre-vetted open swap stays pending")
	assert.Equal(t, original, a.OfficerID)
	require.NotNil(t, swap.ReviewedBy)
	assert.Equal(t, admin, *swap.ReviewedBy)

	// Members can still accept it afterwards.
	acceptor := uuid.New()
	require.NoError(t, AcceptSwap(swap, a, acceptor, now))
	assert.Equal(t, acceptor, a.OfficerID)
}

func TestReviewDirectedSwapApproveReassigns(t *testing.T) {
	now := time.Now().UTC()
	a := newAssignment(models.AssignmentConfirmed)
	sched := &models.DutySchedule{Date: now.AddDate(0, 0, 2)}
	target := uuid.New()
	swap, err := NewSwap(a, sched, a.OfficerID, &target, "", false, now)
	require.NoError(t, err)

	admin := uuid.New()
	require.NoError(t, ReviewSwap(swap, a, admin, true, "", now))
	assert.Equal(t, models.SwapApproved, swap.Status)
	assert.Equal(t, target, a.OfficerID)
	assert.Equal(t, models.AssignmentConfirmed, a.Status)
}

func TestReviewReject(t *testing.T) {
	now := time.Now().UTC()
	swap, a := swapFixture(t)
	original := a.OfficerID

	require.NoError(t, ReviewSwap(swap, a, uuid.New(), false, "coverage too thin", now))
	assert.Equal(t, models.SwapRejected, swap.Status)
	assert.Equal(t, original, a.OfficerID)

	err := AcceptSwap(swap, a, uuid.New(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSwapStatusActive(t *testing.T) {
	assert.True(t, models.SwapPending.Active())
	assert.True(t, models.SwapApproved.Active())
	for _, s := range []models.SwapStatus{models.SwapAccepted, models.SwapDeclined, models.SwapRejected, models.SwapCancelled} {
		assert.False(t, s.Active(), string(s))
	}
}

func TestDirectedSwapTargetMustBeMember(t *testing.T) {
	err := validateSwapTarget(permissions.MemberContext{})
	assert.ErrorIs(t, err, domain.ErrValidation, "unknown uuid cannot be a swap target")

	assert.NoError(t, validateSwapTarget(permissions.MemberContext{Role: models.RoleMember}))
}

func TestSwapActionsScopedToRouteOrg(t *testing.T) {
	orgID := uuid.New()
	s := &models.DutySchedule{ID: uuid.New(), OrganizationID: orgID}

	require.NoError(t, requireScheduleOrg(s, orgID))

	// A swap id leaked from another organization must read as missing,
	// not as forbidden, decline, cancel and review included.
	err := requireScheduleOrg(s, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionErrorsUnwrap(t *testing.T) {
	a := newAssignment(models.AssignmentCompleted)
	err := Confirm(a, time.Now().UTC())
	var target error = domain.ErrInvalidTransition
	assert.True(t, errors.Is(err, target))
}
