package reviews

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/internal/domain"
	"github.com/chapterhub/backend/internal/models"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newThread(status models.ReviewStatus, recipientCount int) (*models.ReviewRequest, []*models.ReviewRecipient) {
	req := &models.ReviewRequest{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Status:         status,
	}
	var recs []*models.ReviewRecipient
	for i := 0; i < recipientCount; i++ {
		recs = append(recs, &models.ReviewRecipient{
			ID:         uuid.New(),
			ReviewID:   req.ID,
			ReviewerID: uuid.New(),
			Status:     models.RecipientPending,
		})
	}
	return req, recs
}

func TestSend_OnlyFromDraft(t *testing.T) {
	req, recs := newThread(models.ReviewDraft, 2)
	recs[0].Status = models.RecipientViewed

	require.NoError(t, Send(req, recs, now))
	assert.Equal(t, models.ReviewSent, req.Status)
	for _, r := range recs {
		assert.Equal(t, models.RecipientPending, r.Status)
	}

	err := Send(req, recs, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkViewed_NoOpPastPending(t *testing.T) {
	_, recs := newThread(models.ReviewSent, 1)
	rec := recs[0]

	assert.True(t, MarkViewed(rec, now))
	assert.Equal(t, models.RecipientViewed, rec.Status)
	require.NotNil(t, rec.LastViewedAt)
	assert.Equal(t, now, *rec.LastViewedAt)

	// Second view is silently ignored, not an error.
	assert.False(t, MarkViewed(rec, now.Add(time.Hour)))
	assert.Equal(t, now, *rec.LastViewedAt)
}

func TestApprove_AllApproveYieldsApprovedThread(t *testing.T) {
	req, recs := newThread(models.ReviewSent, 3)
	for i, rec := range recs {
		require.NoError(t, Approve(req, rec, recs, now))
		if i < len(recs)-1 {
			assert.Equal(t, models.ReviewInReview, req.Status)
		}
	}
	assert.Equal(t, models.ReviewApproved, req.Status)
}

func TestApprove_FinalRecipientRejected(t *testing.T) {
	req, recs := newThread(models.ReviewSent, 1)
	require.NoError(t, Approve(req, recs[0], recs, now))

	err := Approve(req, recs[0], recs, now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApprove_RecomputeCanLeaveApproved(t *testing.T) {
	// Approving with a later-added pending recipient pulls an approved
	// thread back to in_review. Documented behavior, not a bug.
	req, recs := newThread(models.ReviewSent, 1)
	require.NoError(t, Approve(req, recs[0], recs, now))
	assert.Equal(t, models.ReviewApproved, req.Status)

	late := &models.ReviewRecipient{ID: uuid.New(), ReviewID: req.ID, ReviewerID: uuid.New(), Status: models.RecipientPending}
	recs = append(recs, late)
	other := &models.ReviewRecipient{ID: uuid.New(), ReviewID: req.ID, ReviewerID: uuid.New(), Status: models.RecipientPending}
	recs = append(recs, other)
	require.NoError(t, Approve(req, late, recs, now))
	assert.Equal(t, models.ReviewInReview, req.Status)
}

func TestDecline_SingleDeclineFailsThread(t *testing.T) {
	req, recs := newThread(models.ReviewSent, 3)
	require.NoError(t, Approve(req, recs[0], recs, now))
	require.NoError(t, Approve(req, recs[1], recs, now))

	require.NoError(t, Decline(req, recs[2], "missing appendix", now))
	assert.Equal(t, models.ReviewDeclined, req.Status)
	assert.Equal(t, "missing appendix", recs[2].DeclineReason)

	// Final recipient cannot act again.
	assert.ErrorIs(t, Decline(req, recs[2], "again", now), domain.ErrInvalidTransition)
	assert.ErrorIs(t, Approve(req, recs[2], recs, now), domain.ErrInvalidTransition)
	assert.ErrorIs(t, Expire(recs[2], now), domain.ErrInvalidTransition)
}

func TestExpire_RequiresPassedDueDate(t *testing.T) {
	rec := &models.ReviewRecipient{ID: uuid.New(), Status: models.RecipientPending}
	assert.ErrorIs(t, Expire(rec, now), domain.ErrValidation, "no due date set")

	future := now.AddDate(0, 0, 2)
	rec.DueDate = &future
	assert.ErrorIs(t, Expire(rec, now), domain.ErrValidation)
	assert.Equal(t, models.RecipientPending, rec.Status)

	past := now.AddDate(0, 0, -1)
	rec.DueDate = &past
	require.NoError(t, Expire(rec, now))
	assert.Equal(t, models.RecipientExpired, rec.Status)
}

func TestRequestChangesAndClose_IllegalWhenFinal(t *testing.T) {
	req, _ := newThread(models.ReviewInReview, 0)
	require.NoError(t, RequestChanges(req, now))
	assert.Equal(t, models.ReviewChangesRequested, req.Status)

	require.NoError(t, Close(req, now))
	assert.Equal(t, models.ReviewClosed, req.Status)

	assert.ErrorIs(t, RequestChanges(req, now), domain.ErrInvalidTransition)
	assert.ErrorIs(t, Close(req, now), domain.ErrInvalidTransition)
}

func TestReopen_OnlyFromFinal(t *testing.T) {
	for _, status := range []models.ReviewStatus{models.ReviewApproved, models.ReviewDeclined, models.ReviewClosed, models.ReviewCancelled} {
		req, _ := newThread(status, 0)
		require.NoError(t, Reopen(req, now))
		assert.Equal(t, models.ReviewInReview, req.Status)
	}

	req, _ := newThread(models.ReviewSent, 0)
	assert.ErrorIs(t, Reopen(req, now), domain.ErrInvalidTransition)
}

func TestAttachVersion_DoesNotTouchStatus(t *testing.T) {
	req, recs := newThread(models.ReviewInReview, 2)
	recs[0].Status = models.RecipientViewed

	v := uuid.New()
	AttachVersion(req, v, now)
	assert.Equal(t, v, req.VersionID)
	assert.Equal(t, models.ReviewInReview, req.Status)
	assert.Equal(t, models.RecipientViewed, recs[0].Status)
}

func TestCanRemoveRecipient(t *testing.T) {
	rec := &models.ReviewRecipient{Status: models.RecipientViewed}
	assert.NoError(t, CanRemoveRecipient(rec))

	rec.Status = models.RecipientApproved
	assert.ErrorIs(t, CanRemoveRecipient(rec), domain.ErrInvalidTransition)
	rec.Status = models.RecipientDeclined
	assert.ErrorIs(t, CanRemoveRecipient(rec), domain.ErrInvalidTransition)

	// Expired recipients never responded; removal stays legal.
	rec.Status = models.RecipientExpired
	assert.NoError(t, CanRemoveRecipient(rec))
}

func TestMarkCommented(t *testing.T) {
	_, recs := newThread(models.ReviewSent, 1)
	rec := recs[0]

	assert.True(t, MarkCommented(rec, now))
	assert.Equal(t, models.RecipientCommented, rec.Status)
	assert.False(t, MarkCommented(rec, now))

	rec.Status = models.RecipientApproved
	assert.False(t, MarkCommented(rec, now))
}
