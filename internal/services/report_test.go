package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/store"
)

func newID() uuid.UUID { return uuid.New() }

var (
	student = Identity{UserID: newID(), Role: models.RoleStudent, Name: "Arun"}
	admin   = Identity{UserID: newID(), Role: models.RoleAdmin, Name: "Transport Office"}
	other   = Identity{UserID: newID(), Role: models.RoleStudent, Name: "Meena"}
)

func newReportService() *ReportService {
	mem := store.NewMemory()
	return NewReportService(mem, mem, zap.NewNop().Sugar())
}

func feedbackRequest() *models.CreateReportRequest {
	return &models.CreateReportRequest{
		Kind:          models.KindFeedback,
		Route:         "5A",
		BusNo:         "KA-01-F-1234",
		IssueCategory: "Punctuality",
		Description:   "Bus arrived 25 minutes late",
		Details:       &models.FeedbackDetails{Punctuality: 1, DriverBehavior: 4, Cleanliness: 3},
		Attachments:   []models.AttachmentRef{{URL: "/a/1", Name: "photo.jpg"}},
	}
}

func foundRequest() *models.CreateReportRequest {
	return &models.CreateReportRequest{
		Kind:        models.KindFound,
		Item:        "Blue water bottle",
		Route:       "S2: TAMBARAM",
		Description: "Left on the back seat",
	}
}

func TestCreateFeedbackDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, student.UserID, r.AuthorID)
	assert.Equal(t, "Arun", r.AuthorName)
	assert.False(t, r.SubmittedOn.IsZero())
	assert.Empty(t, r.Conversation)

	// Round-trip: immediately fetched copy is field-for-field equal.
	got, err := svc.Get(ctx, student, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestCreateFeedbackValidation(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	req := feedbackRequest()
	req.BusNo = ""
	req.Attachments = nil
	_, err := svc.Create(ctx, student, req)
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "busNo")
	assert.Contains(t, ve.Fields, "attachments")
}

func TestCreateLostFoundValidation(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	req := foundRequest()
	req.Item = ""
	req.Description = ""
	_, err := svc.Create(ctx, student, req)
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{"item", "description"}, ve.Fields)
}

func TestCreateFoundDefaultsToUnclaimed(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, foundRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnclaimed, r.Status)

	// Lost items carry no status at all.
	lost := foundRequest()
	lost.Kind = models.KindLost
	r, err = svc.Create(ctx, student, lost)
	require.NoError(t, err)
	assert.Empty(t, r.Status)
}

func TestFeedbackTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.StatusPending, models.StatusInProgress, true},
		{models.StatusPending, models.StatusClosed, true},
		{models.StatusInProgress, models.StatusClosed, true},
		{models.StatusInProgress, models.StatusPending, false},
		{models.StatusClosed, models.StatusInProgress, false},
		{models.StatusClosed, models.StatusPending, false},
		{models.StatusPending, models.StatusPending, false},
		{models.StatusClosed, models.StatusClosed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, validTransition(models.KindFeedback, tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}

	assert.True(t, validTransition(models.KindFound, models.StatusUnclaimed, models.StatusClaimed))
	assert.False(t, validTransition(models.KindFound, models.StatusClaimed, models.StatusUnclaimed))
	assert.False(t, validTransition(models.KindLost, "", models.StatusClaimed))
}

// Scenario: admin closes a pending feedback with a resolution note, then
// the owner's further conversation appends are rejected.
func TestAdminCloseThenConversationRejected(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	closed, err := svc.UpdateStatus(ctx, r.ID, admin, models.StatusClosed, "Driver retrained")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.Resolution)
	assert.Equal(t, "Driver retrained", closed.Resolution.Text)
	assert.Equal(t, "Transport Office", closed.Resolution.ResolvedBy)
	assert.False(t, closed.Resolution.ResolvedOn.IsZero())
	require.Len(t, closed.Conversation, 1)
	assert.Equal(t, "system", closed.Conversation[0].AuthorName)

	_, err = svc.AppendConversation(ctx, r.ID, student, &models.ConversationRequest{Message: "thanks"})
	assert.ErrorIs(t, err, apperrors.ErrReportClosed)
}

func TestOwnerMayOnlySelfResolve(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, r.ID, student, models.StatusInProgress, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	closed, err := svc.UpdateStatus(ctx, r.ID, student, models.StatusClosed, "found my own fix")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
}

func TestNonOwnerAlwaysForbidden(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, r.ID, other, models.StatusClosed, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.UpdateFields(ctx, r.ID, other, map[string]interface{}{"status": models.StatusClosed})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.AppendConversation(ctx, r.ID, other, &models.ConversationRequest{Message: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	err = svc.Delete(ctx, r.ID, other)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// Repeating the same transition is rejected, so the system conversation
// entry is never duplicated.
func TestUpdateStatusIdempotence(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	first, err := svc.UpdateStatus(ctx, r.ID, admin, models.StatusClosed, "done")
	require.NoError(t, err)
	require.Len(t, first.Conversation, 1)

	_, err = svc.UpdateStatus(ctx, r.ID, admin, models.StatusClosed, "done")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	got, err := svc.Get(ctx, admin, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Conversation, 1)
}

func TestUpdateStatusNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()
	_, err := svc.UpdateStatus(ctx, newID(), admin, models.StatusClosed, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// Scenario: a found item is claimed via the whitelisted patch; keys
// outside the whitelist are dropped, never applied.
func TestUpdateFieldsWhitelist(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, foundRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateFields(ctx, r.ID, admin, map[string]interface{}{
		"status":      models.StatusClaimed,
		"description": "claimed at transport office",
		"authorId":    newID().String(),
		"submittedOn": "2001-01-01T00:00:00Z",
		"userId":      "intruder",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, updated.Status)
	assert.Equal(t, "claimed at transport office", updated.Description)
	assert.Equal(t, student.UserID, updated.AuthorID, "identity fields must not be patchable")
	assert.True(t, updated.SubmittedOn.Equal(r.SubmittedOn), "submittedOn is immutable")

	// Claimed is terminal.
	_, err = svc.UpdateFields(ctx, r.ID, admin, map[string]interface{}{"status": models.StatusUnclaimed})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestUpdateFieldsStatusRespectsStateMachine(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	_, err = svc.UpdateFields(ctx, r.ID, admin, map[string]interface{}{"status": "Reopened"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	updated, err := svc.UpdateFields(ctx, r.ID, admin, map[string]interface{}{"status": models.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestAppendConversationOrderAndValidation(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	_, err = svc.AppendConversation(ctx, r.ID, student, &models.ConversationRequest{})
	var ve *apperrors.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.AppendConversation(ctx, r.ID, student, &models.ConversationRequest{Message: "first"})
	require.NoError(t, err)
	_, err = svc.AppendConversation(ctx, r.ID, admin, &models.ConversationRequest{
		Attachment: &models.AttachmentRef{URL: "/a/2", Name: "receipt.pdf"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, student, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Conversation, 2)
	assert.Equal(t, "Arun", got.Conversation[0].AuthorName)
	assert.Equal(t, "first", got.Conversation[0].Message)
	assert.Equal(t, "Transport Office", got.Conversation[1].AuthorName)
	require.NotNil(t, got.Conversation[1].Attachment)
}

func TestDeleteByOwnerAndAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	mine, err := svc.Create(ctx, student, foundRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, mine.ID, student))
	_, err = svc.Get(ctx, student, mine.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	theirs, err := svc.Create(ctx, student, foundRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, theirs.ID, admin))

	assert.ErrorIs(t, svc.Delete(ctx, newID(), admin), apperrors.ErrNotFound)
}

func TestListVisibilityAndFilters(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	_, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, foundRequest())
	require.NoError(t, err)

	all, err := svc.List(ctx, admin, store.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.List(ctx, student, store.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, student.UserID, mine[0].AuthorID)

	// A student's filter never widens visibility.
	none, err := svc.List(ctx, student, store.ReportFilter{Kind: models.KindFound})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Scenario: two racing updates on the same pending feedback. Exactly one
// wins the first serialized write; the loser is validated against the new
// current state, never a stale read.
func TestConcurrentStatusUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var adminErr, ownerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, adminErr = svc.UpdateStatus(ctx, r.ID, admin, models.StatusInProgress, "")
	}()
	go func() {
		defer wg.Done()
		_, ownerErr = svc.UpdateStatus(ctx, r.ID, student, models.StatusClosed, "resolved")
	}()
	wg.Wait()

	got, err := svc.Get(ctx, admin, r.ID)
	require.NoError(t, err)

	// The owner's close is valid from either Pending or InProgress, so it
	// always succeeds. The admin's move to InProgress only succeeds when it
	// was serialized first; otherwise it fails the transition check against
	// the already-Closed value.
	require.NoError(t, ownerErr)
	assert.Equal(t, models.StatusClosed, got.Status)
	if adminErr != nil {
		assert.ErrorIs(t, adminErr, apperrors.ErrInvalidTransition)
		assert.Len(t, got.Conversation, 1)
	} else {
		assert.Len(t, got.Conversation, 2)
	}
}

func TestGetVisibility(t *testing.T) {
	ctx := context.Background()
	svc := newReportService()

	r, err := svc.Create(ctx, student, feedbackRequest())
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Get(ctx, admin, r.ID)
	assert.NoError(t, err)
}
