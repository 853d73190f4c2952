package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
)

func newReport(kind models.ReportKind, route string, submitted time.Time) *models.Report {
	return &models.Report{
		ID:          uuid.New(),
		Kind:        kind,
		AuthorID:    uuid.New(),
		AuthorName:  "author",
		Route:       route,
		Status:      models.StatusPending,
		SubmittedOn: submitted,
	}
}

func TestMemoryInsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r := newReport(models.KindFeedback, "5A", time.Now().UTC())
	r.Attachments = []models.AttachmentRef{{URL: "/a/1", Name: "photo.jpg"}}
	require.NoError(t, m.Insert(ctx, r))

	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Route, got.Route)
	assert.Equal(t, r.Attachments, got.Attachments)
	assert.True(t, got.SubmittedOn.Equal(r.SubmittedOn))

	_, err = m.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryUpdateAbortsOnMutatorError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r := newReport(models.KindFeedback, "5A", time.Now().UTC())
	require.NoError(t, m.Insert(ctx, r))

	boom := errors.New("abort")
	_, err := m.Update(ctx, r.ID, func(cur *models.Report) error {
		cur.Status = models.StatusClosed
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status, "aborted mutation must not persist")
}

func TestMemoryUpdateSerializesConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r := newReport(models.KindFeedback, "5A", time.Now().UTC())
	r.Conversation = []models.ConversationEntry{}
	require.NoError(t, m.Insert(ctx, r))

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, r.ID, func(cur *models.Report) error {
				cur.Conversation = append(cur.Conversation, models.ConversationEntry{
					AuthorName: "u", Message: "m", Timestamp: time.Now(),
				})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Conversation, writers, "no append may be lost")
}

func TestMemoryListOrderingAndTieBreak(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := newReport(models.KindFeedback, "5A", base.Add(-time.Hour))
	tieA := newReport(models.KindFeedback, "5A", base)
	tieB := newReport(models.KindFeedback, "5A", base)
	require.NoError(t, m.Insert(ctx, older))
	require.NoError(t, m.Insert(ctx, tieA))
	require.NoError(t, m.Insert(ctx, tieB))

	out, err := m.List(ctx, ReportFilter{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	// Newest first; equal timestamps resolve by creation sequence ascending.
	assert.Equal(t, tieA.ID, out[0].ID)
	assert.Equal(t, tieB.ID, out[1].ID)
	assert.Equal(t, older.ID, out[2].ID)
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	fb := newReport(models.KindFeedback, "5A", time.Now().UTC())
	lost := newReport(models.KindLost, "S2: TAMBARAM", time.Now().UTC())
	lost.Status = ""
	require.NoError(t, m.Insert(ctx, fb))
	require.NoError(t, m.Insert(ctx, lost))

	out, err := m.List(ctx, ReportFilter{Kind: models.KindFeedback})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, fb.ID, out[0].ID)

	out, err = m.List(ctx, ReportFilter{Route: "S2: TAMBARAM"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, lost.ID, out[0].ID)

	out, err = m.List(ctx, ReportFilter{AuthorID: fb.AuthorID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, fb.ID, out[0].ID)
}

func TestMemoryUserEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	users := MemoryUsers{NewMemory()}

	u := &models.User{ID: uuid.New(), Name: "A", Email: "a@campus.edu", CreatedAt: time.Now()}
	require.NoError(t, users.Insert(ctx, u))

	dup := &models.User{ID: uuid.New(), Name: "B", Email: "A@Campus.EDU", CreatedAt: time.Now()}
	assert.ErrorIs(t, users.Insert(ctx, dup), apperrors.ErrDuplicateEmail)

	got, err := users.GetByEmail(ctx, "a@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}
