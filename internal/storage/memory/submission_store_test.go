package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/submission"
)

func seed(t *testing.T, store *Store, remoteID, formUID string, submitted time.Time) submission.Submission {
	t.Helper()
	outcome, err := store.Upsert(context.Background(), submission.Submission{
		RemoteID:      remoteID,
		FormUID:       formUID,
		Payload:       kobo.Document{"_uuid": remoteID, "respondent": "resp-" + remoteID},
		DateSubmitted: submitted,
	}, false)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeCreated, outcome)
	sub, err := store.GetByRemoteID(context.Background(), remoteID)
	require.NoError(t, err)
	return sub
}

func TestUpsertLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	submitted := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

	seed(t, store, "uuid-a", "form-1", submitted)

	// Second delivery without force is an idempotent no-op.
	outcome, err := store.Upsert(ctx, submission.Submission{
		RemoteID:      "uuid-a",
		FormUID:       "form-1",
		Payload:       kobo.Document{"respondent": "changed"},
		DateSubmitted: submitted,
	}, false)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeSkipped, outcome)

	sub, err := store.GetByRemoteID(ctx, "uuid-a")
	require.NoError(t, err)
	require.Equal(t, "resp-uuid-a", sub.Payload["respondent"])

	// Force overwrites the payload and refreshes date_synced.
	outcome, err = store.Upsert(ctx, submission.Submission{
		RemoteID:      "uuid-a",
		FormUID:       "form-1",
		Payload:       kobo.Document{"respondent": "changed"},
		DateSubmitted: submitted,
	}, true)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeUpdated, outcome)

	updated, err := store.GetByRemoteID(ctx, "uuid-a")
	require.NoError(t, err)
	require.Equal(t, "changed", updated.Payload["respondent"])
	require.Equal(t, sub.ID, updated.ID)
	require.False(t, updated.DateSynced.Before(sub.DateSynced))

	// Still exactly one row.
	_, total, err := store.List(ctx, submission.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestGetByLocalID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	sub := seed(t, store, "uuid-a", "form-1", time.Now().UTC())

	got, err := store.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, "uuid-a", got.RemoteID)

	_, err = store.Get(ctx, 999)
	require.ErrorIs(t, err, submission.ErrNotFound)

	_, err = store.GetByRemoteID(ctx, "missing")
	require.ErrorIs(t, err, submission.ErrNotFound)
}

func TestListFilterOrderingAndSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

	seed(t, store, "uuid-a", "form-1", base)
	seed(t, store, "uuid-b", "form-1", base.Add(time.Hour))
	seed(t, store, "uuid-c", "form-2", base.Add(2*time.Hour))

	subs, total, err := store.List(ctx, submission.ListQuery{FormUID: "form-1"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, sub := range subs {
		require.Equal(t, "form-1", sub.FormUID)
	}

	// Default ordering is newest-submitted first.
	subs, _, err = store.List(ctx, submission.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, []string{"uuid-c", "uuid-b", "uuid-a"},
		[]string{subs[0].RemoteID, subs[1].RemoteID, subs[2].RemoteID})

	subs, _, err = store.List(ctx, submission.ListQuery{Ordering: "date_submitted"})
	require.NoError(t, err)
	require.Equal(t, "uuid-a", subs[0].RemoteID)

	// Search matches payload substrings and remote IDs.
	subs, total, err = store.List(ctx, submission.ListQuery{Search: "resp-uuid-b"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "uuid-b", subs[0].RemoteID)

	subs, _, err = store.List(ctx, submission.ListQuery{Search: "UUID-C"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestListPagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seed(t, store, string(rune('a'+i)), "form-1", base.Add(time.Duration(i)*time.Minute))
	}

	subs, total, err := store.List(ctx, submission.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, subs, 2)

	subs, total, err = store.List(ctx, submission.ListQuery{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, subs, 1)

	subs, _, err = store.List(ctx, submission.ListQuery{Offset: 10})
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestCountByForm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()
	seed(t, store, "uuid-a", "form-1", now)
	seed(t, store, "uuid-b", "form-1", now)
	seed(t, store, "uuid-c", "form-2", now)

	count, err := store.CountByForm(ctx, "form-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = store.CountByForm(ctx, "absent")
	require.NoError(t, err)
	require.Zero(t, count)
}
