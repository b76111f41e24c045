package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/submission"
)

var submissionCols = []string{
	"id", "remote_id", "form_uid", "payload",
	"date_submitted", "date_synced", "date_updated",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func sampleSubmission() submission.Submission {
	return submission.Submission{
		RemoteID:      "uuid-a",
		FormUID:       "dxT6aOXp",
		Payload:       kobo.Document{"_uuid": "uuid-a", "answer": "yes"},
		DateSubmitted: time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsertInsertsNewRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	sub := sampleSubmission()

	mock.ExpectExec("INSERT INTO kobo_submissions").
		WithArgs(
			sub.RemoteID,
			sub.FormUID,
			[]byte(`{"_uuid":"uuid-a","answer":"yes"}`),
			sub.DateSubmitted,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	outcome, err := store.Upsert(context.Background(), sub, false)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeCreated, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkipsExistingWithoutForce(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	sub := sampleSubmission()

	mock.ExpectExec("INSERT INTO kobo_submissions").
		WithArgs(sub.RemoteID, sub.FormUID, pgxmock.AnyArg(), sub.DateSubmitted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	outcome, err := store.Upsert(context.Background(), sub, false)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeSkipped, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOverwritesExistingWithForce(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	sub := sampleSubmission()

	mock.ExpectExec("INSERT INTO kobo_submissions").
		WithArgs(sub.RemoteID, sub.FormUID, pgxmock.AnyArg(), sub.DateSubmitted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("UPDATE kobo_submissions").
		WithArgs(sub.RemoteID, sub.FormUID, pgxmock.AnyArg(), sub.DateSubmitted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	outcome, err := store.Upsert(context.Background(), sub, true)
	require.NoError(t, err)
	require.Equal(t, submission.OutcomeUpdated, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresRemoteID(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	_, err := store.Upsert(context.Background(), submission.Submission{}, false)
	require.Error(t, err)
}

func TestGetReturnsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, remote_id, form_uid, payload, date_submitted, date_synced, date_updated FROM kobo_submissions WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(submissionCols).
			AddRow(int64(7), "uuid-a", "dxT6aOXp", []byte(`{"answer":"yes"}`), now, now, now))

	sub, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), sub.ID)
	require.Equal(t, "uuid-a", sub.RemoteID)
	require.Equal(t, "yes", sub.Payload["answer"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, remote_id, form_uid, payload, date_submitted, date_synced, date_updated FROM kobo_submissions WHERE id").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), 99)
	require.ErrorIs(t, err, submission.ErrNotFound)
}

func TestListFiltersByFormUID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count").
		WithArgs("dxT6aOXp").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT id, remote_id").
		WithArgs("dxT6aOXp", 50).
		WillReturnRows(pgxmock.NewRows(submissionCols).
			AddRow(int64(2), "uuid-b", "dxT6aOXp", []byte(`{}`), now.Add(time.Hour), now, now).
			AddRow(int64(1), "uuid-a", "dxT6aOXp", []byte(`{}`), now, now, now))

	subs, total, err := store.List(context.Background(), submission.ListQuery{
		FormUID:  "dxT6aOXp",
		Ordering: "-date_submitted",
		Limit:    50,
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, subs, 2)
	require.Equal(t, "uuid-b", subs[0].RemoteID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderClauseAllowList(t *testing.T) {
	t.Parallel()

	require.Equal(t, "date_submitted DESC, id DESC", orderClause("-date_submitted"))
	require.Equal(t, "date_synced ASC, id ASC", orderClause("date_synced"))
	// Unknown fields fall back to the default instead of erroring.
	require.Equal(t, "date_submitted DESC, id DESC", orderClause("payload; DROP TABLE"))
	require.Equal(t, "date_submitted DESC, id DESC", orderClause(""))
}

func TestEnsureSchemaExecutes(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kobo_submissions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
