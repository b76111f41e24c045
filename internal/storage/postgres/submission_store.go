// Package postgres provides the Postgres-backed submission store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/submission"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements submission.Store on top of pgxpool. Upsert atomicity
// comes from the ON CONFLICT clause on remote_id; concurrent sync and
// webhook writers are serialized per row by the database.
type Store struct {
	pool dbPool
}

var _ submission.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS kobo_submissions (
	id             BIGSERIAL PRIMARY KEY,
	remote_id      TEXT NOT NULL UNIQUE,
	form_uid       TEXT NOT NULL,
	payload        JSONB NOT NULL,
	date_submitted TIMESTAMPTZ NOT NULL,
	date_synced    TIMESTAMPTZ NOT NULL,
	date_updated   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kobo_submissions_form_uid
	ON kobo_submissions (form_uid);
CREATE INDEX IF NOT EXISTS idx_kobo_submissions_date_submitted
	ON kobo_submissions (date_submitted DESC);
CREATE INDEX IF NOT EXISTS idx_kobo_submissions_form_date
	ON kobo_submissions (form_uid, date_submitted DESC);
`

const submissionColumns = "id, remote_id, form_uid, payload, date_submitted, date_synced, date_updated"

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewStoreWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the submissions table and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert inserts the submission, or overwrites the existing row for its
// remote ID when force is set.
func (s *Store) Upsert(ctx context.Context, sub submission.Submission, force bool) (submission.UpsertOutcome, error) {
	if sub.RemoteID == "" {
		return submission.OutcomeSkipped, fmt.Errorf("remote id is required")
	}
	payloadJSON, err := json.Marshal(sub.Payload)
	if err != nil {
		return submission.OutcomeSkipped, fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
INSERT INTO kobo_submissions (remote_id, form_uid, payload, date_submitted, date_synced, date_updated)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (remote_id) DO NOTHING`,
		sub.RemoteID, sub.FormUID, payloadJSON, sub.DateSubmitted.UTC(), now)
	if err != nil {
		return submission.OutcomeSkipped, fmt.Errorf("insert submission: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return submission.OutcomeCreated, nil
	}
	if !force {
		return submission.OutcomeSkipped, nil
	}

	if _, err := s.pool.Exec(ctx, `
UPDATE kobo_submissions
SET form_uid = $2, payload = $3, date_submitted = $4, date_synced = $5, date_updated = $5
WHERE remote_id = $1`,
		sub.RemoteID, sub.FormUID, payloadJSON, sub.DateSubmitted.UTC(), now); err != nil {
		return submission.OutcomeSkipped, fmt.Errorf("update submission: %w", err)
	}
	return submission.OutcomeUpdated, nil
}

// Get fetches one submission by local ID.
func (s *Store) Get(ctx context.Context, id int64) (submission.Submission, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM kobo_submissions WHERE id = $1", id)
	return scanSubmission(row)
}

// GetByRemoteID fetches one submission by provider-assigned UUID.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID string) (submission.Submission, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM kobo_submissions WHERE remote_id = $1", remoteID)
	return scanSubmission(row)
}

// List returns matching submissions plus the total match count.
func (s *Store) List(ctx context.Context, q submission.ListQuery) ([]submission.Submission, int, error) {
	where, args := buildFilter(q)

	var total int
	countQuery := "SELECT count(*) FROM kobo_submissions" + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	query := "SELECT " + submissionColumns + " FROM kobo_submissions" + where +
		" ORDER BY " + orderClause(q.Ordering)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []submission.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, total, nil
}

// CountByForm reports how many rows exist for a form.
func (s *Store) CountByForm(ctx context.Context, formUID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM kobo_submissions WHERE form_uid = $1", formUID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count form submissions: %w", err)
	}
	return total, nil
}

func buildFilter(q submission.ListQuery) (string, []any) {
	var clauses []string
	var args []any
	if q.FormUID != "" {
		args = append(args, q.FormUID)
		clauses = append(clauses, fmt.Sprintf("form_uid = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, q.Search)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(payload::text ILIKE '%%' || $%d || '%%' OR remote_id ILIKE '%%' || $%d || '%%')", n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderColumns is the allow-list for the ordering parameter. Anything else
// falls back to the default of newest-submitted first, matching the
// read-only API contract.
var orderColumns = map[string]string{
	"date_submitted": "date_submitted",
	"date_synced":    "date_synced",
	"date_updated":   "date_updated",
}

func orderClause(ordering string) string {
	field := ordering
	desc := false
	if strings.HasPrefix(field, "-") {
		field = field[1:]
		desc = true
	}
	col, ok := orderColumns[field]
	if !ok {
		return "date_submitted DESC, id DESC"
	}
	if desc {
		return col + " DESC, id DESC"
	}
	return col + " ASC, id ASC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (submission.Submission, error) {
	var sub submission.Submission
	var payloadJSON []byte
	err := row.Scan(
		&sub.ID,
		&sub.RemoteID,
		&sub.FormUID,
		&payloadJSON,
		&sub.DateSubmitted,
		&sub.DateSynced,
		&sub.DateUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	var payload kobo.Document
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return submission.Submission{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	sub.Payload = payload
	return sub, nil
}
