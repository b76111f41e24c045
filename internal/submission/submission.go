// Package submission defines the domain types for locally stored survey
// submissions and the storage contract shared by the Postgres and in-memory
// implementations.
package submission

import (
	"context"
	"errors"
	"time"

	"github.com/peyal-939/kobotest/internal/kobo"
)

// ErrNotFound is returned by stores when no row matches the lookup.
var ErrNotFound = errors.New("submission not found")

// Submission is one synced survey submission. RemoteID is the
// provider-assigned UUID and is unique across all rows; ID is the local
// surrogate key exposed by the query API.
type Submission struct {
	ID            int64         `json:"id"`
	RemoteID      string        `json:"uuid"`
	FormUID       string        `json:"form_uid"`
	Payload       kobo.Document `json:"data"`
	DateSubmitted time.Time     `json:"date_submitted"`
	DateSynced    time.Time     `json:"date_synced"`
	DateUpdated   time.Time     `json:"date_updated"`
}

// UpsertOutcome reports what an upsert did with a record.
type UpsertOutcome int

const (
	// OutcomeCreated means a new row was inserted.
	OutcomeCreated UpsertOutcome = iota
	// OutcomeUpdated means an existing row was overwritten.
	OutcomeUpdated
	// OutcomeSkipped means the row already existed and force was not set.
	OutcomeSkipped
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total is the number of records the run attempted to process.
func (r SyncReport) Total() int {
	return r.Created + r.Updated + r.Skipped + r.Failed
}

// ListQuery filters and orders a listing. Ordering accepts a field name
// from the allow-list (date_submitted, date_synced, date_updated) with an
// optional leading '-' for descending; unknown fields fall back to the
// default of newest-submitted first. Search matches substrings of the
// payload or the remote ID.
type ListQuery struct {
	FormUID  string
	Search   string
	Ordering string
	Limit    int
	Offset   int
}

// Store persists submissions keyed by remote ID. Implementations guarantee
// at most one row per remote ID; the upsert relies on storage-level
// atomicity, there is no application-level locking.
type Store interface {
	// Upsert inserts the submission if its remote ID is unknown. When the
	// row exists it is overwritten only if force is set, otherwise the call
	// is an idempotent no-op reported as OutcomeSkipped.
	Upsert(ctx context.Context, sub Submission, force bool) (UpsertOutcome, error)
	// Get fetches one submission by local ID.
	Get(ctx context.Context, id int64) (Submission, error)
	// GetByRemoteID fetches one submission by provider-assigned UUID.
	GetByRemoteID(ctx context.Context, remoteID string) (Submission, error)
	// List returns matching submissions plus the total match count before
	// limit/offset are applied.
	List(ctx context.Context, q ListQuery) ([]Submission, int, error)
	// CountByForm reports how many rows exist for a form.
	CountByForm(ctx context.Context, formUID string) (int, error)
}
