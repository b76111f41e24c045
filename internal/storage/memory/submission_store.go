// Package memory provides an in-memory submission store for development
// and testing.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/peyal-939/kobotest/internal/submission"
)

// Store implements submission.Store with a mutex-guarded map. Semantics
// mirror the Postgres store: one row per remote ID, sequential local IDs,
// force-controlled overwrite.
type Store struct {
	mu     sync.RWMutex
	rows   map[string]submission.Submission
	nextID int64
}

var _ submission.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{rows: make(map[string]submission.Submission), nextID: 1}
}

// Upsert inserts or conditionally overwrites the row for sub.RemoteID.
func (s *Store) Upsert(_ context.Context, sub submission.Submission, force bool) (submission.UpsertOutcome, error) {
	if sub.RemoteID == "" {
		return submission.OutcomeSkipped, fmt.Errorf("remote id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.rows[sub.RemoteID]
	if !ok {
		sub.ID = s.nextID
		s.nextID++
		sub.DateSynced = now
		sub.DateUpdated = now
		s.rows[sub.RemoteID] = sub
		return submission.OutcomeCreated, nil
	}
	if !force {
		return submission.OutcomeSkipped, nil
	}
	existing.FormUID = sub.FormUID
	existing.Payload = sub.Payload
	existing.DateSubmitted = sub.DateSubmitted
	existing.DateSynced = now
	existing.DateUpdated = now
	s.rows[sub.RemoteID] = existing
	return submission.OutcomeUpdated, nil
}

// Get fetches one submission by local ID.
func (s *Store) Get(_ context.Context, id int64) (submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.rows {
		if sub.ID == id {
			return sub, nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

// GetByRemoteID fetches one submission by provider-assigned UUID.
func (s *Store) GetByRemoteID(_ context.Context, remoteID string) (submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.rows[remoteID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	return sub, nil
}

// List returns matching submissions plus the total match count.
func (s *Store) List(_ context.Context, q submission.ListQuery) ([]submission.Submission, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []submission.Submission
	for _, sub := range s.rows {
		if q.FormUID != "" && sub.FormUID != q.FormUID {
			continue
		}
		if q.Search != "" && !matchesSearch(sub, q.Search) {
			continue
		}
		matched = append(matched, sub)
	}
	sortSubmissions(matched, q.Ordering)
	total := len(matched)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]submission.Submission, len(matched))
	copy(out, matched)
	return out, total, nil
}

// CountByForm reports how many rows exist for a form.
func (s *Store) CountByForm(_ context.Context, formUID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sub := range s.rows {
		if sub.FormUID == formUID {
			count++
		}
	}
	return count, nil
}

func matchesSearch(sub submission.Submission, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(sub.RemoteID), needle) {
		return true
	}
	payloadJSON, err := json.Marshal(sub.Payload)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(payloadJSON)), needle)
}

func sortSubmissions(subs []submission.Submission, ordering string) {
	field := ordering
	desc := false
	if strings.HasPrefix(field, "-") {
		field = field[1:]
		desc = true
	}
	var key func(submission.Submission) time.Time
	switch field {
	case "date_synced":
		key = func(s submission.Submission) time.Time { return s.DateSynced }
	case "date_updated":
		key = func(s submission.Submission) time.Time { return s.DateUpdated }
	case "date_submitted":
		key = func(s submission.Submission) time.Time { return s.DateSubmitted }
	default:
		key = func(s submission.Submission) time.Time { return s.DateSubmitted }
		desc = true
	}
	sort.SliceStable(subs, func(i, j int) bool {
		ti, tj := key(subs[i]), key(subs[j])
		if ti.Equal(tj) {
			if desc {
				return subs[i].ID > subs[j].ID
			}
			return subs[i].ID < subs[j].ID
		}
		if desc {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})
}
