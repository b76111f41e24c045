// Package syncer reconciles locally stored submissions with the provider's
// current submission set for a form.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/metrics"
	"github.com/peyal-939/kobotest/internal/submission"
)

const defaultPageSize = 1000

// Client is the slice of the kobo client the syncer needs.
type Client interface {
	Submissions(ctx context.Context, formUID string, start, limit int) (kobo.Page, error)
}

// Options controls one sync run.
type Options struct {
	// FormUID selects the form; falls back to the configured default.
	FormUID string
	// Limit caps the total number of records fetched; 0 means all.
	Limit int
	// Force overwrites rows that already exist locally.
	Force bool
}

// Syncer pulls pages of submissions from the provider and upserts them into
// the store. Runs are sequential and run to completion or fail outright;
// there is no background scheduling.
type Syncer struct {
	client      Client
	store       submission.Store
	log         *zap.Logger
	defaultForm string
	pageSize    int
}

// New constructs a Syncer. pageSize <= 0 selects the default batch of 1000.
func New(client Client, store submission.Store, log *zap.Logger, defaultForm string, pageSize int) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	metrics.Init()
	return &Syncer{
		client:      client,
		store:       store,
		log:         log,
		defaultForm: defaultForm,
		pageSize:    pageSize,
	}
}

// Run fetches successive pages until exhausted or the limit is reached and
// upserts each document. Per-record failures (missing UUID, storage error)
// are logged and counted, never fatal to the batch; a client failure aborts
// the run with the partial report.
func (s *Syncer) Run(ctx context.Context, opts Options) (submission.SyncReport, error) {
	var report submission.SyncReport

	formUID := opts.FormUID
	if formUID == "" {
		formUID = s.defaultForm
	}
	if formUID == "" {
		return report, fmt.Errorf("form uid is required: pass one or configure kobo.form_uid")
	}

	s.log.Info("sync started",
		zap.String("form_uid", formUID),
		zap.Int("limit", opts.Limit),
		zap.Bool("force", opts.Force),
	)

	start := 0
	fetched := 0
	for {
		pageLimit := s.pageSize
		if opts.Limit > 0 && opts.Limit-fetched < pageLimit {
			pageLimit = opts.Limit - fetched
		}
		if pageLimit <= 0 {
			break
		}

		page, err := s.client.Submissions(ctx, formUID, start, pageLimit)
		if err != nil {
			metrics.ObserveSyncRun("failed")
			return report, fmt.Errorf("fetch submissions for %s: %w", formUID, err)
		}
		if len(page.Results) == 0 {
			break
		}

		for _, doc := range page.Results {
			outcome := s.apply(ctx, formUID, doc, opts.Force)
			switch outcome {
			case "created":
				report.Created++
			case "updated":
				report.Updated++
			case "skipped":
				report.Skipped++
			default:
				report.Failed++
			}
			metrics.ObserveSyncRecord(outcome)
		}

		fetched += len(page.Results)
		if len(page.Results) < pageLimit {
			break
		}
		start += pageLimit
	}

	metrics.ObserveSyncRun("succeeded")
	s.log.Info("sync finished",
		zap.String("form_uid", formUID),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Syncer) apply(ctx context.Context, formUID string, doc kobo.Document, force bool) string {
	remoteID := doc.RemoteID()
	if remoteID == "" {
		s.log.Warn("skipping submission without UUID", zap.String("form_uid", formUID))
		return "failed"
	}
	sub := submission.Submission{
		RemoteID:      remoteID,
		FormUID:       formUID,
		Payload:       doc,
		DateSubmitted: doc.SubmittedAt(time.Now().UTC()),
	}
	outcome, err := s.store.Upsert(ctx, sub, force)
	if err != nil {
		s.log.Warn("upsert failed",
			zap.String("remote_id", remoteID),
			zap.Error(err),
		)
		return "failed"
	}
	return outcome.String()
}
