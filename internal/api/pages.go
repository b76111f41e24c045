package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/config"
	"github.com/peyal-939/kobotest/internal/submission"
	"github.com/peyal-939/kobotest/internal/syncer"
)

// pageRenderer holds the parsed page templates and display settings.
type pageRenderer struct {
	tmpl    *template.Template
	loc     *time.Location
	formURL string
}

func newPageRenderer(cfg config.Config) (*pageRenderer, error) {
	loc, err := time.LoadLocation(cfg.Server.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("load display timezone: %w", err)
	}
	tmpl := template.New("pages")
	for name, body := range map[string]string{
		"home":        homeTemplate,
		"submit":      submitTemplate,
		"submissions": submissionsTemplate,
		"detail":      detailTemplate,
	} {
		if _, err := tmpl.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
	}
	return &pageRenderer{tmpl: tmpl, loc: loc, formURL: cfg.Kobo.FormURL}, nil
}

func (p *pageRenderer) render(w http.ResponseWriter, name string, data any) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return p.tmpl.ExecuteTemplate(w, name, data)
}

func (p *pageRenderer) localTime(t time.Time) string {
	return t.In(p.loc).Format("Jan 2, 2006 15:04")
}

// readableField converts form field names to a human-readable label,
// e.g. "first_name" -> "First Name".
func readableField(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Server) homePage(w http.ResponseWriter, _ *http.Request) {
	if err := s.pages.render(w, "home", map[string]any{"Name": projectName}); err != nil {
		s.log.Error("render home failed", zap.Error(err))
	}
}

func (s *Server) submitPage(w http.ResponseWriter, _ *http.Request) {
	data := map[string]any{"FormURL": s.pages.formURL}
	if err := s.pages.render(w, "submit", data); err != nil {
		s.log.Error("render submit failed", zap.Error(err))
	}
}

type submissionRow struct {
	ID        int64
	RemoteID  string
	ShortID   string
	FormUID   string
	Submitted string
	Synced    string
}

func (s *Server) submissionsPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var syncMessage, syncStatus string
	if q.Get("sync") == "true" {
		syncMessage, syncStatus = s.runPageSync(r)
	}

	search := q.Get("search")
	subs, _, err := s.store.List(r.Context(), submission.ListQuery{
		Search:   search,
		Ordering: "-date_submitted",
	})
	if err != nil {
		s.log.Error("list submissions for page failed", zap.Error(err))
		http.Error(w, "failed to load submissions", http.StatusInternalServerError)
		return
	}

	rows := make([]submissionRow, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, submissionRow{
			ID:        sub.ID,
			RemoteID:  sub.RemoteID,
			ShortID:   shortID(sub.RemoteID),
			FormUID:   sub.FormUID,
			Submitted: s.pages.localTime(sub.DateSubmitted),
			Synced:    s.pages.localTime(sub.DateSynced),
		})
	}

	err = s.pages.render(w, "submissions", map[string]any{
		"Rows":        rows,
		"SearchQuery": search,
		"SyncMessage": syncMessage,
		"SyncStatus":  syncStatus,
	})
	if err != nil {
		s.log.Error("render submissions failed", zap.Error(err))
	}
}

// runPageSync performs the sync side effect of the browser page and turns
// the outcome into a banner message.
func (s *Server) runPageSync(r *http.Request) (message, status string) {
	if s.runner == nil {
		return "Sync unavailable: KOBO_TOKEN is not configured", "error"
	}
	report, err := s.runner.Run(r.Context(), syncer.Options{})
	if err != nil {
		s.log.Error("page-triggered sync failed", zap.Error(err))
		return "Sync failed: " + err.Error(), "error"
	}
	return fmt.Sprintf("Synced %d submissions from KoboToolbox. Created: %d, Updated: %d, Skipped: %d",
		report.Total(), report.Created, report.Updated, report.Skipped), "success"
}

type payloadField struct {
	Label string
	Value string
}

func (s *Server) submissionDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sub, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("get submission for page failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "failed to load submission", http.StatusInternalServerError)
		return
	}

	keys := make([]string, 0, len(sub.Payload))
	for k := range sub.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]payloadField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, payloadField{
			Label: readableField(k),
			Value: renderValue(sub.Payload[k]),
		})
	}

	err = s.pages.render(w, "detail", map[string]any{
		"ID":        sub.ID,
		"RemoteID":  sub.RemoteID,
		"FormUID":   sub.FormUID,
		"Submitted": s.pages.localTime(sub.DateSubmitted),
		"Synced":    s.pages.localTime(sub.DateSynced),
		"Fields":    fields,
	})
	if err != nil {
		s.log.Error("render detail failed", zap.Error(err))
	}
}

func renderValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []any:
		parts := make([]string, 0, len(vv))
		for _, item := range vv {
			parts = append(parts, renderValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(vv)
	}
}
