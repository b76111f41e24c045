// Package api exposes the HTTP interface: the read-only submissions API,
// the webhook receiver, and the server-rendered pages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/config"
	"github.com/peyal-939/kobotest/internal/metrics"
	"github.com/peyal-939/kobotest/internal/submission"
	"github.com/peyal-939/kobotest/internal/syncer"
)

const (
	projectName    = "KoboToolbox API"
	projectVersion = "0.1.0"

	// listPageSize is the fixed page size of the submissions list API.
	listPageSize = 50
)

// SyncRunner runs one sync pass. Satisfied by *syncer.Syncer; faked in tests.
type SyncRunner interface {
	Run(ctx context.Context, opts syncer.Options) (submission.SyncReport, error)
}

// Server wires HTTP handlers to the store and the sync routine.
type Server struct {
	router        chi.Router
	store         submission.Store
	runner        SyncRunner
	cfg           config.Config
	log           *zap.Logger
	webhookSchema *jsonschema.Schema
	pages         *pageRenderer
}

// NewServer constructs a Server with middleware and routes. runner may be
// nil when no provider token is configured; sync-triggering pages then
// report the missing configuration instead of syncing.
func NewServer(store submission.Store, runner SyncRunner, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	schema, err := compileWebhookSchema()
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	pages, err := newPageRenderer(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	metrics.Init()

	s := &Server{
		store:         store,
		runner:        runner,
		cfg:           cfg,
		log:           log,
		webhookSchema: schema,
		pages:         pages,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if len(cfg.Server.AllowedHosts) > 0 {
		r.Use(allowedHostsMiddleware(cfg.Server.AllowedHosts))
	}

	r.Get("/health/", s.health)
	r.Get("/meta/", s.meta)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Post("/kobo/webhook/", s.webhook)

	r.Route("/api/submissions", func(r chi.Router) {
		r.Get("/", s.listSubmissions)
		r.Get("/{id}/", s.getSubmission)
	})

	r.Get("/", s.homePage)
	r.Get("/submit/", s.submitPage)
	r.Get("/submissions/", s.submissionsPage)
	r.Get("/submissions/{id}/", s.submissionDetailPage)

	s.router = r
	return s, nil
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) meta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    projectName,
		"version": projectVersion,
		"debug":   s.cfg.Server.Debug,
	})
}

// listEnvelope carries a total count, path-relative next/previous page
// links, and the page rows.
type listEnvelope struct {
	Count    int                     `json:"count"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
	Results  []submission.Submission `json:"results"`
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	subs, total, err := s.store.List(r.Context(), submission.ListQuery{
		FormUID:  q.Get("form_uid"),
		Search:   q.Get("search"),
		Ordering: q.Get("ordering"),
		Limit:    listPageSize,
		Offset:   (page - 1) * listPageSize,
	})
	if err != nil {
		s.log.Error("list submissions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if subs == nil {
		subs = []submission.Submission{}
	}

	env := listEnvelope{Count: total, Results: subs}
	if page*listPageSize < total {
		env.Next = pageLink(r.URL, page+1)
	}
	if page > 1 {
		env.Previous = pageLink(r.URL, page-1)
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	sub, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, submission.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		s.log.Error("get submission failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch submission")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func pageLink(u *url.URL, page int) *string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	link := u.Path + "?" + q.Encode()
	return &link
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObserveRequest(r.Method, strconv.Itoa(ww.status), route, elapsed)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func allowedHostsMiddleware(hosts []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if _, ok := allowed[strings.ToLower(host)]; !ok {
				writeError(w, http.StatusBadRequest, "host not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
