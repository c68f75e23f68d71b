package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/roster"
	"github.com/sehansi-9/gztprocessor/internal/search"
	"github.com/sehansi-9/gztprocessor/internal/store"
)

const (
	maxBodyBytes  = 4 << 20
	defaultAuthor = "gztprocessor"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    http.Handler
	log        *logrus.Entry
}

// NewHTTPServer builds the JSON API. metricsHandler, when non-nil, is served
// at /metrics.
func NewHTTPServer(service *Service, corsOrigin string, metricsHandler http.Handler, log *logrus.Entry) *HTTPServer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, metrics: metricsHandler, log: log.WithField("component", "http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/commits" {
		s.handleCommitLog(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/search/reindex" {
		writeJSON(w, http.StatusAccepted, map[string]any{"records": s.service.Reindex()})
		return
	}

	parts := splitPath(r.URL.Path)
	// /api/{scope}/presidents[/{p}/gazettes[/{g}[/...]]]
	if len(parts) >= 3 && parts[0] == "api" && parts[2] == "presidents" {
		scope, err := roster.ParseScope(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown scope", nil)
			return
		}
		s.handlePresidents(w, r, scope, parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handlePresidents(w http.ResponseWriter, r *http.Request, scope roster.Scope, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		items, err := s.service.ListPresidents(scope)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scope": scope, "items": items})
		return
	}

	p, ok := index(parts[0])
	if !ok || len(parts) < 2 || parts[1] != "gazettes" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			list, err := s.service.LoadGazettes(r.Context(), scope, p)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var body AddGazetteInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			added, err := s.service.AddGazette(r.Context(), scope, p, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, added)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	g, ok := index(parts[2])
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	s.handleGazette(w, r, scope, p, g, parts[3:])
}

func (s *HTTPServer) handleGazette(w http.ResponseWriter, r *http.Request, scope roster.Scope, p, g int, parts []string) {
	route := strings.Join(parts, "/")
	ctx := r.Context()

	switch {
	case route == "" && r.Method == http.MethodGet:
		s.respond(w, r, http.StatusOK)(s.service.ViewGazette(ctx, scope, p, g))

	case route == "roster" && r.Method == http.MethodGet:
		s.respond(w, r, http.StatusOK)(s.service.Roster(ctx, scope, p, g, r.URL.Query().Get("q")))

	case route == "roster/latest" && r.Method == http.MethodPost:
		s.respond(w, r, http.StatusOK)(s.service.PullForwardLatestState(ctx, scope, p, g))

	case route == "actions" && r.Method == http.MethodPost:
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, http.StatusOK)(s.service.Dispatch(ctx, scope, p, g, body))

	case route == "save" && r.Method == http.MethodPost:
		s.respond(w, r, http.StatusOK)(s.service.SaveDraft(ctx, scope, p, g, author(r)))

	case route == "fetch" && r.Method == http.MethodPost:
		s.respond(w, r, http.StatusOK)(s.service.FetchDraft(ctx, scope, p, g))

	case route == "refresh" && r.Method == http.MethodPost:
		s.respond(w, r, http.StatusOK)(s.service.RefreshDraft(ctx, scope, p, g))

	case route == "commit" && r.Method == http.MethodPost:
		s.respond(w, r, http.StatusOK)(s.service.Commit(ctx, scope, p, g, author(r)))

	case route == "history" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		s.respond(w, r, http.StatusOK)(s.service.History(ctx, scope, p, g, limit))

	case len(parts) == 2 && parts[0] == "history" && r.Method == http.MethodGet:
		s.respond(w, r, http.StatusOK)(s.service.HistoryAt(ctx, scope, p, g, parts[1]))

	case route == "downloads" && r.Method == http.MethodGet:
		links, err := s.service.Downloads(ctx, scope, p, g)
		s.respond(w, r, http.StatusOK)(map[string]any{"links": links}, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleCommitLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.CommitFilter{Number: strings.TrimSpace(query.Get("gazette"))}
	if raw := strings.TrimSpace(query.Get("scope")); raw != "" {
		scope, err := roster.ParseScope(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		filter.Scope = string(scope)
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a number", nil)
			return
		}
		filter.Limit = limit
	}
	items, err := s.service.CommitLog(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{Text: strings.TrimSpace(query.Get("q"))}
	if q.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	if raw := strings.TrimSpace(query.Get("scope")); raw != "" {
		scope, err := roster.ParseScope(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		q.Scope = scope
	}
	q.Limit, _ = strconv.Atoi(query.Get("limit"))
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

// respond returns a sink for a (payload, error) pair.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int) func(any, error) {
	return func(payload any, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, status, payload)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID(r.Context()),
			"path":       r.URL.Path,
			"code":       code,
		}).WithError(err).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		s.log.WithFields(logrus.Fields{
			"request_id":  id,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Editor")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.New("request body is required")
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New("could not read body")
	}
	return body, nil
}

// author names the editor in journal entries.
func author(r *http.Request) string {
	if name := strings.TrimSpace(r.Header.Get("X-Editor")); name != "" {
		return name
	}
	return defaultAuthor
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func index(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
