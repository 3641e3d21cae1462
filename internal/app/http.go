package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/api/internal/broadcast"
	"inkwell/api/internal/export"
	"inkwell/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	broker     broadcast.Broker
	corsOrigin string
}

func NewHTTPServer(service *Service, broker broadcast.Broker, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, broker: broker, corsOrigin: corsOrigin}
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

	actor := actorID(r)
	parts := splitPath(r.URL.Path)
	if len(parts) == 0 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	parts = parts[1:]

	if len(parts) == 1 && parts[0] == "search" && r.Method == http.MethodGet {
		s.handleSearch(w, r, actor)
		return
	}

	if len(parts) >= 1 && parts[0] == "drafts" {
		switch {
		case len(parts) == 1 && r.Method == http.MethodPost:
			s.handleCreateDraft(w, r, actor)
			return
		case len(parts) == 1 && r.Method == http.MethodGet:
			s.handleListDrafts(w, r, actor)
			return
		case len(parts) == 2 && r.Method == http.MethodGet:
			s.handleGetWorkspace(w, r, parts[1], actor)
			return
		case len(parts) == 2 && r.Method == http.MethodPut:
			s.handleUpdateDraft(w, r, parts[1], actor)
			return
		case len(parts) == 2 && r.Method == http.MethodDelete:
			s.handleDeleteDraft(w, r, parts[1], actor)
			return
		case len(parts) == 3 && parts[2] == "revisions" && r.Method == http.MethodGet:
			s.handleListRevisions(w, r, parts[1], actor)
			return
		case len(parts) == 3 && parts[2] == "compare" && r.Method == http.MethodGet:
			s.handleCompare(w, r, parts[1], actor)
			return
		case len(parts) == 3 && parts[2] == "comments" && r.Method == http.MethodPost:
			s.handleAddComment(w, r, parts[1], actor)
			return
		case len(parts) == 3 && parts[2] == "export" && r.Method == http.MethodGet:
			s.handleExport(w, r, parts[1], actor)
			return
		case len(parts) == 3 && parts[2] == "events" && r.Method == http.MethodGet:
			s.handleEvents(w, r, parts[1], actor)
			return
		case len(parts) == 4 && parts[2] == "attachments" && r.Method == http.MethodGet:
			s.handleOpenAttachment(w, r, parts[1], parts[3], actor)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request, actorID string) {
	var body CreateDraftInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	draft, err := s.service.CreateDraft(r.Context(), actorID, body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft": draft})
}

func (s *HTTPServer) handleListDrafts(w http.ResponseWriter, r *http.Request, actorID string) {
	buckets, err := s.service.ListForViewer(r.Context(), actorID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	workspace, err := s.service.GetWorkspace(r.Context(), draftID, actorID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, workspace)
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	var body UpdateDraftInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	workspace, err := s.service.UpdateDraft(r.Context(), draftID, actorID, body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, workspace)
}

func (s *HTTPServer) handleDeleteDraft(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	if err := s.service.DeleteDraft(r.Context(), draftID, actorID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleListRevisions(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	revisions, err := s.service.ListRevisions(r.Context(), draftID, actorID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})
}

func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	baseID := strings.TrimSpace(r.URL.Query().Get("base"))
	targetID := strings.TrimSpace(r.URL.Query().Get("target"))
	if baseID == "" || targetID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "base and target revision ids are required", nil)
		return
	}
	comparison, err := s.service.CompareRevisions(r.Context(), draftID, baseID, targetID, actorID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	var body AddCommentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.AddComment(r.Context(), draftID, actorID, body)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *HTTPServer) handleOpenAttachment(w http.ResponseWriter, r *http.Request, draftID, attachmentID, actorID string) {
	att, data, err := s.service.OpenAttachment(r.Context(), draftID, attachmentID, actorID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	query := r.URL.Query()
	revisionID := strings.TrimSpace(query.Get("revision"))
	if revisionID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "revision id is required", nil)
		return
	}
	format := export.Format(strings.ToLower(strings.TrimSpace(query.Get("format"))))
	if format == "" {
		format = export.FormatHTML
	}
	includeComments := query.Get("comments") == "true"

	result, err := s.service.ExportRevision(r.Context(), draftID, revisionID, actorID, format, includeComments)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unsupported export format", nil)
			return
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, actorID string) {
	query := r.URL.Query()
	q := search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		FilterType: search.ResultType(strings.TrimSpace(query.Get("type"))),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		q.Offset = offset
	}
	response, err := s.service.Search(r.Context(), actorID, q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleEvents streams draft events over SSE. Access is checked once at
// subscribe time; the transport layer owns re-checking on visibility
// changes, the broker itself does not filter.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, draftID, actorID string) {
	if err := s.service.AuthorizeView(r.Context(), draftID, actorID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.broker.Subscribe(draftID)
	defer sub.Cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			frame, err := event.Encode()
			if err != nil {
				log.Printf("http: encode event for draft %s: %v", draftID, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, frame)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-User-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

// actorID identifies the caller. Authentication happens upstream (gateway
// or reverse proxy); this layer trusts the forwarded user id header.
func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
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
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
