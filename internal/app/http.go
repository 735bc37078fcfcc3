package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renoquote/api/internal/search"
	"renoquote/api/internal/store"
	"renoquote/api/internal/util"
)

type HTTPServer struct {
	service       *Service
	corsOrigin    string
	webhookSecret string
}

func NewHTTPServer(service *Service, corsOrigin, webhookSecret string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, webhookSecret: webhookSecret}
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

	if r.Method == http.MethodPost && r.URL.Path == "/api/messages/inbound" {
		s.handleInbound(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/quotes/extract" {
		s.handleExtract(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/quotes" {
		s.handleSearchQuotes(w, r)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "quotes" {
		quoteID := segments[2]
		switch {
		case len(segments) == 3 && r.Method == http.MethodGet:
			s.handleGetQuote(w, r, quoteID)
			return
		case len(segments) == 4 && segments[3] == "items" && r.Method == http.MethodGet:
			s.handleQuoteItems(w, r, quoteID)
			return
		case len(segments) == 4 && segments[3] == "edits" && r.Method == http.MethodGet:
			s.handleQuoteEdits(w, r, quoteID)
			return
		case len(segments) == 4 && segments[3] == "regenerate" && r.Method == http.MethodPost:
			s.handleRegenerate(w, r, quoteID)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleInbound is the transport webhook. It always answers 200 with a reply
// payload when a session was resolvable; internal errors are logged and the
// contractor still gets a plain-language message.
func (s *HTTPServer) handleInbound(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeWebhook(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook secret", nil)
		return
	}

	var msg InboundMessage
	if err := decodeBody(r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if msg.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "threadId is required", nil)
		return
	}

	reply, err := s.service.HandleInbound(r.Context(), msg)
	if err != nil {
		log.Printf("app: inbound %s: %v", msg.ThreadID, err)
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *HTTPServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var input ExtractInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(input.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "transcript is required", nil)
		return
	}
	if input.ContractorID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "contractorId is required", nil)
		return
	}

	q, items, err := s.service.ExtractQuote(r.Context(), input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"quote": q, "items": items})
}

func (s *HTTPServer) handleSearchQuotes(w http.ResponseWriter, r *http.Request) {
	query := search.Query{
		Text:         r.URL.Query().Get("q"),
		ContractorID: r.URL.Query().Get("contractorId"),
		Status:       r.URL.Query().Get("status"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		query.Limit = limit
	}
	writeJSON(w, http.StatusOK, s.service.SearchQuotes(r.Context(), query))
}

func (s *HTTPServer) handleGetQuote(w http.ResponseWriter, r *http.Request, quoteID string) {
	q, items, err := s.service.GetQuote(r.Context(), quoteID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": q, "items": items})
}

func (s *HTTPServer) handleQuoteItems(w http.ResponseWriter, r *http.Request, quoteID string) {
	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_VERSION", "version must be a positive integer", nil)
			return
		}
		version = parsed
	}

	items, err := s.service.QuoteItems(r.Context(), quoteID, version)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleQuoteEdits(w http.ResponseWriter, r *http.Request, quoteID string) {
	edits, err := s.service.QuoteEdits(r.Context(), quoteID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edits": edits})
}

func (s *HTTPServer) handleRegenerate(w http.ResponseWriter, r *http.Request, quoteID string) {
	q, err := s.service.RegenerateQuote(r.Context(), quoteID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": q})
}

func (s *HTTPServer) authorizeWebhook(r *http.Request) bool {
	if s.webhookSecret == "" {
		return true
	}
	provided := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) == 1
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
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

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Webhook-Secret")
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
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return http.StatusConflict, "VERSION_CONFLICT", "Quote version is stale", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
