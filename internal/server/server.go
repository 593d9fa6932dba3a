// Package server exposes the webhook ingress over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/dispatch"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
)

// maxBodySize bounds inbound webhook payloads. GitHub caps payloads at
// well under this.
const maxBodySize = 1 << 20 // 1 MiB

// Server is the webhook ingress: it authenticates, dispatches, and answers
// inbound GitHub deliveries, and exposes health and stats endpoints.
type Server struct {
	dispatcher *dispatch.Dispatcher
	collector  *stats.Collector
	secret     string
	router     chi.Router
	logger     *slog.Logger
}

// New creates a Server wired with the given dependencies. An empty secret
// disables signature checking.
func New(
	dispatcher *dispatch.Dispatcher,
	collector *stats.Collector,
	secret string,
	logger *slog.Logger,
) *Server {
	s := &Server{
		dispatcher: dispatcher,
		collector:  collector,
		secret:     secret,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(logger))
	r.Use(Recovery(logger))

	r.Post("/", s.handleWebhook)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleWebhook processes POST /.
// Pipeline: limit body → verify signature → dispatch → respond.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reading request body",
		})
		return
	}
	if len(body) > maxBodySize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "request body exceeds 1MB limit",
		})
		return
	}

	if s.secret != "" {
		if err := verifySignature(r.Header.Get(HeaderSignature), s.secret, body); err != nil {
			s.logger.Warn("webhook signature rejected",
				"err", err,
				"request_id", RequestIDFromContext(r.Context()),
			)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "invalid signature",
			})
			return
		}
	}

	res, err := s.dispatcher.Handle(r.Context(), r.Header, body)
	if err != nil {
		if errors.Is(err, event.ErrMalformedPayload) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "malformed payload",
			})
			return
		}
		s.logger.Error("dispatch failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
		return
	}

	switch {
	case res.Ping:
		writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	case res.Duplicate:
		writeJSON(w, http.StatusOK, map[string]string{"message": "duplicate ignored"})
	case res.Filtered:
		writeJSON(w, http.StatusOK, map[string]string{"message": "bot event filtered"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "received",
			"kind":      res.Kind,
			"delivered": len(res.Delivered),
			"failed":    len(res.Failed),
		})
	}
}

// handleHealth responds to GET /health. The listener only serves while the
// ingress is up, so running is true whenever this answers.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"running": true,
		"stats":   s.collector.Snapshot(),
	})
}

// handleStats responds to GET /stats with the current counter snapshot.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
