// Package api exposes the HTTP interface for the lobby magnet service.
// Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/lobbies for the grouped registry snapshot.
//   - POST /v1/poll to force an immediate crawl.
//   - POST /v1/lobbies/join to launch a join for a known reference.
//   - POST /v1/validations/completions for asynchronous check results.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/refracta/PEAK-MangHoMagnet/internal/join"
	"github.com/refracta/PEAK-MangHoMagnet/internal/magnet"
	"github.com/refracta/PEAK-MangHoMagnet/internal/poller"
	"github.com/refracta/PEAK-MangHoMagnet/internal/registry"
)

const pollRequestTimeout = 60 * time.Second

// PollController exposes the poll loop controls the API needs.
type PollController interface {
	PollNow(ctx context.Context) error
	Status() poller.Status
}

// Joiner launches join attempts for registered references.
type Joiner interface {
	TryJoin(link string, force bool) (bool, error)
}

// CompletionSink accepts asynchronous validation results.
type CompletionSink interface {
	ApplyCompletion(c magnet.Completion)
}

// Server wires HTTP handlers to the registry and poll loop.
type Server struct {
	router      chi.Router
	reg         *registry.Registry
	pollCtl     PollController
	joiner      Joiner
	completions CompletionSink
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes. pollCtl,
// joiner, and completions may be nil when the matching subsystem is
// disabled; the routes then answer 503.
func NewServer(
	reg *registry.Registry,
	pollCtl PollController,
	joiner Joiner,
	completions CompletionSink,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		reg:         reg,
		pollCtl:     pollCtl,
		joiner:      joiner,
		completions: completions,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(pollRequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/lobbies", s.listLobbies)
		r.Get("/status", s.status)
		r.Post("/poll", s.pollNow)
		r.Post("/lobbies/join", s.joinLobby)
		r.Post("/validations/completions", s.applyCompletion)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// listLobbies returns one representative per source post, best status
// first within a post, newest post first overall.
func (s *Server) listLobbies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"lobbies": s.reg.Snapshot(),
		"version": s.reg.Version(),
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"registry": map[string]any{
			"entries": s.reg.Len(),
			"version": s.reg.Version(),
		},
	}
	if s.pollCtl != nil {
		payload["poll"] = s.pollCtl.Status()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) pollNow(w http.ResponseWriter, r *http.Request) {
	if s.pollCtl == nil {
		writeError(w, http.StatusServiceUnavailable, "crawler disabled")
		return
	}
	if err := s.pollCtl.PollNow(r.Context()); err != nil {
		s.logger.Warn("manual poll failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "poll failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": s.reg.Len(),
	})
}

type joinRequest struct {
	Link string `json:"link"`
}

func (s *Server) joinLobby(w http.ResponseWriter, r *http.Request) {
	if s.joiner == nil {
		writeError(w, http.StatusServiceUnavailable, "joining disabled")
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Link == "" {
		writeError(w, http.StatusBadRequest, "missing link")
		return
	}
	joined, err := s.joiner.TryJoin(req.Link, true)
	switch {
	case errors.Is(err, join.ErrUnknownLink):
		writeError(w, http.StatusNotFound, "lobby reference not found")
		return
	case errors.Is(err, join.ErrNoLauncher):
		writeError(w, http.StatusServiceUnavailable, "no launcher configured")
		return
	case err != nil:
		s.logger.Warn("join failed", zap.String("link", req.Link), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "join failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"joined": joined, "link": req.Link})
}

type completionRequest struct {
	LobbyID uint64 `json:"lobby_id"`
	Found   bool   `json:"found"`
	Count   int    `json:"member_count"`
	Limit   int    `json:"member_limit"`
	Error   string `json:"error"`
}

func (s *Server) applyCompletion(w http.ResponseWriter, r *http.Request) {
	if s.completions == nil {
		writeError(w, http.StatusServiceUnavailable, "external validation disabled")
		return
	}
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LobbyID == 0 {
		writeError(w, http.StatusBadRequest, "missing lobby_id")
		return
	}
	c := magnet.Completion{
		LobbyID: req.LobbyID,
		Found:   req.Found,
		Count:   req.Count,
		Limit:   req.Limit,
	}
	if req.Error != "" {
		c.Err = errors.New(req.Error)
	}
	s.completions.ApplyCompletion(c)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
