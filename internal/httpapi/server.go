// Package httpapi exposes the assistant over HTTP: a streaming turn
// endpoint, a websocket chat channel, file upload, and history reads.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hellofriend/hellofriend/internal/chat"
	"github.com/hellofriend/hellofriend/internal/config"
	"github.com/hellofriend/hellofriend/internal/conversation"
	"github.com/hellofriend/hellofriend/internal/ingest"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/observability"
	"github.com/hellofriend/hellofriend/internal/retrieval"
)

// TurnRunner runs one conversational turn, streaming output into the sink.
type TurnRunner interface {
	Run(ctx context.Context, req chat.Request, sink chat.Sink) (chat.Result, error)
}

type Server struct {
	cfg           config.Config
	orchestrator  TurnRunner
	memories      *memory.Service
	conversations conversation.Store
	engine        *retrieval.Engine
	files         *ingest.Service
	window        *observability.StageWindow
	upgrader      websocket.Upgrader
}

func New(
	cfg config.Config,
	orchestrator TurnRunner,
	memories *memory.Service,
	conversations conversation.Store,
	engine *retrieval.Engine,
	files *ingest.Service,
	window *observability.StageWindow,
) *Server {
	return &Server{
		cfg:           cfg,
		orchestrator:  orchestrator,
		memories:      memories,
		conversations: conversations,
		engine:        engine,
		files:         files,
		window:        window,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up, so another website
				// cannot drive a user's chat session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat/turn", s.handleTurn)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/files", s.handleUploadFile)
	r.Get("/v1/conversations/{id}/turns", s.handleListTurns)
	r.Get("/v1/memories/search", s.handleSearchMemories)
	r.Get("/v1/messages", s.handleRecentMessages)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
