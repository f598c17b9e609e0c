package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hellofriend/hellofriend/internal/chat"
)

type turnRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
}

// streamEvent is one line of the newline-delimited JSON turn stream.
type streamEvent struct {
	Type      string `json:"type"` // chunk | error | done
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
	Blocked   bool   `json:"blocked,omitempty"`
	Intent    string `json:"intent,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// streamSink writes turn output to the response as NDJSON, flushing per
// event so the client sees tokens as they arrive.
type streamSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
}

func newStreamSink(w http.ResponseWriter) *streamSink {
	flusher, _ := w.(http.Flusher)
	return &streamSink{w: w, flusher: flusher, enc: json.NewEncoder(w)}
}

func (s *streamSink) Chunk(delta string) error {
	return s.emit(streamEvent{Type: "chunk", Content: delta})
}

func (s *streamSink) Fail(p chat.ErrorPayload) {
	_ = s.emit(streamEvent{Type: "error", Message: p.Message, Blocked: p.Blocked})
}

func (s *streamSink) emit(ev streamEvent) error {
	if err := s.enc.Encode(ev); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		respondError(w, http.StatusBadRequest, "missing_conversation_id", "conversationId is required")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sink := newStreamSink(w)
	res, err := s.orchestrator.Run(r.Context(), chat.Request{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Message:        req.Message,
	}, sink)
	if err != nil {
		// The sink already carried the sanitized outcome; nothing more
		// can be written once streaming has begun.
		return
	}
	if res.State == chat.StateDone {
		_ = sink.emit(streamEvent{
			Type:      "done",
			Intent:    string(res.Intent),
			Truncated: res.Truncated,
		})
	}
}
