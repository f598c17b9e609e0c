package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hellofriend/hellofriend/internal/chat"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
)

type wsTurnRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
}

// wsSink forwards turn output over the websocket. Writes stay
// single-threaded: turns on one connection run sequentially in the read
// loop, so the sink never races another writer.
type wsSink struct {
	conn *websocket.Conn
	err  error
}

func (s *wsSink) Chunk(delta string) error {
	return s.write(streamEvent{Type: "chunk", Content: delta})
}

func (s *wsSink) Fail(p chat.ErrorPayload) {
	_ = s.write(streamEvent{Type: "error", Message: p.Message, Blocked: p.Blocked})
}

func (s *wsSink) write(ev streamEvent) error {
	if s.err != nil {
		return s.err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.err = err
		return err
	}
	return nil
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		var req wsTurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		sink := &wsSink{conn: conn}
		if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.ConversationID) == "" {
			if sink.write(streamEvent{Type: "error", Message: "conversationId and message are required"}) != nil {
				return
			}
			continue
		}
		if strings.TrimSpace(req.UserID) == "" {
			req.UserID = "anonymous"
		}

		res, err := s.orchestrator.Run(r.Context(), chat.Request{
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Message:        req.Message,
		}, sink)
		if sink.err != nil {
			return
		}
		if err != nil {
			continue
		}
		if res.State == chat.StateDone {
			if sink.write(streamEvent{
				Type:      "done",
				Intent:    string(res.Intent),
				Truncated: res.Truncated,
			}) != nil {
				return
			}
		}
	}
}
