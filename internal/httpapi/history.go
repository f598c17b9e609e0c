package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type turnView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_conversation_id", "missing conversation id")
		return
	}
	limit := queryInt(r, "limit", 50)

	turns, err := s.conversations.Turns(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", "could not load turns")
		return
	}
	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, turnView{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			Tags:      t.Tags,
			Truncated: t.Truncated,
			CreatedAt: t.CreatedAt,
		})
	}

	var summary string
	if conv, err := s.conversations.Get(r.Context(), id); err == nil {
		summary = conv.LastSummary
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversationId": id,
		"summary":        summary,
		"turns":          views,
	})
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query parameter q is required")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}
	limit := queryInt(r, "limit", 5)

	matches, err := s.engine.Search(r.Context(), userID, query, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "search_unavailable", "memory search is unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"matches": matches,
	})
}

func (s *Server) handleRecentMessages(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}
	limit := queryInt(r, "limit", 20)

	records, err := s.memories.RecentMessages(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "messages_failed", "could not load messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"messages": records,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
