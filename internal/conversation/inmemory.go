package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversations in process memory for local/dev use.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	turns         map[string][]*Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*Conversation),
		turns:         make(map[string][]*Turn),
	}
}

func (s *InMemoryStore) Ensure(_ context.Context, id, userID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if c, ok := s.conversations[id]; ok {
		return *c, nil
	}
	c := &Conversation{ID: id, UserID: userID, CreatedAt: time.Now().UTC()}
	s.conversations[id] = c
	return *c, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return *c, nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	stored := t
	s.turns[t.ConversationID] = append(s.turns[t.ConversationID], &stored)
	return t, nil
}

func (s *InMemoryStore) UnsummarizedTurns(_ context.Context, conversationID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Turn
	for _, t := range s.turns[conversationID] {
		if !t.Summarized {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[conversationID]
	var unsummarized []*Turn
	for _, t := range all {
		if !t.Summarized {
			unsummarized = append(unsummarized, t)
		}
	}
	if len(unsummarized) > limit {
		unsummarized = unsummarized[len(unsummarized)-limit:]
	}
	out := make([]Turn, 0, len(unsummarized))
	for _, t := range unsummarized {
		out = append(out, *t)
	}
	return out, nil
}

func (s *InMemoryStore) Turns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Turn, 0, len(all))
	for _, t := range all {
		out = append(out, *t)
	}
	return out, nil
}

func (s *InMemoryStore) MarkSummarized(_ context.Context, conversationID string, turnIDs []string) error {
	wanted := make(map[string]struct{}, len(turnIDs))
	for _, id := range turnIDs {
		wanted[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.turns[conversationID] {
		if _, ok := wanted[t.ID]; ok {
			t.Summarized = true
		}
	}
	return nil
}

func (s *InMemoryStore) SetLastSummary(_ context.Context, conversationID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	c.LastSummary = summary
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
