package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Record
	byUser  map[string][]string
	ordinal int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]*Record),
		byUser: make(map[string][]string),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]string{}
	}
	stored := rec
	s.byID[rec.ID] = &stored
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec.ID)
	s.ordinal++
	return rec, nil
}

func (s *InMemoryStore) Confirm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("confirm %s: %w", id, ErrNotFound)
	}
	rec.Confirmed = true
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return *rec, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	ids := s.byUser[userID]
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.byID[ids[i]]
		if rec.Kind == KindMessage && rec.Confirmed {
			out = append(out, *rec)
		}
	}
	// Insertion order approximates creation order; make newest-first exact.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SearchText(_ context.Context, userID, query string, limit int) ([]Record, error) {
	terms := strings.Fields(strings.ToLower(query))
	return s.search(userID, limit, func(content string) bool {
		if len(terms) == 0 {
			return false
		}
		lower := strings.ToLower(content)
		for _, term := range terms {
			if !strings.Contains(lower, term) {
				return false
			}
		}
		return true
	})
}

func (s *InMemoryStore) SearchSubstring(_ context.Context, userID, query string, limit int) ([]Record, error) {
	needle := strings.ToLower(query)
	return s.search(userID, limit, func(content string) bool {
		return strings.Contains(strings.ToLower(content), needle)
	})
}

func (s *InMemoryStore) search(userID string, limit int, match func(string) bool) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	ids := s.byUser[userID]
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.byID[ids[i]]
		if rec.Kind == KindMessage && !rec.Confirmed {
			continue
		}
		if match(rec.Content) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
