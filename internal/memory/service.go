package memory

import (
	"context"
	"fmt"
	"log"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/policy"
	"github.com/hellofriend/hellofriend/internal/vectorindex"
)

// metadata keys carried into the vector index so retrieval can render
// matches without a second store lookup.
const (
	MetaText     = "text"
	MetaKind     = "kind"
	MetaSource   = "source"
	MetaFileName = "fileName"
	MetaRecordID = "record_id"
	MetaError    = "error"
)

// Service owns the memory record lifecycle: redaction, embedding,
// persistence, and the confirm transition that makes a message visible to
// retrieval and history.
type Service struct {
	store    Store
	index    vectorindex.Index
	embedder azureai.Embedder
}

func NewService(store Store, index vectorindex.Index, embedder azureai.Embedder) *Service {
	return &Service{store: store, index: index, embedder: embedder}
}

// SaveRequest describes one record to persist.
type SaveRequest struct {
	UserID    string
	Kind      Kind
	Content   string
	Confirmed bool
	Metadata  map[string]string
}

// Save embeds and persists a record. An embedding failure is a recoverable
// degradation: the record is kept without a vector and tagged, so memory
// durability never depends on the embedding collaborator.
func (s *Service) Save(ctx context.Context, req SaveRequest) (Record, error) {
	content := req.Content
	if req.Kind == KindMessage {
		if redacted, changed := policy.RedactPII(content); changed {
			content = redacted
		}
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		log.Printf("memory: embedding degraded for user %s: %v", req.UserID, err)
		metadata[MetaError] = "failed to generate embedding"
		embedding = nil
	}

	rec, err := s.store.Insert(ctx, Record{
		UserID:    req.UserID,
		Kind:      req.Kind,
		Content:   content,
		Confirmed: req.Confirmed,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return Record{}, fmt.Errorf("save memory record: %w", err)
	}

	// Only visible records enter the index: pending messages wait for
	// Confirm so unconfirmed content can never surface via retrieval.
	if rec.Embedding != nil && (rec.Kind != KindMessage || rec.Confirmed) {
		s.indexRecord(ctx, rec)
	}
	return rec, nil
}

// Confirm promotes a pending message to canonical history. Idempotent:
// confirming twice succeeds with no second index write side effects beyond
// an overwrite of the same vector.
func (s *Service) Confirm(ctx context.Context, id string) error {
	if err := s.store.Confirm(ctx, id); err != nil {
		return err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Embedding != nil {
		s.indexRecord(ctx, rec)
	}
	return nil
}

// indexRecord upserts the record's vector. Failures degrade: the durable
// record already exists, only semantic ranking is lost.
func (s *Service) indexRecord(ctx context.Context, rec Record) {
	meta := map[string]string{
		MetaText:     rec.Content,
		MetaKind:     string(rec.Kind),
		MetaRecordID: rec.ID,
	}
	if v := rec.Metadata[MetaSource]; v != "" {
		meta[MetaSource] = v
	}
	if v := rec.Metadata[MetaFileName]; v != "" {
		meta[MetaFileName] = v
	}
	err := s.index.Upsert(ctx, rec.UserID, []vectorindex.Item{{
		ID:       rec.ID,
		Vector:   rec.Embedding,
		Metadata: meta,
	}})
	if err != nil {
		log.Printf("memory: vector upsert degraded for record %s: %v", rec.ID, err)
	}
}

// RecentMessages returns confirmed message records, newest first.
func (s *Service) RecentMessages(ctx context.Context, userID string, limit int) ([]Record, error) {
	return s.store.RecentMessages(ctx, userID, limit)
}

// Store exposes the underlying persistence for the retrieval engine's
// lexical tiers.
func (s *Service) Store() Store { return s.store }
