package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/observability"
	"github.com/hellofriend/hellofriend/internal/prompt"
)

const (
	// Compaction is batched: below this many unsummarized turns nothing
	// happens, so short exchanges never pay for a completion call.
	defaultMinTurns = 10
	// Estimated token cost of the unsummarized turns that must accumulate
	// before compaction runs.
	defaultTokenBudget = 3000
)

// Summarizer compacts old turns into the conversation's rolling summary
// once the unsummarized backlog crosses both the turn-count and
// token-budget gates.
type Summarizer struct {
	store       Store
	completer   azureai.Completer
	memories    *memory.Service
	metrics     *observability.Metrics
	minTurns    int
	tokenBudget int
}

func NewSummarizer(store Store, completer azureai.Completer, memories *memory.Service, metrics *observability.Metrics) *Summarizer {
	return &Summarizer{
		store:       store,
		completer:   completer,
		memories:    memories,
		metrics:     metrics,
		minTurns:    defaultMinTurns,
		tokenBudget: defaultTokenBudget,
	}
}

// SetThresholds overrides the compaction gates; zero values keep defaults.
func (s *Summarizer) SetThresholds(minTurns, tokenBudget int) {
	if minTurns > 0 {
		s.minTurns = minTurns
	}
	if tokenBudget > 0 {
		s.tokenBudget = tokenBudget
	}
}

// MaybeSummarize checks the gates and, when both pass, replaces the
// conversation's summary and marks the folded turns. A completion failure
// aborts with the turns unmarked so the next qualifying turn retries; an
// embedding failure for the summary memory degrades silently.
//
// Concurrent calls for one conversation are not mutually excluded:
// last-writer-wins on the summary and MarkSummarized is idempotent, so a
// race wastes a completion call but cannot corrupt state.
func (s *Summarizer) MaybeSummarize(ctx context.Context, conversationID string) error {
	turns, err := s.store.UnsummarizedTurns(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load unsummarized turns: %w", err)
	}
	if len(turns) < s.minTurns {
		s.observeResult("skipped_turn_count")
		return nil
	}

	totalTokens := 0
	for _, t := range turns {
		totalTokens += EstimateTokens(t.Content)
	}
	if totalTokens < s.tokenBudget {
		s.observeResult("skipped_token_budget")
		return nil
	}

	summary, err := s.completer.Complete(ctx, []azureai.Message{
		{Role: "system", Content: prompt.SummarizerPersona},
		{Role: "user", Content: buildSummaryPrompt(turns)},
	}, azureai.CompleteOptions{})
	if err != nil {
		s.observeResult("completion_failed")
		return fmt.Errorf("summarize conversation %s: %w", conversationID, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		s.observeResult("completion_failed")
		return fmt.Errorf("summarize conversation %s: empty summary", conversationID)
	}

	if err := s.store.SetLastSummary(ctx, conversationID, summary); err != nil {
		s.observeResult("persist_failed")
		return err
	}

	turnIDs := make([]string, 0, len(turns))
	for _, t := range turns {
		turnIDs = append(turnIDs, t.ID)
	}
	if err := s.store.MarkSummarized(ctx, conversationID, turnIDs); err != nil {
		s.observeResult("persist_failed")
		return err
	}

	// Feed the summary back into retrieval so future turns can surface
	// it. Save degrades internally on embedding failure.
	conv, err := s.store.Get(ctx, conversationID)
	if err == nil {
		_, saveErr := s.memories.Save(ctx, memory.SaveRequest{
			UserID:    conv.UserID,
			Kind:      memory.KindConversationSummary,
			Content:   summary,
			Confirmed: true,
			Metadata:  map[string]string{"conversation_id": conversationID},
		})
		if saveErr != nil {
			log.Printf("summarizer: summary memory save degraded for %s: %v", conversationID, saveErr)
		}
	}

	s.observeResult("completed")
	return nil
}

func buildSummaryPrompt(turns []Turn) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation in 100 words, focusing on key facts and decisions:\n")
	for _, t := range turns {
		if t.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	b.WriteString("Summary:")
	return b.String()
}

func (s *Summarizer) observeResult(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SummarizeRuns.WithLabelValues(result).Inc()
}
