// Package chat runs one conversational turn end to end: classify the user
// message, gather context, stream the assistant reply, persist both sides,
// and trigger summary compaction.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hellofriend/hellofriend/internal/azureai"
	"github.com/hellofriend/hellofriend/internal/conversation"
	"github.com/hellofriend/hellofriend/internal/intent"
	"github.com/hellofriend/hellofriend/internal/memory"
	"github.com/hellofriend/hellofriend/internal/observability"
	"github.com/hellofriend/hellofriend/internal/prompt"
	"github.com/hellofriend/hellofriend/internal/retrieval"
	"github.com/hellofriend/hellofriend/internal/websearch"
)

// State names the step a turn is in. A turn moves forward through these in
// order and can jump to StateErrored from any of them.
type State string

const (
	StateClassifying State = "classifying"
	StateRetrieving  State = "retrieving"
	StateAssembling  State = "assembling"
	StateCompleting  State = "completing"
	StatePersisting  State = "persisting"
	StateSummarizing State = "summarizing"
	StateDone        State = "done"
	StateErrored     State = "errored"
)

const (
	defaultRetrievalLimit = 5
	defaultHistoryLimit   = 10

	blockedMessage = "The response was blocked by the content policy."
	genericMessage = "Something went wrong handling this message. Please try again."
)

// ErrorPayload is the only shape an orchestration failure takes on its way
// to the caller. Collaborator errors never cross the sink raw.
type ErrorPayload struct {
	Message string `json:"message"`
	Blocked bool   `json:"blocked"`
}

// Sink receives the turn's output as it is produced. Chunk is called once
// per completion fragment, in order, without re-buffering; returning an
// error aborts the stream. Fail is called at most once, and only when no
// chunk has been delivered yet.
type Sink interface {
	Chunk(delta string) error
	Fail(p ErrorPayload)
}

// Request is one inbound user message.
type Request struct {
	ConversationID string
	UserID         string
	Message        string
}

// Result reports how the turn ended. Content is the full assistant text,
// also already delivered chunkwise to the sink on the text path.
type Result struct {
	State     State
	Intent    intent.Intent
	Content   string
	Truncated bool
	Blocked   bool
}

type Orchestrator struct {
	memories       *memory.Service
	conversations  conversation.Store
	engine         *retrieval.Engine
	ai             azureai.Client
	search         websearch.Searcher
	summarizer     *conversation.Summarizer
	metrics        *observability.Metrics
	window         *observability.StageWindow
	retrievalLimit int
	historyLimit   int
}

func NewOrchestrator(
	memories *memory.Service,
	conversations conversation.Store,
	engine *retrieval.Engine,
	ai azureai.Client,
	search websearch.Searcher,
	summarizer *conversation.Summarizer,
	metrics *observability.Metrics,
	window *observability.StageWindow,
) *Orchestrator {
	return &Orchestrator{
		memories:       memories,
		conversations:  conversations,
		engine:         engine,
		ai:             ai,
		search:         search,
		summarizer:     summarizer,
		metrics:        metrics,
		window:         window,
		retrievalLimit: defaultRetrievalLimit,
		historyLimit:   defaultHistoryLimit,
	}
}

// SetRetrievalLimit overrides how many matches each turn retrieves; zero
// or negative keeps the default.
func (o *Orchestrator) SetRetrievalLimit(limit int) {
	if limit > 0 {
		o.retrievalLimit = limit
	}
}

// Run executes one turn. The returned error is for the caller's logs; the
// user-facing outcome has already been written to the sink by the time Run
// returns.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (Result, error) {
	turnStart := time.Now()

	conv, err := o.conversations.Ensure(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return o.fail(sink, intent.Text, StateClassifying, false, fmt.Errorf("ensure conversation: %w", err))
	}

	classifyStart := time.Now()
	it := intent.Classify(req.Message)
	o.observeStage(observability.StageClassify, classifyStart)

	var res Result
	if it == intent.ImageGen {
		res, err = o.runImageTurn(ctx, req, sink)
	} else {
		res, err = o.runTextTurn(ctx, req, conv, it, sink)
	}
	if err == nil {
		o.countTurn(it, outcomeLabel(res))
	}
	o.observeStage(observability.StageTurnTotal, turnStart)
	return res, err
}

// runImageTurn handles the image path: no retrieval, no summarization. The
// user turn is persisted before the generation call, matching the step
// order the rest of the system expects for image requests.
func (o *Orchestrator) runImageTurn(ctx context.Context, req Request, sink Sink) (Result, error) {
	userRec, err := o.memories.Save(ctx, memory.SaveRequest{
		UserID:    req.UserID,
		Kind:      memory.KindMessage,
		Content:   req.Message,
		Confirmed: false,
	})
	if err != nil {
		return o.fail(sink, intent.ImageGen, StatePersisting, false, fmt.Errorf("save user memory: %w", err))
	}
	if _, err := o.conversations.AppendTurn(ctx, conversation.Turn{
		ConversationID: req.ConversationID,
		Role:           conversation.RoleUser,
		Content:        req.Message,
		Tags:           conversation.ExtractTags(req.Message),
	}); err != nil {
		return o.fail(sink, intent.ImageGen, StatePersisting, false, fmt.Errorf("append user turn: %w", err))
	}

	url, err := o.ai.GenerateImage(ctx, intent.StripImageCommand(req.Message))
	if err != nil {
		blocked := errors.Is(err, azureai.ErrContentBlocked)
		return o.fail(sink, intent.ImageGen, StateCompleting, blocked, fmt.Errorf("generate image: %w", err))
	}
	content := fmt.Sprintf("[Image generated: %s]", url)

	if err := sink.Chunk(content); err != nil {
		return Result{State: StateErrored, Intent: intent.ImageGen}, fmt.Errorf("deliver image turn: %w", err)
	}
	// Caller cancellation after delivery must not take the turn with it.
	if err := o.persistAssistantTurn(context.WithoutCancel(ctx), req, userRec.ID, content, false); err != nil {
		o.countStageError(StatePersisting)
		return Result{State: StateErrored, Intent: intent.ImageGen, Content: content}, err
	}
	return Result{State: StateDone, Intent: intent.ImageGen, Content: content}, nil
}

func (o *Orchestrator) runTextTurn(ctx context.Context, req Request, conv conversation.Conversation, it intent.Intent, sink Sink) (Result, error) {
	retrieveStart := time.Now()
	matches, err := o.engine.Search(ctx, req.UserID, req.Message, o.retrievalLimit)
	if err != nil {
		// Retrieval going dark costs context quality, not the turn.
		log.Printf("chat: retrieval degraded for conversation %s: %v", req.ConversationID, err)
		o.countStageError(StateRetrieving)
		matches = nil
	}
	var webResults []websearch.Result
	if it == intent.WebSearch {
		webResults, err = o.search.Search(ctx, req.Message)
		if err != nil {
			log.Printf("chat: web search degraded for conversation %s: %v", req.ConversationID, err)
			o.countStageError(StateRetrieving)
			webResults = nil
		}
	}
	o.observeStage(observability.StageRetrieve, retrieveStart)

	assembleStart := time.Now()
	history, err := o.conversations.RecentTurns(ctx, req.ConversationID, o.historyLimit)
	if err != nil {
		log.Printf("chat: history load degraded for conversation %s: %v", req.ConversationID, err)
		o.countStageError(StateAssembling)
		history = nil
	}
	messages := buildMessages(req.Message, prompt.Assemble(matches, conv.LastSummary, webResults), history)
	o.observeStage(observability.StageAssemble, assembleStart)

	// The user message memory goes in pending before the completion call.
	// Pending records are invisible to retrieval and history, so an
	// aborted turn leaves no trace the next turn can see.
	userRec, err := o.memories.Save(ctx, memory.SaveRequest{
		UserID:    req.UserID,
		Kind:      memory.KindMessage,
		Content:   req.Message,
		Confirmed: false,
	})
	if err != nil {
		return o.fail(sink, it, StatePersisting, false, fmt.Errorf("save user memory: %w", err))
	}

	content, streamed, err := o.streamCompletion(ctx, messages, sink)
	if err != nil && !streamed {
		blocked := errors.Is(err, azureai.ErrContentBlocked)
		return o.fail(sink, it, StateCompleting, blocked, fmt.Errorf("complete turn: %w", err))
	}
	truncated := err != nil
	if truncated {
		log.Printf("chat: stream interrupted for conversation %s, persisting partial output: %v", req.ConversationID, err)
		o.countStageError(StateCompleting)
		// Caller cancellation must not take the partial output with it.
		ctx = context.WithoutCancel(ctx)
	}

	persistStart := time.Now()
	if _, perr := o.conversations.AppendTurn(ctx, conversation.Turn{
		ConversationID: req.ConversationID,
		Role:           conversation.RoleUser,
		Content:        req.Message,
		Tags:           conversation.ExtractTags(req.Message),
	}); perr != nil {
		o.countStageError(StatePersisting)
		return Result{State: StateErrored, Intent: it, Content: content, Truncated: truncated},
			fmt.Errorf("append user turn: %w", perr)
	}
	if perr := o.persistAssistantTurn(ctx, req, userRec.ID, content, truncated); perr != nil {
		o.countStageError(StatePersisting)
		return Result{State: StateErrored, Intent: it, Content: content, Truncated: truncated}, perr
	}
	o.observeStage(observability.StagePersist, persistStart)

	if truncated {
		return Result{State: StateDone, Intent: it, Content: content, Truncated: true}, nil
	}

	summarizeStart := time.Now()
	if serr := o.summarizer.MaybeSummarize(ctx, req.ConversationID); serr != nil {
		log.Printf("chat: summarization deferred for conversation %s: %v", req.ConversationID, serr)
		o.countStageError(StateSummarizing)
	}
	o.observeStage(observability.StageSummarize, summarizeStart)

	return Result{State: StateDone, Intent: it, Content: content}, nil
}

// streamCompletion forwards chunks to the sink as the backend produces
// them. streamed reports whether at least one chunk reached the sink,
// which decides between the abort path and the partial-persist path.
func (o *Orchestrator) streamCompletion(ctx context.Context, messages []azureai.Message, sink Sink) (content string, streamed bool, err error) {
	if o.metrics != nil {
		o.metrics.ActiveStreams.Inc()
		defer o.metrics.ActiveStreams.Dec()
	}
	completeStart := time.Now()
	first := true

	content, err = o.ai.StreamComplete(ctx, messages, azureai.CompleteOptions{}, func(delta string) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if first {
			first = false
			o.observeStage(observability.StageFirstToken, completeStart)
			if o.metrics != nil {
				o.metrics.ObserveFirstTokenLatency(time.Since(completeStart))
			}
		}
		if serr := sink.Chunk(delta); serr != nil {
			return serr
		}
		streamed = true
		if o.metrics != nil {
			o.metrics.StreamChunks.Inc()
		}
		return nil
	})
	if err == nil {
		o.observeStage(observability.StageComplete, completeStart)
	}
	return content, streamed, err
}

// persistAssistantTurn confirms the pending user memory, appends the
// assistant turn, and saves the assistant memory. The confirm happens
// first so the user message becomes retrievable the moment the turn is
// known to have produced output.
func (o *Orchestrator) persistAssistantTurn(ctx context.Context, req Request, userRecordID, content string, truncated bool) error {
	if err := o.memories.Confirm(ctx, userRecordID); err != nil {
		return fmt.Errorf("confirm user memory: %w", err)
	}
	if _, err := o.conversations.AppendTurn(ctx, conversation.Turn{
		ConversationID: req.ConversationID,
		Role:           conversation.RoleAssistant,
		Content:        content,
		Tags:           conversation.ExtractTags(content),
		Truncated:      truncated,
	}); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}
	if _, err := o.memories.Save(ctx, memory.SaveRequest{
		UserID:    req.UserID,
		Kind:      memory.KindMessage,
		Content:   content,
		Confirmed: true,
	}); err != nil {
		return fmt.Errorf("save assistant memory: %w", err)
	}
	return nil
}

func buildMessages(userText, contextBlock string, history []conversation.Turn) []azureai.Message {
	messages := make([]azureai.Message, 0, len(history)+3)
	messages = append(messages, azureai.Message{Role: "system", Content: prompt.Persona})
	if contextBlock != "" {
		messages = append(messages, azureai.Message{Role: "system", Content: contextBlock})
	}
	for _, t := range history {
		role := "assistant"
		if t.Role == conversation.RoleUser {
			role = "user"
		}
		messages = append(messages, azureai.Message{Role: role, Content: t.Content})
	}
	return append(messages, azureai.Message{Role: "user", Content: userText})
}

// fail emits the single sanitized payload and records the errored turn.
// Only reachable before any chunk has been delivered.
func (o *Orchestrator) fail(sink Sink, it intent.Intent, stage State, blocked bool, err error) (Result, error) {
	payload := ErrorPayload{Message: genericMessage, Blocked: blocked}
	if blocked {
		payload.Message = blockedMessage
	}
	sink.Fail(payload)
	o.countStageError(stage)
	o.countTurn(it, "errored")
	return Result{State: StateErrored, Intent: it, Blocked: blocked}, err
}

func outcomeLabel(res Result) string {
	switch {
	case res.Truncated:
		return "truncated"
	case res.State == StateErrored:
		return "errored"
	default:
		return "ok"
	}
}

func (o *Orchestrator) countTurn(it intent.Intent, outcome string) {
	if o.metrics == nil {
		return
	}
	o.metrics.TurnsTotal.WithLabelValues(string(it), outcome).Inc()
}

func (o *Orchestrator) countStageError(stage State) {
	if o.metrics == nil {
		return
	}
	o.metrics.TurnStageErrors.WithLabelValues(string(stage)).Inc()
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.window == nil {
		return
	}
	o.window.Observe(stage, time.Since(start))
}
