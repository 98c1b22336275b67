package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"personachat/internal/logging"
	"personachat/internal/models"
)

// ChatEndpoint is the quota endpoint name for chat messages
const ChatEndpoint = "chat"

// maxMessageRunes bounds the size of one user message
const maxMessageRunes = 4000

// Admitter decides whether an identity may make another request
type Admitter interface {
	CheckAndConsume(ctx context.Context, identity string, tier models.Tier, endpoint string) (models.QuotaDecision, error)
}

// Retriever returns ranked creator-scoped snippets
type Retriever interface {
	Retrieve(ctx context.Context, query models.RetrievalQuery) (models.RetrievalResult, error)
}

// CreatorLookup resolves a creator reference to an active persona
type CreatorLookup interface {
	Get(ref models.CreatorCorpusRef) (models.Creator, error)
}

// OrchestratorConfig holds the per-request tunables
type OrchestratorConfig struct {
	MaxSnippets     int
	SimilarityFloor float64
	HistoryTurns    int
	PersistTimeout  time.Duration
}

// ChatOrchestrator runs one chat message through admission, retrieval, generation and
// persistence. It keeps no state between messages.
type ChatOrchestrator struct {
	creators   CreatorLookup
	dispatcher *Dispatcher
	admission  Admitter
	retrieval  Retriever
	generator  Generator
	store      ConversationStore
	config     OrchestratorConfig
	metrics    *Metrics
}

// NewChatOrchestrator creates a chat orchestrator
func NewChatOrchestrator(
	creators CreatorLookup,
	dispatcher *Dispatcher,
	admission Admitter,
	retrieval Retriever,
	generator Generator,
	store ConversationStore,
	config OrchestratorConfig,
	metrics *Metrics,
) *ChatOrchestrator {
	if config.MaxSnippets < 1 {
		config.MaxSnippets = 5
	}
	if config.HistoryTurns < 0 {
		config.HistoryTurns = 0
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = 5 * time.Second
	}
	return &ChatOrchestrator{
		creators:   creators,
		dispatcher: dispatcher,
		admission:  admission,
		retrieval:  retrieval,
		generator:  generator,
		store:      store,
		config:     config,
		metrics:    metrics,
	}
}

// MessageRequest is one inbound chat message
type MessageRequest struct {
	RequestID      string
	Identity       string
	Tier           models.Tier
	CreatorRef     models.CreatorCorpusRef
	ConversationID string
	Message        string
}

// ChatResult is the outcome of a handled message
type ChatResult struct {
	Reply             string
	SnippetCount      int
	ConversationID    string
	Strategy          string
	RetrievalDegraded bool
	Persisted         bool
	PersistErr        error
	Decision          models.QuotaDecision
	ProcessingTime    time.Duration
}

// HandleMessage processes one message. On quota rejection the result carries the decision
// and the error is a quota_exceeded *ChatError. Retrieval failures degrade to an empty
// context; generation failures fail the request; persistence failures are reported on the
// result without retracting the reply.
func (o *ChatOrchestrator) HandleMessage(ctx context.Context, req MessageRequest) (*ChatResult, error) {
	start := time.Now()
	o.metrics.RecordChatRequest()

	result, err := o.handle(ctx, req, start)
	if result != nil {
		result.ProcessingTime = time.Since(start)
	}
	if err != nil {
		o.metrics.RecordChatError(KindOf(err))
	}
	o.metrics.RecordChatLatency(time.Since(start).Seconds())
	return result, err
}

func (o *ChatOrchestrator) handle(ctx context.Context, req MessageRequest, receivedAt time.Time) (*ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if req.Identity == "" {
		return nil, newChatError(KindBadRequest, nil, "identity is required")
	}
	if message == "" {
		return nil, newChatError(KindBadRequest, nil, "message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		return nil, newChatError(KindBadRequest, nil, "message exceeds %d characters", maxMessageRunes)
	}

	// Unknown creators are rejected before any quota is consumed
	creator, err := o.creators.Get(req.CreatorRef)
	if err != nil {
		return nil, err
	}

	logger := logging.WithRequest(req.RequestID, req.Identity, string(req.CreatorRef), req.ConversationID)

	if o.dispatcher != nil {
		release, err := o.dispatcher.Acquire(ctx)
		if err != nil {
			logger.Warn("no dispatch slot", "error", err)
			return nil, err
		}
		defer release()
	}

	// 1. Admit
	decision, err := o.admission.CheckAndConsume(ctx, req.Identity, req.Tier, ChatEndpoint)
	if err != nil {
		return &ChatResult{ConversationID: req.ConversationID, Decision: decision}, err
	}

	conversationID, existing := o.resolveConversation(ctx, logger, req, creator.Ref())
	if conversationID != req.ConversationID {
		logger = logging.WithRequest(req.RequestID, req.Identity, string(req.CreatorRef), conversationID)
	}
	result := &ChatResult{ConversationID: conversationID, Decision: decision}

	// 2. Retrieve, and load prior turns alongside it
	var (
		retrieved models.RetrievalResult
		history   []models.ConversationTurn
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		retrieved, result.RetrievalDegraded = o.retrieve(ctx, logger, creator, message)
	}()
	if existing && o.config.HistoryTurns > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			history = o.loadHistory(ctx, logger, conversationID)
		}()
	}
	wg.Wait()

	result.SnippetCount = len(retrieved.Snippets)
	result.Strategy = retrieved.Strategy

	// 3. Compose & generate
	prompt := BuildPrompt(creator, AnalyzeQuery(message), retrieved.Snippets, message)
	reply, err := o.generator.Generate(ctx, prompt, history)
	if err != nil {
		logger.Error("generation failed", "error", err)
		if KindOf(err) == "" {
			err = newChatError(KindGenerationUnavailable, err, "generation failed")
		}
		return nil, err
	}
	result.Reply = reply

	// 4. Persist on a context the caller cannot cancel; the reply stands either way
	conv := models.Conversation{
		ID:         conversationID,
		Identity:   req.Identity,
		CreatorRef: creator.Ref(),
		Title:      "Chat with " + creator.Name,
	}
	if err := o.persist(ctx, conv, message, receivedAt, reply, result.SnippetCount); err != nil {
		o.metrics.RecordPersistenceFailure()
		logger.Error("persistence failed", "error", err)
		result.PersistErr = newChatError(KindPersistenceFailed, err, "conversation turns not saved")
	} else {
		result.Persisted = true
	}

	logger.Info("chat handled",
		"snippets", result.SnippetCount,
		"strategy", result.Strategy,
		"degraded", result.RetrievalDegraded,
		"persisted", result.Persisted,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)
	return result, nil
}

// retrieve runs the retrieval engine. Any failure becomes an empty context and degraded=true.
func (o *ChatOrchestrator) retrieve(ctx context.Context, logger *slog.Logger, creator models.Creator, message string) (models.RetrievalResult, bool) {
	empty := models.RetrievalResult{Snippets: []models.Snippet{}}
	logger = logging.WithStage(logger, "retrieval")

	query, err := models.NewRetrievalQuery(message, creator.Ref(), o.config.MaxSnippets, o.config.SimilarityFloor)
	if err != nil {
		logger.Warn("invalid retrieval query", "error", err)
		return empty, true
	}

	res, err := o.retrieval.Retrieve(ctx, query)
	if err != nil {
		reason := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.metrics.RecordRetrievalDegraded(reason)
		logger.Warn("retrieval unavailable, continuing without context", "reason", reason, "error", err)
		empty.Strategy = res.Strategy
		return empty, true
	}
	return res, false
}

// resolveConversation picks the conversation a message belongs to. A requested id owned by
// another identity or creator is replaced with a new one; an unused id is claimed by the
// caller. existing reports whether prior turns may be loaded.
func (o *ChatOrchestrator) resolveConversation(ctx context.Context, logger *slog.Logger, req MessageRequest, creatorRef models.CreatorCorpusRef) (conversationID string, existing bool) {
	if req.ConversationID == "" {
		return uuid.New().String(), false
	}

	conv, err := o.store.GetConversation(ctx, req.ConversationID)
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return req.ConversationID, false
	case err != nil:
		logging.WithStage(logger, "history").Warn("failed to load conversation, continuing without history", "error", err)
		return req.ConversationID, false
	case !conv.OwnedBy(req.Identity, creatorRef):
		conversationID = uuid.New().String()
		logger.Warn("conversation belongs to another owner, starting a new one", "new_conversation_id", conversationID)
		return conversationID, false
	}
	return req.ConversationID, true
}

// loadHistory returns the last HistoryTurns turns. A read failure yields no history.
func (o *ChatOrchestrator) loadHistory(ctx context.Context, logger *slog.Logger, conversationID string) []models.ConversationTurn {
	turns, err := o.store.ListTurns(ctx, conversationID, o.config.HistoryTurns)
	if err != nil {
		logging.WithStage(logger, "history").Warn("failed to load conversation history", "error", err)
		return nil
	}
	return turns
}

// persist binds the conversation to its owner, then appends the user and assistant turns.
// A conversation claimed by another owner in the meantime is not written to.
func (o *ChatOrchestrator) persist(ctx context.Context, conv models.Conversation, message string, receivedAt time.Time, reply string, snippetCount int) error {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.PersistTimeout)
	defer cancel()

	stored, err := o.store.EnsureConversation(persistCtx, conv)
	if err != nil {
		return err
	}
	if !stored.OwnedBy(conv.Identity, conv.CreatorRef) {
		return errors.New("conversation is owned by another identity or creator")
	}

	userTurn := models.ConversationTurn{
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: receivedAt.UTC(),
	}
	if err := o.store.AppendTurn(persistCtx, conv.ID, userTurn); err != nil {
		return err
	}

	assistantTurn := models.ConversationTurn{
		Role:          models.RoleAssistant,
		Content:       reply,
		CreatedAt:     time.Now().UTC(),
		RetrievalMeta: &models.RetrievalMeta{SnippetCount: snippetCount},
	}
	return o.store.AppendTurn(persistCtx, conv.ID, assistantTurn)
}

// History returns the latest turns of a conversation owned by identity. Conversations
// that do not exist or belong to someone else are both reported as not found.
func (o *ChatOrchestrator) History(ctx context.Context, identity, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, newChatError(KindBadRequest, nil, "conversation id is required")
	}
	if identity == "" {
		return nil, newChatError(KindBadRequest, nil, "identity is required")
	}

	conv, err := o.store.GetConversation(ctx, conversationID)
	if errors.Is(err, ErrConversationNotFound) || (err == nil && conv.Identity != identity) {
		return nil, newChatError(KindNotFound, nil, "conversation not found")
	}
	if err != nil {
		return nil, newChatError(KindPersistenceFailed, err, "failed to read conversation")
	}

	turns, err := o.store.ListTurns(ctx, conversationID, limit)
	if err != nil {
		return nil, newChatError(KindPersistenceFailed, err, "failed to read conversation")
	}
	return turns, nil
}

// Conversations lists the conversations of identity, most recently updated first
func (o *ChatOrchestrator) Conversations(ctx context.Context, identity string, limit int) ([]models.Conversation, error) {
	if identity == "" {
		return nil, newChatError(KindBadRequest, nil, "identity is required")
	}
	convs, err := o.store.ListConversations(ctx, identity, limit)
	if err != nil {
		return nil, newChatError(KindPersistenceFailed, err, "failed to list conversations")
	}
	return convs, nil
}
