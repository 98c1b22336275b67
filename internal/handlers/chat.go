package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"personachat/internal/middleware"
	"personachat/internal/models"
	"personachat/internal/services"
)

// ChatProcessor runs chat messages and reads an identity's conversations
type ChatProcessor interface {
	HandleMessage(ctx context.Context, req services.MessageRequest) (*services.ChatResult, error)
	History(ctx context.Context, identity, conversationID string, limit int) ([]models.ConversationTurn, error)
	Conversations(ctx context.Context, identity string, limit int) ([]models.Conversation, error)
}

// TierResolver maps a tier name to a known tier
type TierResolver interface {
	Resolve(tier string) models.Tier
}

// ChatHandler handles the chat endpoint
type ChatHandler struct {
	processor ChatProcessor
	tiers     TierResolver
}

// NewChatHandler creates a new chat handler
func NewChatHandler(processor ChatProcessor, tiers TierResolver) *ChatHandler {
	return &ChatHandler{processor: processor, tiers: tiers}
}

// Chat handles one chat message
// POST /api/v1/chat
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request body",
			Kind:  string(services.KindBadRequest),
		})
	}

	msg := h.messageRequest(c, req, c.GetRespHeader(fiber.HeaderXRequestID))
	result, err := h.processor.HandleMessage(c.UserContext(), msg)
	if result != nil {
		setRateLimitHeaders(c, result.Decision)
	}
	if err != nil {
		return writeChatError(c, err)
	}

	return c.JSON(chatResponse(result))
}

// messageRequest merges the body with a verified token identity, which always wins
func (h *ChatHandler) messageRequest(c *fiber.Ctx, req models.ChatRequest, requestID string) services.MessageRequest {
	identity, tier := req.Identity, req.Tier
	if tokenID, tokenTier, ok := middleware.IdentityFromCtx(c); ok {
		identity, tier = tokenID, tokenTier
	}
	return services.MessageRequest{
		RequestID:      requestID,
		Identity:       identity,
		Tier:           h.tiers.Resolve(tier),
		CreatorRef:     models.CreatorCorpusRef(req.CreatorRef),
		ConversationID: req.ConversationID,
		Message:        req.Message,
	}
}

func chatResponse(result *services.ChatResult) models.ChatResponse {
	resp := models.ChatResponse{
		Reply:              result.Reply,
		SnippetCount:       result.SnippetCount,
		ConversationID:     result.ConversationID,
		RetrievalStrategy:  result.Strategy,
		RetrievalDegraded:  result.RetrievalDegraded,
		Persisted:          result.Persisted,
		ProcessingTimeMs:   result.ProcessingTime.Milliseconds(),
		RateLimitRemaining: result.Decision.Remaining,
	}
	if result.PersistErr != nil {
		resp.PersistenceError = string(services.KindPersistenceFailed)
	}
	return resp
}

func setRateLimitHeaders(c *fiber.Ctx, decision models.QuotaDecision) {
	// No window means admission never reached the counter store
	if decision.Window.Endpoint == "" || decision.Unlimited() {
		return
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	if !decision.ResetAt.IsZero() {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
}

// errorResponse maps a pipeline error to a status code and body
func errorResponse(err error) (int, models.ErrorResponse) {
	var ce *services.ChatError
	if !errors.As(err, &ce) {
		if errors.Is(err, context.Canceled) {
			return fiber.StatusRequestTimeout, models.ErrorResponse{Error: "Request cancelled", Kind: "cancelled"}
		}
		return fiber.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error", Kind: "internal"}
	}

	resp := models.ErrorResponse{Error: ce.Message, Kind: string(ce.Kind)}
	switch ce.Kind {
	case services.KindQuotaExceeded:
		resp.RetryAfter = models.QuotaDecision{RetryAfter: ce.RetryAfter}.RetryAfterSeconds()
	case services.KindAdmissionUnavailable, services.KindOverloaded:
		resp.RetryAfter = 1
	}
	return ce.HTTPStatus(), resp
}

func writeChatError(c *fiber.Ctx, err error) error {
	status, resp := errorResponse(err)
	if resp.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(resp.RetryAfter))
	}
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [CHAT] Request failed: %v", err)
	}
	return c.Status(status).JSON(resp)
}
