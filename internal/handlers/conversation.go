package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"personachat/internal/middleware"
	"personachat/internal/models"
	"personachat/internal/services"
)

const (
	defaultMessageLimit = 20
	maxMessageLimit     = 200
)

// ConversationHandler serves conversation history and listings
type ConversationHandler struct {
	processor ChatProcessor
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(processor ChatProcessor) *ConversationHandler {
	return &ConversationHandler{processor: processor}
}

// requestIdentity returns the verified token identity, or the "identity" query
// parameter when token auth is disabled
func requestIdentity(c *fiber.Ctx) string {
	if id, _, ok := middleware.IdentityFromCtx(c); ok {
		return id
	}
	return c.Query("identity")
}

func queryLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultMessageLimit)
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	return limit
}

// GetMessages returns the latest turns of a conversation, oldest first
// GET /api/v1/conversations/:id/messages?limit=20
func (h *ConversationHandler) GetMessages(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Conversation ID is required",
			Kind:  string(services.KindBadRequest),
		})
	}

	turns, err := h.processor.History(c.UserContext(), requestIdentity(c), conversationID, queryLimit(c))
	if err != nil {
		return writeChatError(c, err)
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}

	return c.JSON(models.ConversationMessagesResponse{
		ConversationID: conversationID,
		Messages:       turns,
		Count:          len(turns),
	})
}

// ListUserConversations returns a user's conversations, most recently updated first
// GET /api/v1/users/:user_id/conversations?limit=20
func (h *ConversationHandler) ListUserConversations(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "User ID is required",
			Kind:  string(services.KindBadRequest),
		})
	}

	if tokenID, _, ok := middleware.IdentityFromCtx(c); ok && tokenID != userID {
		log.Printf("🚫 [CONVERSATION] %s denied listing conversations of %s", tokenID, userID)
		return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
			Error: "Access denied",
			Kind:  string(services.KindForbidden),
		})
	}

	convs, err := h.processor.Conversations(c.UserContext(), userID, queryLimit(c))
	if err != nil {
		return writeChatError(c, err)
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	return c.JSON(models.UserConversationsResponse{
		UserID:        userID,
		Conversations: convs,
		Count:         len(convs),
	})
}
