package handlers

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"personachat/internal/middleware"
	"personachat/internal/models"
	"personachat/internal/services"
)

const (
	wsReadTimeout  = 120 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// ClientMessage is one frame sent by a WebSocket client
type ClientMessage struct {
	Type           string `json:"type"` // "chat" or "ping"
	Identity       string `json:"identity,omitempty"`
	Tier           string `json:"tier,omitempty"`
	CreatorRef     string `json:"creator_ref"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ServerMessage is one frame sent to a WebSocket client
type ServerMessage struct {
	Type  string                `json:"type"` // "connected", "reply", "error", "pong"
	Reply *models.ChatResponse  `json:"reply,omitempty"`
	Error *models.ErrorResponse `json:"error,omitempty"`
}

// WebSocketHandler runs chat over a WebSocket. Each frame goes through the same
// pipeline as POST /api/v1/chat; the conversation id sticks to the connection.
type WebSocketHandler struct {
	chat    *ChatHandler
	metrics *services.Metrics
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(chat *ChatHandler, metrics *services.Metrics) *WebSocketHandler {
	return &WebSocketHandler{chat: chat, metrics: metrics}
}

type wsSession struct {
	conn           *websocket.Conn
	writeMu        sync.Mutex
	connID         string
	identity       string
	tier           string
	conversationID string
}

func (s *wsSession) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(msg)
}

// Handle handles a new WebSocket connection
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	session := &wsSession{conn: c, connID: uuid.New().String()}
	if id, ok := c.Locals(middleware.LocalIdentity).(string); ok {
		session.identity = id
		session.tier, _ = c.Locals(middleware.LocalIdentityTier).(string)
	}

	h.metrics.RecordWebSocketConnect()
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.metrics.RecordWebSocketDisconnect()
		log.Printf("🔌 [WS] Connection %s closed", session.connID)
	}()

	c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	go h.pingLoop(ctx, session)

	if err := session.send(ServerMessage{Type: "connected"}); err != nil {
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️  [WS] Read error on %s: %v", session.connID, err)
			}
			return
		}
		c.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			session.send(ServerMessage{Type: "error", Error: &models.ErrorResponse{
				Error: "Invalid message format",
				Kind:  string(services.KindBadRequest),
			}})
			continue
		}

		if msg.Type == "ping" {
			session.send(ServerMessage{Type: "pong"})
			continue
		}

		if err := session.send(h.handleChat(ctx, session, msg)); err != nil {
			return
		}
	}
}

// handleChat runs one chat frame. Messages are handled in order, one at a time.
func (h *WebSocketHandler) handleChat(ctx context.Context, session *wsSession, msg ClientMessage) ServerMessage {
	identity, tier := msg.Identity, msg.Tier
	if session.identity != "" {
		identity, tier = session.identity, session.tier
	}
	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = session.conversationID
	}

	result, err := h.chat.processor.HandleMessage(ctx, services.MessageRequest{
		RequestID:      uuid.New().String(),
		Identity:       identity,
		Tier:           h.chat.tiers.Resolve(tier),
		CreatorRef:     models.CreatorCorpusRef(msg.CreatorRef),
		ConversationID: conversationID,
		Message:        msg.Message,
	})
	if err != nil {
		_, resp := errorResponse(err)
		return ServerMessage{Type: "error", Error: &resp}
	}

	session.conversationID = result.ConversationID
	resp := chatResponse(result)
	return ServerMessage{Type: "reply", Reply: &resp}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, session *wsSession) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session.writeMu.Lock()
			err := session.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout))
			session.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
