package models

import "time"

// Role is the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// RetrievalMeta records how much creator context backed an assistant turn
type RetrievalMeta struct {
	SnippetCount int `bson:"snippetCount" json:"snippet_count"`
}

// ConversationTurn is one appended message. Turns are never mutated or deleted.
type ConversationTurn struct {
	ID             string         `bson:"turnId" json:"id"`
	ConversationID string         `bson:"conversationId" json:"conversation_id"`
	Role           Role           `bson:"role" json:"role"`
	Content        string         `bson:"content" json:"content"`
	CreatedAt      time.Time      `bson:"createdAt" json:"created_at"`
	RetrievalMeta  *RetrievalMeta `bson:"retrievalMeta,omitempty" json:"retrieval_meta,omitempty"`
}

// ConversationMessagesResponse is returned by the history endpoint
type ConversationMessagesResponse struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []ConversationTurn `json:"messages"`
	Count          int                `json:"count"`
}

// Conversation is the metadata of one conversation. Identity and CreatorRef are fixed at
// creation; only UpdatedAt moves.
type Conversation struct {
	ID         string           `bson:"conversationId" json:"id"`
	Identity   string           `bson:"identity" json:"identity"`
	CreatorRef CreatorCorpusRef `bson:"creatorRef" json:"creator_ref"`
	Title      string           `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt  time.Time        `bson:"createdAt" json:"created_at"`
	UpdatedAt  time.Time        `bson:"updatedAt" json:"updated_at"`
}

// OwnedBy reports whether the conversation belongs to identity talking to creatorRef
func (c Conversation) OwnedBy(identity string, creatorRef CreatorCorpusRef) bool {
	return c.Identity == identity && c.CreatorRef == creatorRef
}

// UserConversationsResponse is returned by the conversation listing endpoint
type UserConversationsResponse struct {
	UserID        string         `json:"user_id"`
	Conversations []Conversation `json:"conversations"`
	Count         int            `json:"count"`
}
