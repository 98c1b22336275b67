package models

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	Identity       string `json:"identity"`
	Tier           string `json:"tier"`
	CreatorRef     string `json:"creator_ref"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResponse is returned for a successfully generated reply
type ChatResponse struct {
	Reply              string `json:"reply"`
	SnippetCount       int    `json:"snippet_count"`
	ConversationID     string `json:"conversation_id"`
	RetrievalStrategy  string `json:"retrieval_strategy"`
	RetrievalDegraded  bool   `json:"retrieval_degraded"`
	Persisted          bool   `json:"persisted"`
	PersistenceError   string `json:"persistence_error,omitempty"`
	ProcessingTimeMs   int64  `json:"processing_time_ms"`
	RateLimitRemaining int64  `json:"rate_limit_remaining"` // -1 = unlimited
}

// ErrorResponse is the body of every non-2xx chat response
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
