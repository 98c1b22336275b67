package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRequest returns a logger carrying the fields of one chat request.
// Use this for all logging inside a single orchestrated turn.
func WithRequest(requestID, identity, creatorRef, conversationID string) *slog.Logger {
	return slog.With(
		"request_id", requestID,
		"identity", identity,
		"creator_ref", creatorRef,
		"conversation_id", conversationID,
	)
}

// WithStage scopes a request logger to one stage of the pipeline
func WithStage(logger *slog.Logger, stage string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("stage", stage)
}
