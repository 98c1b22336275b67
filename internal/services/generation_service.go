package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"personachat/internal/models"
)

// Generator produces the assistant reply for a composed prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, priorTurns []models.ConversationTurn) (string, error)
}

// GenerationConfig configures the OpenAI-compatible generation client
type GenerationConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	RPS         float64 // outbound requests per second across this worker, 0 = unthrottled
}

// GenerationService calls an OpenAI-compatible chat completions endpoint.
// Each request is attempted once under a bounded timeout.
type GenerationService struct {
	client  openai.Client
	config  GenerationConfig
	limiter *rate.Limiter
	metrics *Metrics
}

// NewGenerationService creates a generation client
func NewGenerationService(cfg GenerationConfig, metrics *Metrics) *GenerationService {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &GenerationService{
		client:  openai.NewClient(opts...),
		config:  cfg,
		limiter: limiter,
		metrics: metrics,
	}
}

// Generate sends prior turns followed by the prompt and returns the first choice
func (s *GenerationService) Generate(ctx context.Context, prompt string, priorTurns []models.ConversationTurn) (string, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", newChatError(KindGenerationUnavailable, err, "generation throttled")
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(priorTurns)+1)
	for _, turn := range priorTurns {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(s.config.Model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(s.config.MaxTokens)),
	}
	if s.config.Temperature > 0 {
		params.Temperature = openai.Float(s.config.Temperature)
	}

	start := time.Now()
	completion, err := s.client.Chat.Completions.New(ctx, params)
	s.metrics.RecordGenerationLatency(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newChatError(KindGenerationUnavailable, err, "generation timed out after %s", s.config.Timeout)
		}
		return "", newChatError(KindGenerationUnavailable, err, "generation request failed")
	}

	if len(completion.Choices) == 0 {
		return "", newChatError(KindGenerationUnavailable, nil, "generation returned no choices")
	}
	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", newChatError(KindGenerationUnavailable, nil, "generation returned an empty reply")
	}

	log.Printf("🤖 [GENERATION] %s replied in %s (%d chars)", s.config.Model, time.Since(start).Round(time.Millisecond), len(reply))
	return reply, nil
}

// Name identifies the dependency in readiness reports
func (s *GenerationService) Name() string {
	return "generation"
}

// Ping lists models to verify the endpoint and credentials
func (s *GenerationService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return fmt.Errorf("generation endpoint unreachable: %w", err)
	}
	return nil
}
