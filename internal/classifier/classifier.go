// Package classifier maps free-text messages to structured operations using an
// OpenAI-compatible chat completion endpoint.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/vcsearch/internal/config"
	"github.com/ashureev/vcsearch/internal/domain"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyResponse is returned when the model answers without any choices.
var ErrEmptyResponse = errors.New("classifier returned no choices")

// Classifier turns one user message into one operation. A transport failure
// is an error; an undecodable reply is domain.Unrecognized.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Operation, error)
}

// OpenAI classifies with a single chat completion call per message.
type OpenAI struct {
	client      openai.Client
	model       openai.ChatModel
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewOpenAI builds a classifier from config. Retries are disabled; a failed
// call surfaces to the user as a generic error.
func NewOpenAI(cfg config.ClassifierConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       openai.ChatModel(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Classify sends text with the routing instruction and decodes the reply.
func (c *OpenAI) Classify(ctx context.Context, text string) (domain.Operation, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(Instruction),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	reply := resp.Choices[0].Message.Content
	op := Decode(reply)
	c.logger.Debug("Message classified",
		"operation", op.Kind().String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if u, ok := op.(domain.Unrecognized); ok {
		c.logger.Warn("Classifier reply not decodable", "reason", u.Reason, "reply", truncate(reply, 200))
	}
	return op, nil
}

// Fallback is used when no API key is configured. Every message becomes
// domain.Unrecognized and is therefore handled as a search.
type Fallback struct{}

// Classify implements Classifier.
func (Fallback) Classify(_ context.Context, text string) (domain.Operation, error) {
	return domain.Unrecognized{Raw: text, Reason: "classifier disabled"}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
