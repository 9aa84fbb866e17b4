// Package narrator asks a chat-completion model to describe data trends in
// a post-sized blurb.
package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/web3-frozen/akash-stats-bot/internal/metrics"
)

const (
	DefaultCharLimit = 280
	DefaultModel     = "DeepSeek-R1"
	requestTimeout   = 2 * time.Minute
)

// ChatClient is the subset of the OpenAI client the narrator uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Narrator turns row records into short trend text.
type Narrator struct {
	client    ChatClient
	model     string
	charLimit int
	logger    *slog.Logger
}

// Option customizes a Narrator.
type Option func(*Narrator)

// WithCharLimit overrides the default character budget.
func WithCharLimit(n int) Option {
	return func(nr *Narrator) { nr.charLimit = n }
}

// New builds a Narrator backed by an OpenAI-compatible endpoint.
func New(baseURL, apiKey, model string, logger *slog.Logger, opts ...Option) *Narrator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewWithClient(openai.NewClientWithConfig(cfg), model, logger, opts...)
}

// NewWithClient builds a Narrator around an existing chat client.
func NewWithClient(client ChatClient, model string, logger *slog.Logger, opts ...Option) *Narrator {
	if model == "" {
		model = DefaultModel
	}
	n := &Narrator{
		client:    client,
		model:     model,
		charLimit: DefaultCharLimit,
		logger:    logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Narrate returns a trend description of records within the character
// budget. The result may be empty when the model's first sentence alone
// is over budget.
func (n *Narrator) Narrate(ctx context.Context, records any) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(string(data))},
		},
	})
	if err != nil {
		metrics.NarrationTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.NarrationTotal.WithLabelValues("error").Inc()
		return "", errors.New("chat completion: no choices returned")
	}
	metrics.NarrationTotal.WithLabelValues("ok").Inc()

	text := StripThink(resp.Choices[0].Message.Content)
	limited := LimitText(text, n.charLimit)
	if limited != text {
		metrics.NarrationTruncatedTotal.Inc()
		n.logger.Debug("narration truncated", "from", len([]rune(text)), "to", len([]rune(limited)))
	}
	return strings.TrimSpace(limited), nil
}
