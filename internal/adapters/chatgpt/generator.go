// Package chatgpt provides a TextGenerator backed by OpenAI chat completions.
package chatgpt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// ErrEmptyCompletion is returned when the API answers without any choice content.
var ErrEmptyCompletion = errors.New("chat completion returned no content")

// completionClient is the subset of the OpenAI client used here.
type completionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures a Generator.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	// RequestsPerSecond caps outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Logger            *slog.Logger

	// Client overrides the OpenAI client (tests).
	Client completionClient
}

// Generator answers prompts with an OpenAI chat model.
type Generator struct {
	client      completionClient
	model       string
	temperature *float64
	limiter     *rate.Limiter
	timeout     time.Duration
	logger      *slog.Logger
}

var _ core.TextGenerator = (*Generator)(nil)

// New creates a Generator.
func New(opts Options) (*Generator, error) {
	client := opts.Client
	if client == nil {
		if opts.APIKey == "" {
			return nil, errors.New("openai api key is required")
		}
		reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
		}
		c := openai.NewClient(reqOpts...)
		client = &c.Chat.Completions
	}

	g := &Generator{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "chatgpt_generator", "model", g.model)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g, nil
}

// Generate sends the prompt as a system and a user message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("openai rate limit wait: %w", err)
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
	}
	if g.temperature != nil {
		params.Temperature = openai.Float(*g.temperature)
	}

	start := time.Now()
	resp, err := g.client.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	g.logger.DebugContext(ctx, "chat completion finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}
