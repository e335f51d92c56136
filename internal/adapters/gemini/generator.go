// Package gemini provides a TextGenerator backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a Generator.
type Options struct {
	APIKey            string
	Model             string
	Temperature       *float32
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Logger            *slog.Logger

	// Client overrides the genai models service (tests).
	Client contentGenerator
}

// Generator answers prompts with a Gemini model.
type Generator struct {
	client      contentGenerator
	model       string
	temperature *float32
	limiter     *rate.Limiter
	timeout     time.Duration
	logger      *slog.Logger
}

var _ core.TextGenerator = (*Generator)(nil)

// New creates a Generator. A context is needed because the genai client may
// resolve credentials at construction.
func New(ctx context.Context, opts Options) (*Generator, error) {
	client := opts.Client
	if client == nil {
		if opts.APIKey == "" {
			return nil, errors.New("gemini api key is required")
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		client = c.Models
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
	g.logger = g.logger.With("component", "gemini_generator", "model", g.model)
	if opts.RequestsPerSecond > 0 {
		burst := max(opts.Burst, 1)
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g, nil
}

// Generate sends the user text with the system text as system instruction.
func (g *Generator) Generate(ctx context.Context, prompt model.Prompt) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("gemini rate limit wait: %w", err)
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{}
	if g.temperature != nil {
		cfg.Temperature = genai.Ptr(*g.temperature)
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}

	start := time.Now()
	resp, err := g.client.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	g.logger.DebugContext(ctx, "gemini generation finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(text))
	return text, nil
}
