package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/desertthunder/mixtape/internal/shared"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// ClaudeGenerator implements [TextGenerator] with the Anthropic Messages API.
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClaudeGenerator creates a [ClaudeGenerator]. Extra request options are passed to the SDK client.
func NewClaudeGenerator(apiKey string, cfg shared.LLMConfig, opts ...option.RequestOption) (*ClaudeGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic api_key", shared.ErrMissingCredentials)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &ClaudeGenerator{
		client:      anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:       cfg.Model,
		maxTokens:   int64(maxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (g *ClaudeGenerator) Name() string { return "Claude" }

// Generate implements [TextGenerator].
func (g *ClaudeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(g.temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// GeminiGenerator implements [TextGenerator] with the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float64
}

// NewGeminiGenerator creates a [GeminiGenerator].
func NewGeminiGenerator(ctx context.Context, apiKey string, cfg shared.LLMConfig) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api_key", shared.ErrMissingCredentials)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "claude") {
		model = defaultGeminiModel
	}

	return &GeminiGenerator{client: client, model: model, temperature: cfg.Temperature}, nil
}

func (g *GeminiGenerator) Name() string { return "Gemini" }

// contentConfig leaves Temperature unset when none is configured so the model default applies.
func (g *GeminiGenerator) contentConfig(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(float32(g.temperature))
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return config
}

// Generate implements [TextGenerator].
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.contentConfig(system))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			out.WriteString(part.Text)
		}
		if out.Len() > 0 {
			break
		}
	}
	return out.String(), nil
}

// NewGenerator returns the [TextGenerator] selected by cfg.LLM.Provider.
func NewGenerator(ctx context.Context, cfg *shared.Config) (TextGenerator, error) {
	switch cfg.LLM.Provider {
	case "", "claude":
		return NewClaudeGenerator(cfg.Credentials.Anthropic.APIKey, cfg.LLM)
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.Credentials.Gemini.APIKey, cfg.LLM)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", shared.ErrInvalidConfig, cfg.LLM.Provider)
	}
}
