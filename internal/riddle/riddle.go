// Package riddle writes short rhyming riddles that hint at a gift without
// naming it, using Gemini through google.golang.org/genai.
package riddle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"giftflow/internal/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	// ErrNoAPIKey is returned when no Gemini key is configured.
	ErrNoAPIKey = errors.New("GEMINI_API_KEY environment variable is not set")
	// ErrEmptyRiddle is returned when the model answers with no text.
	ErrEmptyRiddle = errors.New("model returned an empty riddle")
)

// Generator produces a riddle for a recipient and gift idea.
type Generator interface {
	Generate(ctx context.Context, recipient, giftIdea string) (string, error)
}

// contentGenerator is the slice of *genai.Models the generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIGenerator calls the Gemini API.
type GenAIGenerator struct {
	models      contentGenerator
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	logger      *zap.Logger
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*GenAIGenerator, error) {
	if cfg.Riddle.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Riddle.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentGenerator, cfg *config.Config, logger *zap.Logger) *GenAIGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Riddle.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GenAIGenerator{
		models:      models,
		model:       model,
		temperature: cfg.Riddle.Temperature,
		maxTokens:   cfg.Riddle.MaxOutputTokens,
		timeout:     cfg.GetRiddleTimeout(),
		logger:      logger,
	}
}

// Generate asks the model for a riddle and returns the trimmed text.
func (g *GenAIGenerator) Generate(ctx context.Context, recipient, giftIdea string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Debug("generating riddle", zap.String("recipient", recipient), zap.String("gift", giftIdea))
	resp, err := g.models.GenerateContent(ctx, g.model,
		genai.Text(Prompt(recipient, giftIdea)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(g.temperature),
			MaxOutputTokens:   g.maxTokens,
		})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyRiddle
	}
	g.logger.Info("riddle generated", zap.String("recipient", recipient), zap.Int("chars", len(text)))
	return text, nil
}
