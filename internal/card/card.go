// Package card generates a one-page holiday card carrying the riddle, via the
// Gamma generations API.
package card

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"giftflow/internal/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNoAPIKey is returned when no Gamma key is configured.
	ErrNoAPIKey = errors.New("GAMMA_API_KEY environment variable is not set")
	// ErrNoCardURL is returned when the API accepts a request but returns no link.
	ErrNoCardURL = errors.New("gamma response carried no card url")
)

// Generator produces a shareable card link for a recipient and riddle.
type Generator interface {
	Generate(ctx context.Context, recipient, riddle string) (string, error)
}

// APIError is a non-2xx answer from the Gamma API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Gamma API error: %d - %s", e.StatusCode, e.Body)
}

type generationRequest struct {
	Topic           string          `json:"topic"`
	Style           string          `json:"style"`
	NumCards        int             `json:"numCards"`
	ImageGeneration imageGeneration `json:"imageGeneration"`
	Sharing         sharing         `json:"sharing"`
}

type imageGeneration struct {
	Enabled bool   `json:"enabled"`
	Model   string `json:"model"`
}

type sharing struct {
	ExternalAccess bool `json:"externalAccess"`
}

type generationResponse struct {
	ID       string `json:"id"`
	GammaURL string `json:"gammaUrl"`
	Status   string `json:"status"`
}

// GammaClient calls the Gamma generations endpoint. Requests are paced by a
// token-bucket limiter shared by every caller of the client.
type GammaClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	style      string
	imageModel string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGammaClient builds a client from config.
func NewGammaClient(cfg *config.Config, logger *zap.Logger) (*GammaClient, error) {
	if cfg.Card.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.Card.RatePerSec > 0 {
		limit = rate.Limit(cfg.Card.RatePerSec)
	}
	burst := cfg.Card.Burst
	if burst < 1 {
		burst = 1
	}

	return &GammaClient{
		httpClient: &http.Client{Timeout: cfg.GetCardTimeout()},
		baseURL:    strings.TrimRight(cfg.Card.BaseURL, "/"),
		apiKey:     cfg.Card.APIKey,
		style:      cfg.Card.Style,
		imageModel: cfg.Card.ImageModel,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// Topic is the card body sent to Gamma.
func Topic(recipient, riddle string) string {
	return fmt.Sprintf("Holiday Gift Card for %s\n\n%s\n\n🎄 Happy Holidays! 🎁", recipient, riddle)
}

// Generate creates a card and returns its public URL.
func (c *GammaClient) Generate(ctx context.Context, recipient, riddle string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gamma rate limit: %w", err)
	}

	body, err := json.Marshal(generationRequest{
		Topic:           Topic(recipient, riddle),
		Style:           c.style,
		NumCards:        1,
		ImageGeneration: imageGeneration{Enabled: true, Model: c.imageModel},
		Sharing:         sharing{ExternalAccess: true},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gamma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gamma response: %w", err)
	}
	if out.GammaURL == "" {
		return "", ErrNoCardURL
	}

	c.logger.Info("card generated",
		zap.String("recipient", recipient),
		zap.String("url", out.GammaURL),
		zap.Duration("took", time.Since(start)))
	return out.GammaURL, nil
}
