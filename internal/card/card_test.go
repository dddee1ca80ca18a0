package card

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"giftflow/internal/config"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *GammaClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.Card.APIKey = "sk-test"
	cfg.Card.BaseURL = ts.URL + "/v2/"
	cfg.Card.RatePerSec = 0
	c, err := NewGammaClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	var got generationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"id": "g1", "gammaUrl": "https://gamma.app/docs/g1", "status": "completed"})
	})

	url, err := c.Generate(context.Background(), "Alice", "Soft and warm")
	require.NoError(t, err)
	assert.Equal(t, "https://gamma.app/docs/g1", url)

	want := generationRequest{
		Topic:           "Holiday Gift Card for Alice\n\nSoft and warm\n\n🎄 Happy Holidays! 🎁",
		Style:           "festive holiday theme with warm colors",
		NumCards:        1,
		ImageGeneration: imageGeneration{Enabled: true, Model: "nano-banana-pro"},
		Sharing:         sharing{ExternalAccess: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	_, err := c.Generate(context.Background(), "Alice", "riddle")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Gamma API error: 401 - invalid api key", err.Error())
}

func TestGenerate_MissingURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"g1","status":"pending"}`))
	})

	_, err := c.Generate(context.Background(), "Alice", "riddle")
	assert.ErrorIs(t, err, ErrNoCardURL)
}

func TestGenerate_RespectsRateLimitCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"gammaUrl":"https://gamma.app/docs/x"}`))
	})
	cfg := config.DefaultConfig()
	cfg.Card.APIKey = "k"
	cfg.Card.RatePerSec = 0.001
	slow, err := NewGammaClient(cfg, nil)
	require.NoError(t, err)
	slow.baseURL = c.baseURL
	slow.httpClient = c.httpClient

	_, err = slow.Generate(context.Background(), "A", "r")
	require.NoError(t, err, "first call uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = slow.Generate(ctx, "A", "r")
	assert.ErrorContains(t, err, "rate limit")
}

func TestNewGammaClient_RequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Card.APIKey = ""
	_, err := NewGammaClient(cfg, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
