package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeGenerator(t *testing.T) {
	cfg := shared.LLMConfig{Provider: "claude", Model: "claude-sonnet-4-20250514", MaxTokens: 512}

	t.Run("MissingKey", func(t *testing.T) {
		_, err := NewClaudeGenerator("", cfg)
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("Generate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
			assert.NotEmpty(t, body["system"])

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
				"content": [{"type": "text", "text": "{\"description\": \"ok\", \"songs\": []}"}],
				"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
			}`))
		}))
		defer srv.Close()

		g, err := NewClaudeGenerator("test-key", cfg, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
		require.NoError(t, err)
		assert.Equal(t, "Claude", g.Name())

		out, err := g.Generate(context.Background(), "you build playlists", "jazz please")
		require.NoError(t, err)
		assert.Equal(t, `{"description": "ok", "songs": []}`, out)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
		}))
		defer srv.Close()

		g, err := NewClaudeGenerator("test-key", cfg, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
		require.NoError(t, err)

		_, err = g.Generate(context.Background(), "", "jazz")
		assert.Error(t, err)
	})
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsToClaude", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Credentials.Anthropic.APIKey = "key"

		g, err := NewGenerator(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, "Claude", g.Name())
	})

	t.Run("GeminiMissingKey", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.LLM.Provider = "gemini"

		_, err := NewGenerator(ctx, cfg)
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.LLM.Provider = "eliza"

		_, err := NewGenerator(ctx, cfg)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestGeminiGenerator_contentConfig(t *testing.T) {
	t.Run("UnsetTemperatureUsesModelDefault", func(t *testing.T) {
		config := (&GeminiGenerator{}).contentConfig("")
		assert.Nil(t, config.Temperature)
		assert.Nil(t, config.SystemInstruction)
	})

	t.Run("ConfiguredTemperature", func(t *testing.T) {
		config := (&GeminiGenerator{temperature: 0.7}).contentConfig("be brief")
		require.NotNil(t, config.Temperature)
		assert.InDelta(t, 0.7, *config.Temperature, 1e-6)
		require.NotNil(t, config.SystemInstruction)
		assert.Equal(t, "be brief", config.SystemInstruction.Parts[0].Text)
	})
}
