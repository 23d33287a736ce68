package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

func testConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		Model:          "test-model",
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
	}
}

func TestGenerate_SendsWireFormat(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Day 1\n**Breakfast**: Oats"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	text, err := client.Generate(context.Background(), "plan please")
	require.NoError(t, err)

	assert.Equal(t, "Day 1\n**Breakfast**: Oats", text)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "plan please", gotBody.Messages[0].Content)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	_, err := client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	_, err := client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestGenerate_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	_, err := client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestHealthCheck(t *testing.T) {
	t.Run("accepted key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			w.Write([]byte(`{"data":[]}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), nil, zap.NewNop())
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("rejected key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), nil, zap.NewNop())
		assert.Error(t, client.HealthCheck(context.Background()))
	})
}
