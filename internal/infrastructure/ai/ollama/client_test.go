package ollama

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
		Provider:       "ollama",
		Model:          "test-model",
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
	}
}

func TestGenerate_SendsWireFormat(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody generateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(generateResponse{Response: "Day 1\n**Breakfast**: Oats", Done: true})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	text, err := client.Generate(context.Background(), "plan please")
	require.NoError(t, err)

	assert.Equal(t, "Day 1\n**Breakfast**: Oats", text)
	assert.Equal(t, "/api/generate", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "test-model", gotBody.Model)
	assert.Equal(t, "plan please", gotBody.Prompt)
	// Streaming off keeps the plan in one body
	assert.False(t, gotBody.Stream)
}

func TestGenerate_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	_, err := client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestGenerate_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Done: true})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zap.NewNop())

	_, err := client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text")
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
	t.Run("model pulled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.Write([]byte(`{"models":[{"name":"test-model:latest"}]}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), nil, zap.NewNop())
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"models":[{"name":"other:latest"}]}`))
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), nil, zap.NewNop())
		err := client.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not pulled")
	})

	t.Run("daemon down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), nil, zap.NewNop())
		assert.Error(t, client.HealthCheck(context.Background()))
	})
}
