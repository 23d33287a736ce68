// Package ollama integrates a local Ollama server for plan and grocery
// text generation. Implements the TextGenerator port for deployments
// that keep inference on their own hardware.
package ollama

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

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

const maxErrorBody = 512

// defaultBaseURL is where a locally running Ollama listens.
const defaultBaseURL = "http://localhost:11434"

// Client calls the generate endpoint of an Ollama model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an Ollama client from configuration. A nil
// httpClient gets a default one with the configured timeout, and an
// empty base URL falls back to the local daemon address.
func NewClient(cfg config.AIConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model),
		zap.Int("timeout_seconds", cfg.TimeoutSeconds))

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger.Named("ollama-client"),
	}
}

// Ollama API structures
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends one prompt and returns the completion. Streaming is
// disabled so the full plan arrives in a single response body.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Ollama returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncateBody(data)))
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	if out.Response == "" {
		return "", errors.New("ollama response contained no text")
	}

	c.logger.Debug("Ollama completion received",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(out.Response)),
		zap.Duration("duration", time.Since(start)))

	return out.Response, nil
}

// HealthCheck verifies the daemon is reachable and has the configured
// model pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create ollama health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode ollama tags: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == c.model || strings.HasPrefix(m.Name, c.model+":") {
			return nil
		}
	}
	return fmt.Errorf("model %q is not pulled on the ollama server", c.model)
}

func truncateBody(data []byte) []byte {
	if len(data) > maxErrorBody {
		return data[:maxErrorBody]
	}
	return data
}
