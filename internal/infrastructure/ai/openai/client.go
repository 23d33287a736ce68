// Package openai integrates the OpenAI chat completions API for plan
// and grocery text generation. Implements the TextGenerator port.
package openai

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

// defaultBaseURL is the public OpenAI API endpoint. Compatible
// gateways can be configured through ai.base_url.
const defaultBaseURL = "https://api.openai.com/v1"

// Client calls the chat completions endpoint of an OpenAI model.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an OpenAI client from configuration. A nil
// httpClient gets a default one with the configured timeout, and an
// empty base URL falls back to the public endpoint.
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

	logger.Info("OpenAI client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model),
		zap.Int("timeout_seconds", cfg.TimeoutSeconds))

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger.Named("openai-client"),
	}
}

// OpenAI API structures
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends one prompt as a single user message and returns the
// first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read openai response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("OpenAI returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncateBody(data)))
		return "", fmt.Errorf("openai returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode openai response: %w", err)
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errors.New("openai response contained no choices")
	}

	text := out.Choices[0].Message.Content

	c.logger.Debug("OpenAI completion received",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(text)),
		zap.Duration("duration", time.Since(start)))

	return text, nil
}

// HealthCheck verifies the API key is accepted by listing models.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create openai health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func truncateBody(data []byte) []byte {
	if len(data) > maxErrorBody {
		return data[:maxErrorBody]
	}
	return data
}
