// Package gemini integrates the Google Generative Language API for
// plan and grocery text generation. Implements the TextGenerator port.
package gemini

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

// maxErrorBody caps how much of an error response lands in logs.
const maxErrorBody = 512

// defaultBaseURL is the public Generative Language API endpoint.
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the generateContent endpoint of a Gemini model.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Gemini client from configuration. A nil
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

	logger.Info("Gemini client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model),
		zap.Int("timeout_seconds", cfg.TimeoutSeconds))

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger.Named("gemini-client"),
	}
}

// Gemini API structures
type generateContentRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content requestContent `json:"content"`
}

// Generate sends one prompt and returns the joined candidate text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []requestContent{{Parts: []contentPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header so request URLs and wrapped errors
	// never carry the credential.
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Gemini returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncateBody(data)))
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var out generateContentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	text := joinCandidateText(out)
	if text == "" {
		return "", errors.New("gemini response contained no candidate text")
	}

	c.logger.Debug("Gemini completion received",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(text)),
		zap.Duration("duration", time.Since(start)))

	return text, nil
}

// HealthCheck verifies the API is reachable with the configured key.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create gemini health check request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// joinCandidateText concatenates every text part of the first
// candidate, mirroring how SDK clients flatten a completion.
func joinCandidateText(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func truncateBody(data []byte) []byte {
	if len(data) > maxErrorBody {
		return data[:maxErrorBody]
	}
	return data
}
