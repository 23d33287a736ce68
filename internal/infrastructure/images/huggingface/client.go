// Package huggingface renders meal images with a hosted
// text-to-image model. Implements the ImageGenerator port.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

// Client calls the Hugging Face inference endpoint for one model.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Hugging Face client from configuration. A nil
// httpClient gets a default one with the configured timeout.
func NewClient(cfg config.ImageConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger.Info("Hugging Face client initialized",
		zap.String("model", cfg.HuggingFaceModel),
		zap.Duration("timeout", cfg.Timeout))

	return &Client{
		baseURL:    cfg.HuggingFaceBaseURL,
		model:      cfg.HuggingFaceModel,
		apiKey:     cfg.HuggingFaceAPIKey,
		httpClient: httpClient,
		logger:     logger.Named("huggingface-client"),
	}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// Generate renders one image for the prompt and returns the raw
// encoded bytes as served by the inference API.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}

	// Model loading and rate limiting both surface as non-200 with a
	// JSON body instead of image bytes.
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Image generation returned non-OK status",
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("inference API returned status %d", resp.StatusCode)
	}

	c.logger.Debug("Image generated",
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))

	return data, nil
}

// HealthCheck verifies the inference endpoint accepts the key.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hugging face health check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("hugging face rejected the configured token with status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("hugging face health check failed with status %d", resp.StatusCode)
	}
	return nil
}
