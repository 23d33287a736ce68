// Package pexels finds stock photos for meal descriptions through the
// Pexels search API. Implements the ImageSearcher port.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

// Client queries the Pexels photo search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Pexels client from configuration. A nil
// httpClient gets a default one with the configured timeout.
func NewClient(cfg config.ImageConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    cfg.PexelsBaseURL,
		apiKey:     cfg.PexelsAPIKey,
		httpClient: httpClient,
		logger:     logger.Named("pexels-client"),
	}
}

// Pexels API structures
type searchResponse struct {
	Photos []photo `json:"photos"`
}

type photo struct {
	Src photoSource `json:"src"`
}

type photoSource struct {
	Medium string `json:"medium"`
}

// Search looks up one photo for the query and returns its medium-size
// URL. An empty string with a nil error means no photo matched.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create pexels request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read pexels response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Pexels search returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("query", query))
		return "", fmt.Errorf("pexels returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode pexels response: %w", err)
	}

	if len(out.Photos) == 0 {
		c.logger.Debug("Pexels search found no photos", zap.String("query", query))
		return "", nil
	}
	return out.Photos[0].Src.Medium, nil
}

// HealthCheck verifies the API accepts the configured key.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Search(ctx, "food")
	if err != nil {
		return fmt.Errorf("pexels health check failed: %w", err)
	}
	return nil
}
