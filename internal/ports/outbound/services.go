// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"
)

// TextGenerator produces a free-text completion for a prompt. Each call
// is independent and stateless; the planner issues two per plan plus
// one for the grocery list.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageSearcher resolves a query to zero or one image URL. An empty
// URL with a nil error means no result.
type ImageSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ImageGenerator renders a prompt into raw image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
