package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/outbound"
)

// ResolvedImage is the outcome of one meal image lookup. URL points at
// an external search result; Key references generated bytes held in
// the image cache. Both empty means no image was found, which is
// never an error.
type ResolvedImage struct {
	URL string
	Key string
}

// ImageResolver maps meal descriptions to images using the configured
// strategy. Every failure degrades to a no-result so a missing photo
// never blocks a plan.
type ImageResolver struct {
	strategy      string
	searcher      outbound.ImageSearcher
	generator     outbound.ImageGenerator
	cache         outbound.CacheRepository
	fallbackQuery string
	imageTTL      time.Duration
	logger        *zap.Logger
}

// NewImageResolver creates a resolver for the given strategy. The
// searcher, generator and cache may be nil when the strategy does not
// need them.
func NewImageResolver(
	strategy string,
	searcher outbound.ImageSearcher,
	generator outbound.ImageGenerator,
	cacheRepo outbound.CacheRepository,
	cfg config.ImageConfig,
	logger *zap.Logger,
) *ImageResolver {
	return &ImageResolver{
		strategy:      strategy,
		searcher:      searcher,
		generator:     generator,
		cache:         cacheRepo,
		fallbackQuery: cfg.FallbackSearchQuery,
		imageTTL:      cfg.CacheTTL,
		logger:        logger.Named("image-resolver"),
	}
}

// Resolve finds or renders an image for one meal description.
func (r *ImageResolver) Resolve(ctx context.Context, description string) ResolvedImage {
	switch r.strategy {
	case config.ImageStrategySearch:
		return r.resolveSearch(ctx, description)
	case config.ImageStrategyGenerate:
		return r.resolveGenerate(ctx, description)
	default:
		return ResolvedImage{}
	}
}

// resolveSearch walks the query chain and returns the first hit.
func (r *ImageResolver) resolveSearch(ctx context.Context, description string) ResolvedImage {
	if r.searcher == nil {
		return ResolvedImage{}
	}

	for _, query := range SearchQueryChain(description, r.fallbackQuery) {
		url, err := r.searcher.Search(ctx, query)
		if err != nil {
			r.logger.Debug("Image search attempt failed",
				zap.String("query", query), zap.Error(err))
			continue
		}
		if url != "" {
			return ResolvedImage{URL: url}
		}
	}

	return ResolvedImage{}
}

// resolveGenerate renders the image unless an identical prompt was
// already rendered, then hands the bytes to the cache for serving.
func (r *ImageResolver) resolveGenerate(ctx context.Context, description string) ResolvedImage {
	if r.generator == nil || r.cache == nil {
		return ResolvedImage{}
	}

	prompt := GenerationPrompt(description)
	key := imageKey(prompt)

	if exists, err := r.cache.Exists(ctx, key); err == nil && exists {
		return ResolvedImage{Key: key}
	}

	data, err := r.generator.Generate(ctx, prompt)
	if err != nil || len(data) == 0 {
		r.logger.Debug("Image generation failed",
			zap.String("description", description), zap.Error(err))
		return ResolvedImage{}
	}

	// The cache is the only store for generated bytes; without the
	// write there is nothing to serve.
	if err := r.cache.Set(ctx, key, data, r.imageTTL); err != nil {
		r.logger.Warn("Failed to store generated image",
			zap.String("key", key), zap.Error(err))
		return ResolvedImage{}
	}

	return ResolvedImage{Key: key}
}

// SearchQueryChain builds the fallback query sequence: the raw
// description, its simplified form, then the generic fallback term.
func SearchQueryChain(description, fallback string) []string {
	return []string{description, SimplifyQuery(description), fallback}
}

// SimplifyQuery reduces a meal description to its leading dish name:
// lowercased, cut at the first comma, cut before the text "with",
// trimmed.
func SimplifyQuery(description string) string {
	query := strings.ToLower(description)
	query = strings.SplitN(query, ",", 2)[0]
	query = strings.SplitN(query, "with", 2)[0]
	return strings.TrimSpace(query)
}

// GenerationPrompt wraps a meal description in the photographic
// prompt template used for image generation.
func GenerationPrompt(description string) string {
	return fmt.Sprintf(
		"A high-resolution food photo of %s, realistic and beautifully plated, served in a clean white ceramic dish. Top-down view, bright natural light, professional food photography style.",
		strings.ToLower(description),
	)
}

// imageKey derives the cache key for one generation prompt, so equal
// prompts within the TTL reuse the same stored image.
func imageKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "img:" + hex.EncodeToString(sum[:16])
}

// IsImageKey reports whether s has the exact shape imageKey mints.
// The image routes check it so no other entry in the shared cache,
// session state included, can be fetched by key.
func IsImageKey(s string) bool {
	const prefix = "img:"
	if len(s) != len(prefix)+32 || !strings.HasPrefix(s, prefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(prefix):])
	return err == nil
}
