package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"skillforge/internal/logging"
)

// =============================================================================
// CACHED ENGINE DECORATOR
// =============================================================================

// Cache persists embeddings keyed by (model, sha256 of text). A lookup miss
// is (nil, nil). Implemented by the SQLite store.
type Cache interface {
	GetEmbedding(model, textHash string) ([]float32, error)
	PutEmbedding(model, textHash string, vector []float32) error
}

// CachedEngine wraps an EmbeddingEngine with a persistent cache. Embedding
// is deterministic for a fixed model, so a cache hit returns exactly the
// vector the inner engine would produce; caching changes latency, never
// ranking. Cache failures degrade to the inner engine.
type CachedEngine struct {
	inner EmbeddingEngine
	cache Cache
}

// NewCachedEngine wraps engine with cache. A nil cache returns the engine
// unwrapped.
func NewCachedEngine(engine EmbeddingEngine, cache Cache) EmbeddingEngine {
	if cache == nil {
		return engine
	}
	return &CachedEngine{inner: engine, cache: cache}
}

// TextHash returns the cache key component for a text: hex sha256.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector when present, otherwise embeds through the
// inner engine and stores the result best-effort.
func (c *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := TextHash(text)

	vec, err := c.cache.GetEmbedding(c.inner.Name(), key)
	if err != nil {
		logging.EmbeddingWarn("Embedding cache lookup failed, falling through: %v", err)
	} else if vec != nil {
		logging.EmbeddingDebug("Embedding cache hit: model=%s key=%s", c.inner.Name(), key[:12])
		return vec, nil
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if putErr := c.cache.PutEmbedding(c.inner.Name(), key, vec); putErr != nil {
		logging.EmbeddingWarn("Embedding cache store failed: %v", putErr)
	}

	return vec, nil
}

// EmbedBatch embeds each text through Embed so every item gets cache
// treatment individually.
func (c *CachedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the inner engine's dimensionality.
func (c *CachedEngine) Dimensions() int {
	return c.inner.Dimensions()
}

// Name returns the inner engine's name; cache keys are scoped by it.
func (c *CachedEngine) Name() string {
	return c.inner.Name()
}

// HealthCheck delegates to the inner engine when it supports health checks.
func (c *CachedEngine) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
