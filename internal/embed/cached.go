package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/Aman-CERP/ragpipe/internal/cache"
)

// CachedEmbedder wraps an Embedder with a bounded cache so repeated
// queries skip the model round trip. The cache evicts its oldest half in
// one sweep when full (see internal/cache); embeddings are deterministic
// per (text, normalize, model), so redundant recomputation under
// concurrency is harmless.
type CachedEmbedder struct {
	inner     Embedder
	cache     *cache.Cache[[]float32]
	normalize bool
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of at most cacheSize entries.
// normalize must reflect the inner embedder's normalization setting: it is
// part of the cache key, so toggling it never serves stale vectors.
func NewCachedEmbedder(inner Embedder, cacheSize int, normalize bool) *CachedEmbedder {
	return &CachedEmbedder{
		inner:     inner,
		cache:     cache.New[[]float32](cacheSize),
		normalize: normalize,
	}
}

// cacheKey hashes (text, normalization flag, model identifier).
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(c.normalize)))
	h.Write([]byte{0})
	h.Write([]byte(c.inner.ModelName()))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the cached embedding when available, computing and caching
// it otherwise.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.cache.GetOrCompute(c.cacheKey(text), func() ([]float32, error) {
		return c.inner.Embed(ctx, text)
	})
}

// EmbedBatch checks the cache per text and batch-embeds only the misses,
// preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIndices := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			missIndices = append(missIndices, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIndices {
		results[idx] = computed[j]
		c.cache.Add(c.cacheKey(texts[idx]), computed[j])
	}
	return results, nil
}

// Dimensions passes through to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }
