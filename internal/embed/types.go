// Package embed provides the embedding-provider boundary: text to vector
// encoding via an external model server, a deterministic offline fallback,
// and a cached wrapper that avoids recomputing embeddings for repeated text.
package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrEmbedderClosed is returned by operations on a closed embedder.
var ErrEmbedderClosed = errors.New("embedder is closed")

const (
	// DefaultBatchSize for batch embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout for a single embedding request.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the dimension of the hash-based static embedder.
	StaticDimensions = 256
)

// Embedder encodes text into dense vectors. Implementations may fail at
// any call; callers in the retrieval pipeline treat a failed encode like a
// failed backend and degrade rather than abort.
type Embedder interface {
	// Embed encodes a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch encodes multiple texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// ModelName identifies the underlying model, for cache keying and
	// index compatibility checks.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors pass through.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
