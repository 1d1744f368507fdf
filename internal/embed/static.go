package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings with a hash-based bag-of-tokens
// scheme: no network, no model download, deterministic output. Semantic
// quality is reduced; it exists as an offline fallback and for tests.
type StaticEmbedder struct {
	mu        sync.RWMutex
	closed    bool
	normalize bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// Token and character-trigram contributions to the hashed vector.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

// NewStaticEmbedder creates a static embedder with L2 normalization.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{normalize: true}
}

// Embed generates a deterministic embedding for text. Empty input yields
// a zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrEmbedderClosed
	}

	vector := make([]float32, StaticDimensions)
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return vector, nil
	}

	tokens := staticTokenize(trimmed)
	for _, token := range tokens {
		vector[hashToIndex(token)] += staticTokenWeight
		for _, gram := range ngrams(token, staticNgramSize) {
			vector[hashToIndex(gram)] += staticNgramWeight
		}
	}

	if e.normalize {
		vector = normalizeVector(vector)
	}
	return vector, nil
}

// EmbedBatch encodes each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the fixed static dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName identifies the static scheme.
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// staticTokenize splits on any non-letter, non-digit rune. CJK characters
// are letters in Unicode, so Chinese text tokenizes per ideograph run.
func staticTokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func ngrams(token string, n int) []string {
	runes := []rune(token)
	if len(runes) <= n {
		return nil
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(StaticDimensions))
}
