// Package rerank refines fused retrieval results with a cross-encoder.
// Cross-encoders jointly encode (query, document) pairs for more accurate
// relevance scoring than bi-encoders, at higher computational cost.
// Reranking is an optimization, never a correctness dependency: any
// failure falls back to the pre-rerank order.
package rerank

import "context"

// Result is a single reranked document.
type Result struct {
	// Index is the original position in the input documents slice.
	Index int

	// Score is the cross-encoder relevance score.
	Score float64
}

// Reranker scores (query, document) pairs in batch.
type Reranker interface {
	// Rerank scores documents against the query and returns results
	// sorted by score descending. topK of 0 returns all.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)

	// Available reports whether the reranking service can be reached.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOp returns documents in their original order with gently decreasing
// scores. Used when reranking is disabled.
type NoOp struct{}

var _ Reranker = (*NoOp)(nil)

// Rerank preserves the input order.
func (NoOp) Rerank(_ context.Context, _ string, documents []string, topK int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i := range documents {
		results[i] = Result{Index: i, Score: 1.0 - float64(i)*0.01}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always reports true.
func (NoOp) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (NoOp) Close() error { return nil }
