package rerank

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/ragpipe/internal/rank"
)

// Adapter applies a Reranker to pipeline candidates. It never propagates
// a reranking failure: when the external call fails for any reason, the
// condition is logged and the input candidates come back unchanged with
// RerankScore unset, preserving the pre-rerank order.
type Adapter struct {
	reranker Reranker
}

// NewAdapter wraps the given reranker. A nil reranker produces an adapter
// that always passes candidates through.
func NewAdapter(r Reranker) *Adapter {
	return &Adapter{reranker: r}
}

// Apply reranks candidates against the query, reordering them and setting
// RerankScore. topK of 0 keeps all candidates. On any failure the input
// slice is returned as is.
func (a *Adapter) Apply(ctx context.Context, query string, candidates []*rank.Candidate, topK int) []*rank.Candidate {
	if a.reranker == nil || len(candidates) < 2 {
		return candidates
	}

	if !a.reranker.Available(ctx) {
		slog.Debug("reranker unavailable, keeping pre-rerank order",
			slog.Int("candidates", len(candidates)))
		return candidates
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	results, err := a.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		slog.Warn("reranking failed, keeping pre-rerank order",
			slog.String("error", err.Error()),
			slog.Int("candidates", len(candidates)))
		return candidates
	}

	reranked := make([]*rank.Candidate, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			slog.Warn("reranker returned invalid index, skipping",
				slog.Int("index", r.Index),
				slog.Int("candidates", len(candidates)))
			continue
		}
		c := candidates[r.Index]
		score := r.Score
		c.RerankScore = &score
		reranked = append(reranked, c)
	}

	if len(reranked) == 0 {
		return candidates
	}
	return reranked
}

// Close releases the underlying reranker client, if any.
func (a *Adapter) Close() error {
	if a.reranker == nil {
		return nil
	}
	return a.reranker.Close()
}
