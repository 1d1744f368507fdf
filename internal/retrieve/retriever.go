package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragpipe/internal/contextwin"
	"github.com/Aman-CERP/ragpipe/internal/embed"
	"github.com/Aman-CERP/ragpipe/internal/rank"
	"github.com/Aman-CERP/ragpipe/internal/rerank"
	"github.com/Aman-CERP/ragpipe/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Pool widening factors relative to the configured similarity threshold.
// Reranking and multi-query fusion both work better over a looser pool:
// the refinement stage restores precision afterwards.
const (
	rerankThresholdFactor = 0.7
	fusionThresholdFactor = 0.8
)

// Retriever orchestrates retrieval across the vector index, keyword
// index, reranker and context packer.
type Retriever struct {
	embedder embed.Embedder
	vector   store.VectorIndex
	keyword  store.KeywordIndex
	chunks   store.ChunkStore
	fuser    *rank.Fuser
	packer   *contextwin.Packer
	reranker *rerank.Adapter
	expander Expander
	opts     Options
}

// RetrieverOption configures optional retriever stages.
type RetrieverOption func(*Retriever)

// WithReranker sets the reranker used by the rerank and hybrid modes.
func WithReranker(adapter *rerank.Adapter) RetrieverOption {
	return func(r *Retriever) {
		r.reranker = adapter
	}
}

// WithExpander sets the query expander used by the fusion mode. Without
// one, fusion falls back to the original query.
func WithExpander(e Expander) RetrieverOption {
	return func(r *Retriever) {
		r.expander = e
	}
}

// NewRetriever builds a retriever over the given backends.
func NewRetriever(
	embedder embed.Embedder,
	vector store.VectorIndex,
	keyword store.KeywordIndex,
	chunks store.ChunkStore,
	opts Options,
	retrieverOpts ...RetrieverOption,
) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword index is required", ErrNilDependency)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: chunk store is required", ErrNilDependency)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.RerankTopK <= 0 {
		opts.RerankTopK = DefaultOptions().RerankTopK
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = rank.DefaultRRFConstant
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = DefaultOptions().MaxContextTokens
	}
	if opts.Mode == "" {
		opts.Mode = ModeSimple
	}

	r := &Retriever{
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		chunks:   chunks,
		fuser:    rank.NewFuserWithK(opts.RRFConstant),
		packer:   contextwin.NewPacker(opts.MaxContextTokens),
		opts:     opts,
	}
	for _, opt := range retrieverOpts {
		opt(r)
	}
	return r, nil
}

// Retrieve runs the configured retrieval mode and assembles a context
// window. A non-empty filter keeps only chunks whose metadata carries
// every given key/value pair. Backend failures degrade the result
// instead of failing it: a single failed source is skipped, and when
// every source fails the returned context is empty with Degraded set.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter map[string]string) (*AssembledContext, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	out := &AssembledContext{Query: query, Mode: r.opts.Mode, Chunks: []ContextChunk{}}
	if query == "" {
		return out, nil
	}

	var pool []*rank.Candidate
	var degraded []string
	var err error

	switch r.opts.Mode {
	case ModeRerank:
		if r.reranker == nil {
			// no refinement stage, so no point widening the pool
			pool, degraded, err = r.vectorPool(ctx, query, filter, r.opts.TopK, r.opts.SimilarityThreshold)
		} else {
			pool, degraded, err = r.vectorPool(ctx, query, filter, r.opts.TopK*2, r.opts.SimilarityThreshold*rerankThresholdFactor)
			if err == nil {
				pool = r.reranker.Apply(ctx, query, pool, r.opts.RerankTopK)
			}
		}
		pool = truncateCandidates(pool, r.opts.RerankTopK)

	case ModeFusion:
		pool, degraded, err = r.multiQueryPool(ctx, query, filter)
		pool = truncateCandidates(pool, r.opts.TopK)

	case ModeHybrid:
		pool, degraded, err = r.hybridPool(ctx, query, filter)
		if err == nil && r.reranker != nil && len(pool) > r.opts.RerankTopK {
			pool = r.reranker.Apply(ctx, query, pool, r.opts.RerankTopK)
		}
		pool = truncateCandidates(pool, r.opts.RerankTopK)

	default:
		pool, degraded, err = r.vectorPool(ctx, query, filter, r.opts.TopK, r.opts.SimilarityThreshold)
	}
	if err != nil {
		return nil, err
	}

	out.DegradedSources = degraded
	out.Degraded = len(degraded) > 0

	window := r.packer.Pack(pool)
	byID := make(map[string]*rank.Candidate, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}
	for _, chunk := range window.Chunks {
		cc := ContextChunk{
			CandidateID: chunk.CandidateID,
			Content:     chunk.Content,
			Score:       chunk.Score,
			Tokens:      chunk.Tokens,
			Truncated:   chunk.Truncated,
		}
		if c, ok := byID[chunk.CandidateID]; ok {
			cc.Title = c.Title
		}
		out.Chunks = append(out.Chunks, cc)
	}
	out.TotalTokens = window.TotalTokens

	slog.Debug("retrieval complete",
		slog.String("mode", string(r.opts.Mode)),
		slog.Int("pool", len(pool)),
		slog.Int("chunks", len(out.Chunks)),
		slog.Int("tokens", out.TotalTokens),
		slog.Bool("degraded", out.Degraded),
		slog.Duration("elapsed", time.Since(start)))

	return out, nil
}

// vectorPool runs one vector index pass: hits below the raw similarity
// threshold are dropped, the survivors are enriched from the chunk store,
// metadata-filtered, and cut to limit. A vector failure yields an empty
// degraded pool, not an error.
func (r *Retriever) vectorPool(ctx context.Context, query string, filter map[string]string, limit int, threshold float64) ([]*rank.Candidate, []string, error) {
	hits, err := r.vectorSearch(ctx, query, limit*2)
	if err != nil {
		slog.Warn("vector search failed, returning empty degraded result",
			slog.String("error", err.Error()))
		return nil, []string{SourceVector}, nil
	}

	pool := vectorCandidates(dropBelowSimilarity(hits, threshold))

	// enrichment loads metadata, so it runs before the metadata filter
	// and the final cut
	pool, err = r.enrich(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	pool = filterByMetadata(pool, filter)
	pool = truncateCandidates(pool, limit)
	return pool, nil, nil
}

// hybridPool runs one concurrent pass over both indexes and fuses the
// min-max-normalized lists by VectorWeight/KeywordWeight. The similarity
// threshold applies to raw vector scores before fusion; BM25 scores have
// no comparable scale, so keyword hits are never thresholded.
func (r *Retriever) hybridPool(ctx context.Context, query string, filter map[string]string) ([]*rank.Candidate, []string, error) {
	vecHits, kwHits, degraded := r.fanOut(ctx, query, r.opts.TopK*2)
	if len(degraded) == 2 {
		return nil, degraded, nil
	}

	lists := make([]rank.List, 0, 2)
	if vecHits != nil {
		lists = append(lists, rank.List{
			Source:     SourceVector,
			Weight:     r.opts.VectorWeight,
			Candidates: vectorCandidates(dropBelowSimilarity(vecHits, r.opts.SimilarityThreshold)),
		})
	}
	if kwHits != nil {
		lists = append(lists, rank.List{
			Source:     SourceKeyword,
			Weight:     r.opts.KeywordWeight,
			Candidates: keywordCandidates(kwHits),
		})
	}

	pool := r.fuser.Fuse(lists, rank.PolicyWeighted)
	pool, err := r.enrich(ctx, pool)
	if err != nil {
		return nil, degraded, err
	}
	pool = filterByMetadata(pool, filter)
	return pool, degraded, nil
}

// multiQueryPool expands the query into variants, retrieves each variant
// against the vector index concurrently at a loosened threshold, and
// fuses the per-variant rankings with RRF.
func (r *Retriever) multiQueryPool(ctx context.Context, query string, filter map[string]string) ([]*rank.Candidate, []string, error) {
	variants := []string{query}
	if r.expander != nil {
		expanded, err := r.expander.Expand(ctx, query)
		if err != nil {
			slog.Warn("query expansion failed, using original query only",
				slog.String("error", err.Error()))
		} else if len(expanded) > 0 {
			variants = expanded
		}
	}

	hits := make([][]*store.VectorHit, len(variants))
	errs := make([]error, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			hits[i], errs[i] = r.vectorSearch(gctx, variant, r.opts.TopK*2)
			return nil
		})
	}
	_ = g.Wait()

	threshold := r.opts.SimilarityThreshold * fusionThresholdFactor
	lists := make([]rank.List, 0, len(variants))
	for i := range variants {
		if errs[i] != nil {
			slog.Warn("variant search failed, skipping it",
				slog.String("variant", variants[i]),
				slog.String("error", errs[i].Error()))
			continue
		}
		lists = append(lists, rank.List{
			Source:     fmt.Sprintf("variant_%d", i),
			Candidates: vectorCandidates(dropBelowSimilarity(hits[i], threshold)),
		})
	}
	if len(lists) == 0 {
		return nil, []string{SourceVector}, nil
	}
	var degraded []string
	if len(lists) < len(variants) {
		degraded = []string{SourceVector}
	}

	pool := r.fuser.Fuse(lists, rank.PolicyRRF)
	pool, err := r.enrich(ctx, pool)
	if err != nil {
		return nil, degraded, err
	}
	pool = filterByMetadata(pool, filter)
	return pool, degraded, nil
}

// fanOut queries both indexes concurrently. A failed source yields a nil
// hit slice and its name in the degraded list; the other source's results
// are still used.
func (r *Retriever) fanOut(ctx context.Context, query string, limit int) ([]*store.VectorHit, []*store.KeywordHit, []string) {
	g, gctx := errgroup.WithContext(ctx)

	var vecHits []*store.VectorHit
	var kwHits []*store.KeywordHit
	var vecErr, kwErr error

	g.Go(func() error {
		vecHits, vecErr = r.vectorSearch(gctx, query, limit)
		return nil
	})

	g.Go(func() error {
		var err error
		kwHits, err = r.keyword.Search(gctx, query, limit)
		if err != nil {
			kwErr = err
			kwHits = nil
		}
		return nil
	})

	_ = g.Wait()

	var degraded []string
	if vecErr != nil {
		slog.Warn("vector search failed, continuing without it",
			slog.String("error", vecErr.Error()))
		vecHits = nil
		degraded = append(degraded, SourceVector)
	}
	if kwErr != nil {
		slog.Warn("keyword search failed, continuing without it",
			slog.String("error", kwErr.Error()))
		kwHits = nil
		degraded = append(degraded, SourceKeyword)
	}
	return vecHits, kwHits, degraded
}

// vectorSearch embeds the query and searches the vector index.
func (r *Retriever) vectorSearch(ctx context.Context, query string, limit int) ([]*store.VectorHit, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.vector.Search(ctx, embedding, limit)
}

// enrich fills candidate content, title and metadata from the chunk
// store in one batch. Candidates whose chunk no longer exists are
// dropped; they are orphans left behind by best-effort index deletes.
func (r *Retriever) enrich(ctx context.Context, pool []*rank.Candidate) ([]*rank.Candidate, error) {
	if len(pool) == 0 {
		return pool, nil
	}

	ids := make([]string, len(pool))
	for i, c := range pool {
		ids[i] = c.ID
	}
	chunks, err := r.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich candidates: %w", err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	out := make([]*rank.Candidate, 0, len(pool))
	for _, c := range pool {
		chunk, ok := byID[c.ID]
		if !ok {
			slog.Debug("dropping orphan candidate", slog.String("id", c.ID))
			continue
		}
		c.Content = chunk.Content
		if c.Title == "" {
			c.Title = chunk.Title
		}
		if c.Metadata == nil {
			c.Metadata = chunk.Metadata
		}
		out = append(out, c)
	}
	return out, nil
}

// vectorCandidates converts hits to candidates. FusedScore is seeded with
// the raw similarity so vector-only pools rank correctly without a fusion
// pass; the fuser resets it when the pool is fused.
func vectorCandidates(hits []*store.VectorHit) []*rank.Candidate {
	out := make([]*rank.Candidate, len(hits))
	for i, h := range hits {
		out[i] = &rank.Candidate{ID: h.ID, Score: float64(h.Score), FusedScore: float64(h.Score)}
	}
	return out
}

func keywordCandidates(hits []*store.KeywordHit) []*rank.Candidate {
	out := make([]*rank.Candidate, len(hits))
	for i, h := range hits {
		out[i] = &rank.Candidate{ID: h.DocID, Score: h.Score}
	}
	return out
}

// dropBelowSimilarity removes hits whose raw similarity is below the
// threshold. Fused scores are never thresholded: normalization maps the
// top candidate to 1.0 regardless of relevance, and weight scaling would
// let the threshold wipe a surviving source when the other one is down.
func dropBelowSimilarity(hits []*store.VectorHit, threshold float64) []*store.VectorHit {
	if threshold <= 0 {
		return hits
	}
	out := hits[:0]
	for _, h := range hits {
		if float64(h.Score) >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// filterByMetadata keeps candidates whose metadata carries every filter
// key with the exact value. Runs after enrichment.
func filterByMetadata(pool []*rank.Candidate, filter map[string]string) []*rank.Candidate {
	if len(filter) == 0 {
		return pool
	}
	out := pool[:0]
	for _, c := range pool {
		if metadataMatches(c.Metadata, filter) {
			out = append(out, c)
		}
	}
	return out
}

func metadataMatches(meta, filter map[string]string) bool {
	for k, want := range filter {
		if got, ok := meta[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func truncateCandidates(pool []*rank.Candidate, limit int) []*rank.Candidate {
	if limit > 0 && len(pool) > limit {
		return pool[:limit]
	}
	return pool
}
