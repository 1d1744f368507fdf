// Package rank normalizes heterogeneous relevance scores and fuses ranked
// candidate lists from multiple retrieval backends. Vector similarity, BM25
// score and rerank score live on different scales, so raw scores are never
// compared across sources: min-max normalization runs per list before any
// cross-source arithmetic, and Reciprocal Rank Fusion is purely rank-based.
package rank

// Candidate is a single retrieval result flowing through the pipeline.
// Candidates are created fresh per query and mutated in place by the
// normalization, fusion, rerank and packing stages in strict pipeline
// order; they are never written concurrently.
type Candidate struct {
	// ID identifies the underlying document chunk. Callers must use the
	// same ID for the same logical document in every backend.
	ID string

	// Content is the chunk text.
	Content string

	// Title is a short human-readable framing of the chunk, when the
	// producing backend has one.
	Title string

	// Metadata carries backend-supplied document metadata.
	Metadata map[string]string

	// Score is the score assigned by the producing backend. Normalize
	// rescales it into [0,1] in place.
	Score float64

	// SourceScores records the per-source score of this candidate under
	// each backend name, for provenance.
	SourceScores map[string]float64

	// FusedScore is the cross-source combined score set by Fuse.
	FusedScore float64

	// RerankScore is the cross-encoder score, set only when reranking
	// succeeded. Nil means the candidate was never (successfully) reranked.
	RerankScore *float64

	// firstSeen orders tie-broken candidates by first appearance in the
	// fuser's canonical list visiting order.
	firstSeen int
}

// Importance is the score used for downstream ordering decisions:
// the rerank score when present, the fused score otherwise.
func (c *Candidate) Importance() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.FusedScore
}

// List is one backend's ranked result list entering fusion.
type List struct {
	// Source names the backend that produced the list ("vector",
	// "keyword", a query variant, ...). Used for score provenance.
	Source string

	// Weight is this list's weight under the Weighted policy. Ignored by
	// the RRF and Max policies.
	Weight float64

	// Candidates in backend rank order.
	Candidates []*Candidate
}
