// Package retrieve orchestrates retrieval: it fans out to the vector and
// keyword indexes, fuses and optionally reranks the pooled candidates,
// and assembles a token-bounded context window.
package retrieve

import (
	"fmt"
	"strings"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeSimple is a single vector index pass with threshold
	// filtering. No fusion, no rerank.
	ModeSimple Mode = "simple"

	// ModeRerank widens the vector pass and refines it with the
	// cross-encoder reranker.
	ModeRerank Mode = "rerank"

	// ModeFusion expands the query into variants, retrieves each
	// against the vector index, and fuses the rankings with RRF.
	ModeFusion Mode = "fusion"

	// ModeHybrid runs the vector and keyword indexes concurrently and
	// weight-fuses the normalized lists, with an optional rerank.
	ModeHybrid Mode = "hybrid"
)

// ParseMode parses a mode name, case insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSimple:
		return ModeSimple, nil
	case ModeRerank:
		return ModeRerank, nil
	case ModeFusion:
		return ModeFusion, nil
	case ModeHybrid:
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q", s)
	}
}

// Source names for degradation reporting and fusion provenance.
const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
)

// Options configures a Retriever.
type Options struct {
	Mode                Mode
	TopK                int
	SimilarityThreshold float64
	RerankTopK          int
	VectorWeight        float64
	KeywordWeight       float64
	RRFConstant         int
	MaxContextTokens    int
}

// DefaultOptions returns the default retrieval configuration.
func DefaultOptions() Options {
	return Options{
		Mode:                ModeSimple,
		TopK:                5,
		SimilarityThreshold: 0.5,
		RerankTopK:          3,
		VectorWeight:        0.7,
		KeywordWeight:       0.3,
		RRFConstant:         60,
		MaxContextTokens:    2048,
	}
}

// ContextChunk is one chunk placed into the assembled context.
type ContextChunk struct {
	CandidateID string  `json:"candidate_id"`
	Title       string  `json:"title,omitempty"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	Tokens      int     `json:"tokens"`
	Truncated   bool    `json:"truncated,omitempty"`
}

// AssembledContext is the retrieval output handed to generation.
type AssembledContext struct {
	Query           string
	Mode            Mode
	Chunks          []ContextChunk
	TotalTokens     int
	Degraded        bool
	DegradedSources []string
}

// Empty reports whether no chunks were assembled.
func (a *AssembledContext) Empty() bool {
	return len(a.Chunks) == 0
}
