// Package contextwin assembles a token-bounded context window from ranked
// candidates. Chunks are admitted greedily in importance order; a chunk
// that does not fit whole may be truncated to the remaining budget, and
// packing stops at the first chunk that cannot be placed at all.
package contextwin

import (
	"sort"
	"unicode"

	"github.com/Aman-CERP/ragpipe/internal/rank"
)

// DefaultMinTruncateTokens is the smallest remaining budget worth filling
// with a truncated chunk. Below this a partial chunk carries too little
// signal to justify cutting it.
const DefaultMinTruncateTokens = 20

// TokenEstimator reports the approximate token count of a text.
type TokenEstimator func(text string) int

// cjkRanges covers scripts where one rune is roughly one token.
var cjkRanges = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
}

// EstimateTokens is the default estimator. CJK runes count as one token
// each; everything else averages about four characters per token.
func EstimateTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if unicode.In(r, cjkRanges...) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + (other+3)/4
}

// Chunk is one entry placed into the window.
type Chunk struct {
	CandidateID string
	Content     string
	Score       float64
	Tokens      int
	Truncated   bool
}

// Window is the packed result. TotalTokens never exceeds the packer's
// budget.
type Window struct {
	Chunks      []Chunk
	TotalTokens int
}

// Packer fits candidates into a fixed token budget.
type Packer struct {
	MaxTokens         int
	MinTruncateTokens int
	Estimate          TokenEstimator
}

// NewPacker returns a packer with the default estimator and truncation
// floor.
func NewPacker(maxTokens int) *Packer {
	return &Packer{
		MaxTokens:         maxTokens,
		MinTruncateTokens: DefaultMinTruncateTokens,
		Estimate:          EstimateTokens,
	}
}

// Pack selects candidates in descending importance order until the budget
// runs out. The first candidate that cannot be placed, whole or truncated,
// ends packing. A zero or negative budget yields an empty window.
func (p *Packer) Pack(candidates []*rank.Candidate) Window {
	window := Window{Chunks: []Chunk{}}
	if p.MaxTokens <= 0 || len(candidates) == 0 {
		return window
	}

	estimate := p.Estimate
	if estimate == nil {
		estimate = EstimateTokens
	}
	minTruncate := p.MinTruncateTokens
	if minTruncate <= 0 {
		minTruncate = DefaultMinTruncateTokens
	}

	ordered := make([]*rank.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Importance() > ordered[j].Importance()
	})

	remaining := p.MaxTokens
	for _, c := range ordered {
		tokens := estimate(c.Content)
		switch {
		case tokens <= remaining:
			window.Chunks = append(window.Chunks, Chunk{
				CandidateID: c.ID,
				Content:     c.Content,
				Score:       c.Importance(),
				Tokens:      tokens,
			})
			remaining -= tokens
		case remaining >= minTruncate:
			content, used := truncateToFit(c.Content, remaining, estimate)
			if used == 0 {
				window.TotalTokens = p.MaxTokens - remaining
				return window
			}
			window.Chunks = append(window.Chunks, Chunk{
				CandidateID: c.ID,
				Content:     content,
				Score:       c.Importance(),
				Tokens:      used,
				Truncated:   true,
			})
			remaining -= used
		default:
			// First chunk that cannot be placed ends the window.
			window.TotalTokens = p.MaxTokens - remaining
			return window
		}
		if remaining == 0 {
			break
		}
	}
	window.TotalTokens = p.MaxTokens - remaining
	return window
}

// truncateToFit finds the longest rune prefix of content whose estimated
// token count stays within budget.
func truncateToFit(content string, budget int, estimate TokenEstimator) (string, int) {
	runes := []rune(content)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if estimate(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return "", 0
	}
	prefix := string(runes[:lo])
	return prefix, estimate(prefix)
}
