package rank

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// Policy selects how per-source scores are combined.
type Policy string

const (
	// PolicyWeighted normalizes each list, then sums weight_i *
	// normalized_score_i per candidate, with 0 for absent sources.
	PolicyWeighted Policy = "weighted"

	// PolicyRRF sums 1/(k + rank_i) over the lists a candidate appears
	// in. Rank-based, so insensitive to score-scale mismatches; the
	// default for fusing heterogeneous sources.
	PolicyRRF Policy = "rrf"

	// PolicyMax takes the maximum normalized per-source score, along
	// with the title and metadata of the source that produced it.
	PolicyMax Policy = "max"
)

// Fuser combines ranked candidate lists into a single deduplicated ranking.
//
// All policies are deterministic for identical input order: the final
// ordering is a stable sort by (fused score desc, first-seen index asc),
// with first-seen assigned while visiting lists in the policy's canonical
// order. Ordering never depends on map iteration.
type Fuser struct {
	K int // RRF smoothing constant
}

// NewFuser creates a fuser with the default RRF constant.
func NewFuser() *Fuser {
	return &Fuser{K: DefaultRRFConstant}
}

// NewFuserWithK creates a fuser with a custom RRF constant.
// Non-positive k falls back to the default.
func NewFuserWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{K: k}
}

// Fuse combines the lists under the given policy. The result is
// deduplicated by candidate ID; the first occurrence wins for non-score
// fields (except under PolicyMax, which keeps the framing of the
// max-scoring source). Candidates absent from every list never appear.
func (f *Fuser) Fuse(lists []List, policy Policy) []*Candidate {
	switch policy {
	case PolicyWeighted:
		return f.fuseWeighted(lists)
	case PolicyMax:
		return f.fuseMax(lists)
	default:
		return f.fuseRRF(lists)
	}
}

// accumulator tracks deduplicated candidates in first-seen order.
type accumulator struct {
	byID  map[string]*Candidate
	order []*Candidate
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{byID: make(map[string]*Candidate, capacity)}
}

// get returns the fused candidate for in.ID, adopting in as the canonical
// candidate on first sight. Reports whether in was first.
func (a *accumulator) get(in *Candidate) (*Candidate, bool) {
	if c, ok := a.byID[in.ID]; ok {
		return c, false
	}
	in.firstSeen = len(a.order)
	in.FusedScore = 0
	if in.SourceScores == nil {
		in.SourceScores = make(map[string]float64, 2)
	}
	a.byID[in.ID] = in
	a.order = append(a.order, in)
	return in, true
}

// sorted returns the accumulated candidates ordered by
// (fused score desc, first-seen asc).
func (a *accumulator) sorted() []*Candidate {
	results := a.order
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].firstSeen < results[j].firstSeen
	})
	if results == nil {
		return []*Candidate{}
	}
	return results
}

// fuseWeighted implements PolicyWeighted. Lists are visited in descending
// weight order so that ties break toward the highest-weighted source.
// When every weight is zero the fusion falls back to unweighted behavior
// (all weights 1) rather than producing all-zero scores.
func (f *Fuser) fuseWeighted(lists []List) []*Candidate {
	ordered := make([]List, len(lists))
	copy(ordered, lists)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Weight > ordered[j].Weight
	})

	allZero := true
	for _, l := range ordered {
		if l.Weight != 0 {
			allZero = false
			break
		}
	}

	acc := newAccumulator(totalCandidates(lists))
	for _, l := range ordered {
		Normalize(l.Candidates)
		weight := l.Weight
		if allZero {
			weight = 1.0
		}
		for _, in := range l.Candidates {
			c, _ := acc.get(in)
			c.FusedScore += weight * in.Score
			c.SourceScores[l.Source] = in.Score
		}
	}
	return acc.sorted()
}

// fuseRRF implements PolicyRRF. Each list is ranked 1..N by descending raw
// score (stable, preserving backend order on ties); a candidate's fused
// score is the sum of 1/(k + rank) over the lists it appears in. Absent
// lists simply omit their term.
func (f *Fuser) fuseRRF(lists []List) []*Candidate {
	acc := newAccumulator(totalCandidates(lists))
	for _, l := range lists {
		ranked := make([]*Candidate, len(l.Candidates))
		copy(ranked, l.Candidates)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})

		for rank, in := range ranked {
			c, _ := acc.get(in)
			c.FusedScore += 1.0 / float64(f.K+rank+1)
			c.SourceScores[l.Source] = in.Score
		}
	}
	return acc.sorted()
}

// fuseMax implements PolicyMax: the fused score is the maximum normalized
// per-source score, and the title/metadata come from whichever source
// produced that maximum, to keep the most relevant framing.
func (f *Fuser) fuseMax(lists []List) []*Candidate {
	acc := newAccumulator(totalCandidates(lists))
	for _, l := range lists {
		Normalize(l.Candidates)
		for _, in := range l.Candidates {
			c, isFirst := acc.get(in)
			c.SourceScores[l.Source] = in.Score
			if isFirst {
				c.FusedScore = in.Score
				continue
			}
			if in.Score > c.FusedScore {
				c.FusedScore = in.Score
				c.Title = in.Title
				c.Metadata = in.Metadata
				c.Content = in.Content
			}
		}
	}
	return acc.sorted()
}

func totalCandidates(lists []List) int {
	n := 0
	for _, l := range lists {
		n += len(l.Candidates)
	}
	return n
}
