package rank

// Normalize rescales candidate scores into [0,1] in place using min-max
// scaling: (score - min) / (max - min). When all scores are identical,
// including the single-element case, every score maps to 1.0 rather than
// dividing by zero. Normalization runs independently per backend list;
// fusion never compares raw scores across sources.
func Normalize(cands []*Candidate) {
	if len(cands) == 0 {
		return
	}

	min, max := cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}

	if max == min {
		for _, c := range cands {
			c.Score = 1.0
		}
		return
	}

	span := max - min
	for _, c := range cands {
		c.Score = (c.Score - min) / span
	}
}
