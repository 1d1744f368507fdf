package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cands(scores ...float64) []*Candidate {
	out := make([]*Candidate, len(scores))
	for i, s := range scores {
		out[i] = &Candidate{ID: string(rune('A' + i)), Score: s}
	}
	return out
}

func TestNormalize_MinMaxScaling(t *testing.T) {
	list := cands(2.0, 6.0, 10.0)
	Normalize(list)

	assert.InDelta(t, 0.0, list[0].Score, 1e-9)
	assert.InDelta(t, 0.5, list[1].Score, 1e-9)
	assert.InDelta(t, 1.0, list[2].Score, 1e-9)
}

func TestNormalize_IdenticalScoresMapToOne(t *testing.T) {
	list := cands(3.7, 3.7, 3.7)
	Normalize(list)

	for _, c := range list {
		assert.Equal(t, 1.0, c.Score)
	}
}

func TestNormalize_SingleElementMapsToOne(t *testing.T) {
	list := cands(42.0)
	Normalize(list)
	assert.Equal(t, 1.0, list[0].Score)
}

func TestNormalize_Empty(t *testing.T) {
	require.NotPanics(t, func() { Normalize(nil) })
	require.NotPanics(t, func() { Normalize([]*Candidate{}) })
}

func TestNormalize_BoundsAlwaysHeld(t *testing.T) {
	list := cands(-5.0, 0.0, 3.3, 17.2, -1.1)
	Normalize(list)
	for _, c := range list {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}
