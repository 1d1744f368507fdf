package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragpipe/internal/rank"
)

type scriptedReranker struct {
	results   []Result
	err       error
	available bool
	calls     int
}

func (s *scriptedReranker) Rerank(_ context.Context, _ string, _ []string, _ int) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *scriptedReranker) Available(_ context.Context) bool { return s.available }
func (s *scriptedReranker) Close() error                     { return nil }

func makeCandidates(ids ...string) []*rank.Candidate {
	out := make([]*rank.Candidate, len(ids))
	for i, id := range ids {
		out[i] = &rank.Candidate{ID: id, Content: "content of " + id}
	}
	return out
}

func TestAdapterReordersAndSetsScores(t *testing.T) {
	mock := &scriptedReranker{
		available: true,
		results: []Result{
			{Index: 2, Score: 0.95},
			{Index: 0, Score: 0.40},
		},
	}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("a", "b", "c")
	out := adapter.Apply(context.Background(), "query", candidates, 2)

	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	require.NotNil(t, out[0].RerankScore)
	assert.InDelta(t, 0.95, *out[0].RerankScore, 1e-9)
	require.NotNil(t, out[1].RerankScore)
	assert.InDelta(t, 0.40, *out[1].RerankScore, 1e-9)
}

func TestAdapterFailureKeepsOrderAndScoresUnset(t *testing.T) {
	mock := &scriptedReranker{
		available: true,
		err:       errors.New("backend exploded"),
	}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("a", "b", "c")
	out := adapter.Apply(context.Background(), "query", candidates, 2)

	require.Len(t, out, 3)
	for i, c := range out {
		assert.Same(t, candidates[i], c)
		assert.Nil(t, c.RerankScore)
	}
}

func TestAdapterUnavailableSkipsCall(t *testing.T) {
	mock := &scriptedReranker{available: false}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("a", "b")
	out := adapter.Apply(context.Background(), "query", candidates, 2)

	assert.Equal(t, candidates, out)
	assert.Zero(t, mock.calls)
}

func TestAdapterNilRerankerPassthrough(t *testing.T) {
	adapter := NewAdapter(nil)
	candidates := makeCandidates("a", "b")
	out := adapter.Apply(context.Background(), "query", candidates, 0)
	assert.Equal(t, candidates, out)
}

func TestAdapterSingleCandidateSkipsCall(t *testing.T) {
	mock := &scriptedReranker{available: true, results: []Result{{Index: 0, Score: 1}}}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("only")
	out := adapter.Apply(context.Background(), "query", candidates, 5)

	assert.Equal(t, candidates, out)
	assert.Zero(t, mock.calls)
}

func TestAdapterInvalidIndicesSkipped(t *testing.T) {
	mock := &scriptedReranker{
		available: true,
		results: []Result{
			{Index: 7, Score: 0.9},
			{Index: 1, Score: 0.5},
			{Index: -1, Score: 0.3},
		},
	}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("a", "b")
	out := adapter.Apply(context.Background(), "query", candidates, 3)

	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestAdapterAllInvalidFallsBack(t *testing.T) {
	mock := &scriptedReranker{
		available: true,
		results:   []Result{{Index: 9, Score: 0.9}},
	}
	adapter := NewAdapter(mock)

	candidates := makeCandidates("a", "b")
	out := adapter.Apply(context.Background(), "query", candidates, 3)

	assert.Equal(t, candidates, out)
	for _, c := range out {
		assert.Nil(t, c.RerankScore)
	}
}
