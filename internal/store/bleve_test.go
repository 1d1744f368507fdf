package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeywordIndex(t *testing.T) *BleveKeywordIndex {
	t.Helper()
	idx, err := NewBleveKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestKeywordIndexAndSearch(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	err := idx.Index(ctx, []*KeywordDoc{
		{ID: "doc1", Content: "vector databases store embeddings for similarity search"},
		{ID: "doc2", Content: "keyword search ranks documents by term frequency"},
		{ID: "doc3", Content: "the weather is sunny today"},
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "similarity search", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc1", hits[0].DocID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.NotEmpty(t, hits[0].MatchedTerms)
}

func TestKeywordSearchEmptyQuery(t *testing.T) {
	idx := newTestKeywordIndex(t)

	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordSearchCJK(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	err := idx.Index(ctx, []*KeywordDoc{
		{ID: "zh1", Content: "机器学习是人工智能的一个分支"},
		{ID: "zh2", Content: "今天的天气非常好"},
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "机器学习", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "zh1", hits[0].DocID)
}

func TestKeywordDelete(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDoc{
		{ID: "doc1", Content: "alpha beta gamma"},
		{ID: "doc2", Content: "alpha delta"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"doc1"}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "doc1", h.DocID)
	}
}

func TestKeywordIndexReplacesExisting(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*KeywordDoc{{ID: "doc1", Content: "original topic"}}))
	require.NoError(t, idx.Index(ctx, []*KeywordDoc{{ID: "doc1", Content: "replacement subject"}}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := idx.Search(ctx, "original", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "replacement", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1", hits[0].DocID)
}

func TestKeywordClosedRejectsOperations(t *testing.T) {
	idx := newTestKeywordIndex(t)
	require.NoError(t, idx.Close())

	err := idx.Index(context.Background(), []*KeywordDoc{{ID: "x", Content: "y"}})
	assert.Error(t, err)

	_, err = idx.Search(context.Background(), "y", 1)
	assert.Error(t, err)
}
