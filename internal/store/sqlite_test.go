package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunkStore(t *testing.T) *SQLiteChunkStore {
	t.Helper()
	s, err := NewSQLiteChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestChunkStoreDocumentRoundTrip(t *testing.T) {
	s := newTestChunkStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc1", Title: "Guide", ChunkCount: 2}))

	doc, err := s.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Guide", doc.Title)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunkStoreSaveAndGetChunks(t *testing.T) {
	s := newTestChunkStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc1"}))
	require.NoError(t, s.SaveChunks(ctx, []*Chunk{
		{ID: "doc1_0", DocumentID: "doc1", Content: "first", ChunkIndex: 0,
			Metadata: map[string]string{"chunk_index": "0"}},
		{ID: "doc1_1", DocumentID: "doc1", Content: "second", ChunkIndex: 1, StartOffset: 5, EndOffset: 11},
	}))

	// order of requested ids is preserved, missing ids skipped
	chunks, err := s.GetChunks(ctx, []string{"doc1_1", "missing", "doc1_0"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "doc1_1", chunks[0].ID)
	assert.Equal(t, "doc1_0", chunks[1].ID)
	assert.Equal(t, 5, chunks[0].StartOffset)
	assert.Equal(t, map[string]string{"chunk_index": "0"}, chunks[1].Metadata)

	c, err := s.GetChunk(ctx, "doc1_0")
	require.NoError(t, err)
	assert.Equal(t, "first", c.Content)

	_, err = s.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunkStoreDeleteCascades(t *testing.T) {
	s := newTestChunkStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc1"}))
	require.NoError(t, s.SaveChunks(ctx, []*Chunk{
		{ID: "doc1_0", DocumentID: "doc1", Content: "a", ChunkIndex: 0},
		{ID: "doc1_1", DocumentID: "doc1", Content: "b", ChunkIndex: 1},
	}))

	require.NoError(t, s.DeleteDocument(ctx, "doc1"))

	ids, err := s.ChunkIDsByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Zero(t, stats.ChunkCount)
}

func TestChunkStoreChunkIDsOrdered(t *testing.T) {
	s := newTestChunkStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc1"}))
	require.NoError(t, s.SaveChunks(ctx, []*Chunk{
		{ID: "doc1_2", DocumentID: "doc1", Content: "c", ChunkIndex: 2},
		{ID: "doc1_0", DocumentID: "doc1", Content: "a", ChunkIndex: 0},
		{ID: "doc1_1", DocumentID: "doc1", Content: "b", ChunkIndex: 1},
	}))

	ids, err := s.ChunkIDsByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1_0", "doc1_1", "doc1_2"}, ids)
}

func TestChunkStoreStats(t *testing.T) {
	s := newTestChunkStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc1"}))
	require.NoError(t, s.SaveDocument(ctx, &Document{ID: "doc2"}))
	require.NoError(t, s.SaveChunks(ctx, []*Chunk{
		{ID: "doc1_0", DocumentID: "doc1", Content: "a", ChunkIndex: 0},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 1, stats.ChunkCount)
}
