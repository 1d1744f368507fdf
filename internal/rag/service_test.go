package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragpipe/internal/config"
	"github.com/Aman-CERP/ragpipe/internal/embed"
	"github.com/Aman-CERP/ragpipe/internal/retrieve"
	"github.com/Aman-CERP/ragpipe/internal/store"
)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Chunking.ChunkSize = 120
	cfg.Chunking.ChunkOverlap = 10
	cfg.Retrieval.SimilarityThreshold = 0
	cfg.Cache.ResultEntries = 8
	cfg.Cache.TTL = ""
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	vector, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(embed.StaticDimensions))
	require.NoError(t, err)
	keyword, err := store.NewBleveKeywordIndex("")
	require.NoError(t, err)
	chunks, err := store.NewSQLiteChunkStore(":memory:")
	require.NoError(t, err)

	svc, err := NewService(cfg, embedder, vector, keyword, chunks)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestIngestAndRetrieve(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "go-doc", "Goroutines",
		"Goroutines are lightweight threads managed by the Go runtime. They are cheap to create.",
		nil)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "py-doc", "Asyncio",
		"Asyncio provides cooperative multitasking with an event loop in Python programs.",
		nil)
	require.NoError(t, err)

	assembled, err := svc.Retrieve(ctx, "goroutines in the Go runtime", retrieve.ModeSimple, nil)
	require.NoError(t, err)
	require.False(t, assembled.Empty())
	assert.False(t, assembled.Degraded)
	assert.Contains(t, assembled.Chunks[0].Content, "Goroutines")
	assert.Equal(t, "Goroutines", assembled.Chunks[0].Title)
}

func TestIngestAssignsChunkIDs(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	pieces, err := svc.Ingest(ctx, "doc1", "Title", "A short document.", map[string]string{"lang": "en"})
	require.NoError(t, err)
	require.Len(t, pieces, 1)

	stored, err := svc.chunks.GetChunk(ctx, "doc1_0")
	require.NoError(t, err)
	assert.Equal(t, "doc1", stored.DocumentID)
	assert.Equal(t, "0", stored.Metadata["chunk_index"])
	assert.Equal(t, "1", stored.Metadata["total_chunks"])
	assert.Equal(t, "doc1", stored.Metadata["original_doc_id"])
	assert.Equal(t, "en", stored.Metadata["lang"])
}

func TestIngestGeneratesDocID(t *testing.T) {
	svc := newTestService(t, testConfig())

	pieces, err := svc.Ingest(context.Background(), "", "", "Anonymous document content.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, pieces)
	assert.NotEmpty(t, pieces[0].Metadata["original_doc_id"])
}

func TestIngestRejectsEmptyText(t *testing.T) {
	svc := newTestService(t, testConfig())

	_, err := svc.Ingest(context.Background(), "doc1", "Title", "   \n\t ", nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestReingestReplacesDocument(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	long := "First sentence about databases and storage engines for testing purposes here.\n\n" +
		"Second sentence about indexes and query planners that keeps going for a while longer.\n\n" +
		"Third sentence about transactions and write ahead logging in embedded stores."
	first, err := svc.Ingest(ctx, "doc1", "v1", long, nil)
	require.NoError(t, err)
	require.Greater(t, len(first), 1)

	second, err := svc.Ingest(ctx, "doc1", "v2", "A single replacement chunk.", nil)
	require.NoError(t, err)
	require.Len(t, second, 1)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Vectors)

	_, err = svc.chunks.GetChunk(ctx, "doc1_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRemovesDocument(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doc1", "Title", "Some content to delete later.", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "doc1"))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Vectors)
}

func TestStatsReportsConfiguration(t *testing.T) {
	svc := newTestService(t, testConfig())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-hash-v1", stats.EmbeddingModel)
	assert.Equal(t, "simple", stats.RetrievalMode)
}

func TestRetrieveUsesResultCache(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doc1", "Title", "Cached retrieval content about caching.", nil)
	require.NoError(t, err)

	first, err := svc.Retrieve(ctx, "caching", retrieve.ModeSimple, nil)
	require.NoError(t, err)
	second, err := svc.Retrieve(ctx, "caching", retrieve.ModeSimple, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// ingestion invalidates cached results
	_, err = svc.Ingest(ctx, "doc2", "Title", "More content about caching layers.", nil)
	require.NoError(t, err)
	third, err := svc.Retrieve(ctx, "caching", retrieve.ModeSimple, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestRetrieveAppliesMetadataFilter(t *testing.T) {
	svc := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "en-doc", "English", "Shared topic content in English.", map[string]string{"lang": "en"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "de-doc", "German", "Shared topic content in German.", map[string]string{"lang": "de"})
	require.NoError(t, err)

	assembled, err := svc.Retrieve(ctx, "shared topic content", retrieve.ModeSimple, map[string]string{"lang": "de"})
	require.NoError(t, err)
	require.False(t, assembled.Empty())
	for _, ch := range assembled.Chunks {
		assert.Contains(t, ch.Content, "German")
	}
}

func TestRetrieveModeFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.Mode = "fusion"
	svc := newTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doc1", "Title", "Fusion mode content for variants.", nil)
	require.NoError(t, err)

	assembled, err := svc.Retrieve(ctx, "fusion mode content", "", nil)
	require.NoError(t, err)
	assert.Equal(t, retrieve.ModeFusion, assembled.Mode)
}

func TestRetrieveRejectsInvalidConfiguredMode(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.Mode = "bogus"
	svc := newTestService(t, cfg)

	_, err := svc.Retrieve(context.Background(), "anything", "", nil)
	assert.Error(t, err)
}
