// Package rag composes the chunker, embedder, indexes and retriever into
// an ingestion and question answering service.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Aman-CERP/ragpipe/internal/chunk"
	"github.com/Aman-CERP/ragpipe/internal/config"
	"github.com/Aman-CERP/ragpipe/internal/embed"
	"github.com/Aman-CERP/ragpipe/internal/rerank"
	"github.com/Aman-CERP/ragpipe/internal/retrieve"
	"github.com/Aman-CERP/ragpipe/internal/store"
)

// ErrEmptyDocument is returned when Ingest is called with no text.
var ErrEmptyDocument = errors.New("document has no content")

// Data file names under the configured data directory.
const (
	chunkDBFile     = "chunks.db"
	keywordIndexDir = "keyword.bleve"
	vectorIndexFile = "vectors.hnsw"
	ingestLockFile  = ".ingest.lock"
)

// Service owns the full ingestion and retrieval pipeline.
type Service struct {
	cfg      *config.Config
	embedder embed.Embedder
	vector   store.VectorIndex
	keyword  store.KeywordIndex
	chunks   store.ChunkStore
	splitter *chunk.Splitter
	reranker *rerank.Adapter
	expander retrieve.Expander

	// results caches assembled contexts keyed by mode and query. Nil
	// when caching is disabled.
	results *expirable.LRU[string, *retrieve.AssembledContext]

	// lock serializes ingestion across processes sharing a data
	// directory. Nil for in-memory services.
	lock *flock.Flock

	// vectorPath is where the vector index is persisted after each
	// ingest. Empty for in-memory services.
	vectorPath string
}

// ServiceOption configures optional service dependencies.
type ServiceOption func(*Service)

// WithReranker enables the cross-encoder reranking stage.
func WithReranker(adapter *rerank.Adapter) ServiceOption {
	return func(s *Service) {
		s.reranker = adapter
	}
}

// WithExpander sets the query expander for fusion and hybrid modes.
func WithExpander(e retrieve.Expander) ServiceOption {
	return func(s *Service) {
		s.expander = e
	}
}

// NewService builds a service over the given backends. The config must
// already be validated. Use Open to build a file-backed service from
// configuration alone.
func NewService(
	cfg *config.Config,
	embedder embed.Embedder,
	vector store.VectorIndex,
	keyword store.KeywordIndex,
	chunks store.ChunkStore,
	opts ...ServiceOption,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if embedder == nil || vector == nil || keyword == nil || chunks == nil {
		return nil, retrieve.ErrNilDependency
	}
	splitter, err := chunk.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		chunks:   chunks,
		splitter: splitter,
		expander: retrieve.NewTemplateExpander(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if n := cfg.Cache.ResultEntries; n > 0 {
		ttl := time.Duration(0)
		if cfg.Cache.TTL != "" && cfg.Cache.TTL != "0" {
			ttl, err = time.ParseDuration(cfg.Cache.TTL)
			if err != nil {
				return nil, fmt.Errorf("cache ttl: %w", err)
			}
		}
		s.results = expirable.NewLRU[string, *retrieve.AssembledContext](n, nil, ttl)
	}
	return s, nil
}

// Open builds a file-backed service under cfg.Paths.DataDir, creating
// the directory and index files as needed. The reranker stage is wired
// when enabled in configuration.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if embedder.Dimensions() == 0 {
		// force lazy dimension detection before sizing the vector index
		if _, err := embedder.Embed(ctx, "ping"); err != nil {
			embedder.Close()
			return nil, fmt.Errorf("detect embedding dimensions: %w", err)
		}
	}

	chunks, err := store.NewSQLiteChunkStore(filepath.Join(dataDir, chunkDBFile))
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("chunk store: %w", err)
	}
	keyword, err := store.NewBleveKeywordIndex(filepath.Join(dataDir, keywordIndexDir))
	if err != nil {
		embedder.Close()
		chunks.Close()
		return nil, fmt.Errorf("keyword index: %w", err)
	}

	vector, err := openVectorIndex(dataDir, embedder.Dimensions())
	if err != nil {
		embedder.Close()
		chunks.Close()
		keyword.Close()
		return nil, err
	}

	opts := make([]ServiceOption, 0, 1)
	if cfg.Reranker.Enabled {
		timeout, _ := time.ParseDuration(cfg.Reranker.Timeout)
		client := rerank.NewHTTPReranker(rerank.HTTPConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  timeout,
		})
		opts = append(opts, WithReranker(rerank.NewAdapter(client)))
	}

	s, err := NewService(cfg, embedder, vector, keyword, chunks, opts...)
	if err != nil {
		embedder.Close()
		chunks.Close()
		keyword.Close()
		vector.Close()
		return nil, err
	}
	s.vectorPath = filepath.Join(dataDir, vectorIndexFile)
	s.lock = flock.New(filepath.Join(dataDir, ingestLockFile))
	return s, nil
}

// newEmbedder builds the configured embedding provider. An empty
// provider auto-detects: Ollama when reachable, static hashing
// otherwise.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	ollama := func() embed.Embedder {
		return embed.NewCachedEmbedder(embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Normalize:  true,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.Embeddings.Timeout,
		}), cfg.Embeddings.CacheEntries, true)
	}
	static := func() embed.Embedder {
		return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Embeddings.CacheEntries, true)
	}

	switch cfg.Embeddings.Provider {
	case "ollama":
		return ollama(), nil
	case "static":
		return static(), nil
	case "":
		e := ollama()
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if _, err := e.Embed(probeCtx, "ping"); err != nil {
			slog.Info("ollama unreachable, using static embeddings", "error", err)
			e.Close()
			return static(), nil
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}

func openVectorIndex(dataDir string, dimensions int) (store.VectorIndex, error) {
	idx, err := store.NewHNSWIndex(store.DefaultVectorIndexConfig(dimensions))
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	path := filepath.Join(dataDir, vectorIndexFile)
	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(path); err != nil {
			return nil, fmt.Errorf("load vector index: %w", err)
		}
	}
	return idx, nil
}

// Ingest chunks, embeds and indexes one document. An empty docID gets a
// generated UUID. Re-ingesting an existing docID replaces its chunks.
// The returned chunks carry the provenance metadata that was indexed.
func (s *Service) Ingest(ctx context.Context, docID, title, text string, metadata map[string]string) ([]chunk.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	if docID == "" {
		docID = uuid.NewString()
	}

	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return nil, fmt.Errorf("acquire ingest lock: %w", err)
		}
		defer s.lock.Unlock()
	}

	if err := s.removeExisting(ctx, docID); err != nil {
		return nil, err
	}

	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	ids := make([]string, len(pieces))
	texts := make([]string, len(pieces))
	records := make([]*store.Chunk, len(pieces))
	keywordDocs := make([]*store.KeywordDoc, len(pieces))
	now := time.Now().UTC()
	for i, p := range pieces {
		id := fmt.Sprintf("%s_%d", docID, i)
		meta := make(map[string]string, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["chunk_index"] = strconv.Itoa(i)
		meta["total_chunks"] = strconv.Itoa(len(pieces))
		meta["original_doc_id"] = docID

		ids[i] = id
		texts[i] = p.Content
		records[i] = &store.Chunk{
			ID:          id,
			DocumentID:  docID,
			Title:       title,
			Content:     p.Content,
			ChunkIndex:  p.Index,
			StartOffset: p.Start,
			EndOffset:   p.End,
			Metadata:    meta,
			CreatedAt:   now,
		}
		keywordDocs[i] = &store.KeywordDoc{ID: id, Content: p.Content}
		pieces[i].Metadata = meta
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", docID, err)
	}

	if err := s.chunks.SaveDocument(ctx, &store.Document{
		ID:         docID,
		Title:      title,
		ChunkCount: len(pieces),
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("save document %s: %w", docID, err)
	}
	if err := s.chunks.SaveChunks(ctx, records); err != nil {
		return nil, fmt.Errorf("save chunks for %s: %w", docID, err)
	}
	if err := s.vector.Add(ctx, ids, vectors); err != nil {
		return nil, fmt.Errorf("index vectors for %s: %w", docID, err)
	}
	if err := s.keyword.Index(ctx, keywordDocs); err != nil {
		return nil, fmt.Errorf("index keywords for %s: %w", docID, err)
	}

	if s.vectorPath != "" {
		if err := s.vector.Save(s.vectorPath); err != nil {
			return nil, fmt.Errorf("persist vector index: %w", err)
		}
	}
	if s.results != nil {
		s.results.Purge()
	}

	slog.Info("document ingested",
		"doc_id", docID,
		"chunks", len(pieces),
		"title", title)
	return pieces, nil
}

// removeExisting drops a previous version of the document from both
// indexes before re-ingestion.
func (s *Service) removeExisting(ctx context.Context, docID string) error {
	existing, err := s.chunks.ChunkIDsByDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("lookup document %s: %w", docID, err)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := s.vector.Delete(ctx, existing); err != nil {
		return fmt.Errorf("remove vectors for %s: %w", docID, err)
	}
	if err := s.keyword.Delete(ctx, existing); err != nil {
		return fmt.Errorf("remove keywords for %s: %w", docID, err)
	}
	if err := s.chunks.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("remove document %s: %w", docID, err)
	}
	return nil
}

// Delete removes a document and its chunks from every index.
func (s *Service) Delete(ctx context.Context, docID string) error {
	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return fmt.Errorf("acquire ingest lock: %w", err)
		}
		defer s.lock.Unlock()
	}
	if err := s.removeExisting(ctx, docID); err != nil {
		return err
	}
	if s.vectorPath != "" {
		if err := s.vector.Save(s.vectorPath); err != nil {
			return fmt.Errorf("persist vector index: %w", err)
		}
	}
	if s.results != nil {
		s.results.Purge()
	}
	return nil
}

// Retrieve assembles a context window for the query. An empty mode uses
// the configured default; a non-empty filter keeps only chunks whose
// metadata matches every pair. Results are served from the LRU cache
// when an identical query was answered recently.
func (s *Service) Retrieve(ctx context.Context, query string, mode retrieve.Mode, filter map[string]string) (*retrieve.AssembledContext, error) {
	if mode == "" {
		parsed, err := retrieve.ParseMode(s.cfg.Retrieval.Mode)
		if err != nil {
			return nil, err
		}
		mode = parsed
	}

	key := cacheKey(mode, query, filter)
	if s.results != nil {
		if cached, ok := s.results.Get(key); ok {
			slog.Debug("retrieval cache hit", "mode", mode, "query", query)
			return cached, nil
		}
	}

	retriever, err := s.newRetriever(mode)
	if err != nil {
		return nil, err
	}
	assembled, err := retriever.Retrieve(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	if s.results != nil && !assembled.Degraded {
		s.results.Add(key, assembled)
	}
	return assembled, nil
}

func cacheKey(mode retrieve.Mode, query string, filter map[string]string) string {
	var b strings.Builder
	b.WriteString(string(mode))
	b.WriteByte(0)
	b.WriteString(query)

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filter[k])
	}
	return b.String()
}

func (s *Service) newRetriever(mode retrieve.Mode) (*retrieve.Retriever, error) {
	r := s.cfg.Retrieval
	opts := retrieve.Options{
		Mode:                mode,
		TopK:                r.TopK,
		SimilarityThreshold: r.SimilarityThreshold,
		RerankTopK:          r.RerankTopK,
		VectorWeight:        r.VectorWeight,
		KeywordWeight:       r.KeywordWeight,
		RRFConstant:         r.RRFConstant,
		MaxContextTokens:    r.ContextWindowTokens,
	}
	retrieverOpts := []retrieve.RetrieverOption{retrieve.WithExpander(s.expander)}
	if s.reranker != nil {
		retrieverOpts = append(retrieverOpts, retrieve.WithReranker(s.reranker))
	}
	return retrieve.NewRetriever(s.embedder, s.vector, s.keyword, s.chunks, opts, retrieverOpts...)
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	Vectors        int    `json:"vectors"`
	KeywordDocs    int    `json:"keyword_docs"`
	EmbeddingModel string `json:"embedding_model"`
	RetrievalMode  string `json:"retrieval_mode"`
}

// Stats reports index sizes and the active configuration.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	storeStats, err := s.chunks.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	keywordDocs, err := s.keyword.DocCount()
	if err != nil {
		return nil, fmt.Errorf("keyword stats: %w", err)
	}
	return &Stats{
		Documents:      storeStats.DocumentCount,
		Chunks:         storeStats.ChunkCount,
		Vectors:        s.vector.Count(),
		KeywordDocs:    keywordDocs,
		EmbeddingModel: s.embedder.ModelName(),
		RetrievalMode:  s.cfg.Retrieval.Mode,
	}, nil
}

// Close releases every backend, persisting the vector index first.
func (s *Service) Close() error {
	var errs []error
	if s.vectorPath != "" {
		if err := s.vector.Save(s.vectorPath); err != nil {
			errs = append(errs, fmt.Errorf("persist vector index: %w", err))
		}
	}
	errs = append(errs,
		s.embedder.Close(),
		s.vector.Close(),
		s.keyword.Close(),
		s.chunks.Close(),
	)
	if s.reranker != nil {
		errs = append(errs, s.reranker.Close())
	}
	return errors.Join(errs...)
}
