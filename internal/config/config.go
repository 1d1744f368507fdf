// Package config loads and validates the ragpipe configuration. Values
// are applied in order of increasing precedence: hardcoded defaults, the
// user config (~/.config/ragpipe/config.yaml), the project config
// (.ragpipe.yaml), and RAGPIPE_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete ragpipe configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// PathsConfig configures where index data lives.
type PathsConfig struct {
	// DataDir holds the keyword index, vector index and chunk database.
	// Defaults to ~/.ragpipe/data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	// ChunkSize is the target chunk length in runes.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the rune overlap between consecutive chunks.
	// Must be smaller than ChunkSize.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// RetrievalConfig configures the retrieval orchestrator.
type RetrievalConfig struct {
	// Mode is "simple", "rerank", "fusion" or "hybrid".
	Mode string `yaml:"mode" json:"mode"`

	TopK                int     `yaml:"top_k" json:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	RerankTopK          int     `yaml:"rerank_top_k" json:"rerank_top_k"`

	// VectorWeight and KeywordWeight must sum to 1.0, or both be zero
	// for unweighted fusion.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// RRFConstant is the RRF smoothing parameter k. Default 60, the
	// constant used by Azure AI Search and OpenSearch.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// ContextWindowTokens bounds the assembled context size.
	ContextWindowTokens int `yaml:"context_window_tokens" json:"context_window_tokens"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static", or empty for auto-detection
	// (Ollama when reachable, static hashing otherwise).
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	// CacheEntries bounds the embedding cache. 0 uses the default.
	CacheEntries int `yaml:"cache_entries" json:"cache_entries"`
}

// RerankerConfig configures the external cross-encoder service.
type RerankerConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	Model       string  `yaml:"model" json:"model"`
	OllamaHost  string  `yaml:"ollama_host" json:"ollama_host"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	// ResultEntries bounds the retrieval result LRU cache.
	ResultEntries int `yaml:"result_entries" json:"result_entries"`

	// TTL expires cached results. "0" disables expiry.
	TTL string `yaml:"ttl" json:"ttl"`
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Retrieval: RetrievalConfig{
			Mode:                "simple",
			TopK:                5,
			SimilarityThreshold: 0.5,
			RerankTopK:          3,
			VectorWeight:        0.7,
			KeywordWeight:       0.3,
			RRFConstant:         60,
			ContextWindowTokens: 2048,
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "", // auto-detect: Ollama when reachable, static otherwise
			Model:        "nomic-embed-text",
			Dimensions:   0, // detected from the embedder
			BatchSize:    32,
			OllamaHost:   "", // empty uses http://localhost:11434
			Timeout:      60 * time.Second,
			CacheEntries: 1000,
		},
		Reranker: RerankerConfig{
			Enabled:  false,
			Endpoint: "", // empty uses http://localhost:9659
			Model:    "reranker-small",
			Timeout:  "30s",
		},
		Generation: GenerationConfig{
			Model:       "qwen3:4b",
			OllamaHost:  "",
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Cache: CacheConfig{
			ResultEntries: 256,
			TTL:           "5m",
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragpipe", "data")
	}
	return filepath.Join(home, ".ragpipe", "data")
}

// UserConfigPath returns the user configuration path, honoring
// XDG_CONFIG_HOME.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragpipe", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragpipe", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragpipe", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := UserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir loads .ragpipe.yaml or .ragpipe.yml from dir, if present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".ragpipe.yaml", ".ragpipe.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}

	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Retrieval.Mode != "" {
		c.Retrieval.Mode = other.Retrieval.Mode
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.SimilarityThreshold != 0 {
		c.Retrieval.SimilarityThreshold = other.Retrieval.SimilarityThreshold
	}
	if other.Retrieval.RerankTopK != 0 {
		c.Retrieval.RerankTopK = other.Retrieval.RerankTopK
	}
	if other.Retrieval.VectorWeight != 0 {
		c.Retrieval.VectorWeight = other.Retrieval.VectorWeight
	}
	if other.Retrieval.KeywordWeight != 0 {
		c.Retrieval.KeywordWeight = other.Retrieval.KeywordWeight
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.ContextWindowTokens != 0 {
		c.Retrieval.ContextWindowTokens = other.Retrieval.ContextWindowTokens
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheEntries != 0 {
		c.Embeddings.CacheEntries = other.Embeddings.CacheEntries
	}

	// Enabled is boolean, merged only when any reranker field is set.
	if other.Reranker.Endpoint != "" || other.Reranker.Model != "" || other.Reranker.Enabled {
		c.Reranker.Enabled = other.Reranker.Enabled
	}
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Generation.Model != "" {
		c.Generation.Model = other.Generation.Model
	}
	if other.Generation.OllamaHost != "" {
		c.Generation.OllamaHost = other.Generation.OllamaHost
	}
	if other.Generation.Temperature != 0 {
		c.Generation.Temperature = other.Generation.Temperature
	}
	if other.Generation.MaxTokens != 0 {
		c.Generation.MaxTokens = other.Generation.MaxTokens
	}

	if other.Cache.ResultEntries != 0 {
		c.Cache.ResultEntries = other.Cache.ResultEntries
	}
	if other.Cache.TTL != "" {
		c.Cache.TTL = other.Cache.TTL
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies RAGPIPE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGPIPE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("RAGPIPE_MODE"); v != "" {
		c.Retrieval.Mode = v
	}
	if v := os.Getenv("RAGPIPE_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.VectorWeight = w
		}
	}
	if v := os.Getenv("RAGPIPE_KEYWORD_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.KeywordWeight = w
		}
	}
	if v := os.Getenv("RAGPIPE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("RAGPIPE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RAGPIPE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGPIPE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Generation.OllamaHost = v
	}
	if v := os.Getenv("RAGPIPE_RERANKER_ENABLED"); v != "" {
		c.Reranker.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("RAGPIPE_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("RAGPIPE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunking.chunk_overlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}

	validModes := map[string]bool{"simple": true, "rerank": true, "fusion": true, "hybrid": true}
	if !validModes[strings.ToLower(c.Retrieval.Mode)] {
		return fmt.Errorf("retrieval.mode must be 'simple', 'rerank', 'fusion' or 'hybrid', got %s", c.Retrieval.Mode)
	}

	if c.Retrieval.VectorWeight < 0 || c.Retrieval.VectorWeight > 1 {
		return fmt.Errorf("retrieval.vector_weight must be between 0 and 1, got %f", c.Retrieval.VectorWeight)
	}
	if c.Retrieval.KeywordWeight < 0 || c.Retrieval.KeywordWeight > 1 {
		return fmt.Errorf("retrieval.keyword_weight must be between 0 and 1, got %f", c.Retrieval.KeywordWeight)
	}
	// both weights zero means unweighted fusion, anything else must be
	// a normalized split
	sum := c.Retrieval.VectorWeight + c.Retrieval.KeywordWeight
	if sum != 0 && math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("retrieval weights must sum to 1.0, got %.2f", sum)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be between 0 and 1, got %f", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ContextWindowTokens < 0 {
		return fmt.Errorf("retrieval.context_window_tokens must be non-negative, got %d", c.Retrieval.ContextWindowTokens)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
