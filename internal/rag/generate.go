package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Ollama generation defaults.
const (
	defaultGenerateHost    = "http://localhost:11434"
	defaultGenerateModel   = "qwen3:4b"
	defaultGenerateTimeout = 120 * time.Second
)

// OllamaGeneratorConfig configures the Ollama text generation client.
type OllamaGeneratorConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the generation model to use.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the generated response length. 0 leaves the model
	// default in place.
	MaxTokens int

	// Timeout per generation request (default: 120s).
	Timeout time.Duration
}

// OllamaGenerator produces answers via Ollama's /api/generate endpoint.
type OllamaGenerator struct {
	client *http.Client
	config OllamaGeneratorConfig

	mu     sync.RWMutex
	closed bool
}

var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates an Ollama generation client. No network
// call is made here.
func NewOllamaGenerator(cfg OllamaGeneratorConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = defaultGenerateHost
	}
	if cfg.Model == "" {
		cfg.Model = defaultGenerateModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerateTimeout
	}
	return &OllamaGenerator{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		},
		config: cfg,
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt to the model and returns the full response.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", fmt.Errorf("generator is closed")
	}
	g.mu.RUnlock()

	options := map[string]interface{}{
		"temperature": g.config.Temperature,
	}
	if g.config.MaxTokens > 0 {
		options["num_predict"] = g.config.MaxTokens
	}
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   g.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generate request: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return decoded.Response, nil
}

// Close marks the generator closed and drops idle connections.
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.client.CloseIdleConnections()
	return nil
}
