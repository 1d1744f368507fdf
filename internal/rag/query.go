package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Aman-CERP/ragpipe/internal/retrieve"
)

// Generator produces an answer from an assembled prompt. Implementations
// wrap a downstream text generation endpoint.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// NoAnswer is returned as the answer text when retrieval produced no
// usable context.
const NoAnswer = "I could not find relevant information to answer this question."

// Answer is the result of a full question answering pass.
type Answer struct {
	Question   string
	Text       string
	Confidence float64
	Context    *retrieve.AssembledContext
}

// Query retrieves context for the question and generates an answer. An
// empty mode uses the configured default; the filter narrows retrieval
// by chunk metadata. When no context is found the generator is not
// called and the answer carries zero confidence.
func (s *Service) Query(ctx context.Context, question string, mode retrieve.Mode, filter map[string]string, gen Generator) (*Answer, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is required", retrieve.ErrNilDependency)
	}

	start := time.Now()
	assembled, err := s.Retrieve(ctx, question, mode, filter)
	if err != nil {
		return nil, err
	}
	if assembled.Empty() {
		return &Answer{
			Question:   question,
			Text:       NoAnswer,
			Confidence: 0,
			Context:    assembled,
		}, nil
	}

	text, err := gen.Generate(ctx, buildPrompt(question, assembled))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer := &Answer{
		Question:   question,
		Text:       strings.TrimSpace(text),
		Confidence: confidence(assembled),
		Context:    assembled,
	}
	slog.Info("query answered",
		"mode", assembled.Mode,
		"chunks", len(assembled.Chunks),
		"confidence", answer.Confidence,
		"duration", time.Since(start))
	return answer, nil
}

// buildPrompt renders the grounding prompt handed to the generator.
func buildPrompt(question string, assembled *retrieve.AssembledContext) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\nContext:\n")
	for i, ch := range assembled.Chunks {
		if ch.Title != "" {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, ch.Title)
		} else {
			fmt.Fprintf(&b, "[%d]\n", i+1)
		}
		b.WriteString(ch.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// confidence scores an assembled context in [0, 1]. Higher average chunk
// scores, lower score variance and more supporting chunks all raise it.
func confidence(assembled *retrieve.AssembledContext) float64 {
	n := len(assembled.Chunks)
	if n == 0 {
		return 0
	}

	var sum float64
	for _, ch := range assembled.Chunks {
		sum += ch.Score
	}
	avg := sum / float64(n)

	var variance float64
	for _, ch := range assembled.Chunks {
		d := ch.Score - avg
		variance += d * d
	}
	variance /= float64(n)

	count := math.Min(float64(n)/5.0, 1.0)
	score := avg*0.7 + (1-variance)*0.2 + count*0.1
	return math.Max(0, math.Min(1, score))
}
