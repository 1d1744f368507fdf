package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragpipe/internal/output"
	"github.com/Aman-CERP/ragpipe/internal/rag"
	"github.com/Aman-CERP/ragpipe/internal/retrieve"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	mode         string
	format       string
	filters      []string
	retrieveOnly bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question over the indexed documents",
		Long: `Retrieve context for the question and generate an answer.

Modes:
  simple  one retrieval pass with weighted fusion (default)
  rerank  widened retrieval refined by the cross-encoder reranker
  fusion  multi-query retrieval fused with reciprocal rank fusion
  hybrid  fusion retrieval plus reranking

Examples:
  ragpipe query "how does checkpointing work"
  ragpipe query --mode hybrid "failure recovery strategy"
  ragpipe query --filter lang=en "localized content"
  ragpipe query --retrieve-only --format json "search terms"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Retrieval mode: simple, rerank, fusion, hybrid")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.retrieveOnly, "retrieve-only", false, "Print retrieved context without generating an answer")
	return cmd
}

// parseFilters converts repeated key=value flags into a metadata filter.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --filter %q, expected key=value", p)
		}
		filter[k] = v
	}
	return filter, nil
}

// queryOutput is the JSON output format for query.
type queryOutput struct {
	Question   string                  `json:"question"`
	Answer     string                  `json:"answer,omitempty"`
	Confidence float64                 `json:"confidence,omitempty"`
	Mode       string                  `json:"mode"`
	Degraded   bool                    `json:"degraded"`
	Chunks     []retrieve.ContextChunk `json:"chunks"`
}

func runQuery(cmd *cobra.Command, question string, opts queryOptions) error {
	mode := retrieve.Mode("")
	if opts.mode != "" {
		parsed, err := retrieve.ParseMode(opts.mode)
		if err != nil {
			return err
		}
		mode = parsed
	}

	filter, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := rag.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if opts.retrieveOnly {
		assembled, err := svc.Retrieve(cmd.Context(), question, mode, filter)
		if err != nil {
			return err
		}
		return printRetrieved(cmd, question, assembled, opts.format)
	}

	gen := rag.NewOllamaGenerator(rag.OllamaGeneratorConfig{
		Host:        cfg.Generation.OllamaHost,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     2 * time.Minute,
	})
	defer gen.Close()

	answer, err := svc.Query(cmd.Context(), question, mode, filter, gen)
	if err != nil {
		return err
	}
	return printAnswer(cmd, answer, opts.format)
}

func printRetrieved(cmd *cobra.Command, question string, assembled *retrieve.AssembledContext, format string) error {
	if format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(queryOutput{
			Question: question,
			Mode:     string(assembled.Mode),
			Degraded: assembled.Degraded,
			Chunks:   assembled.Chunks,
		})
	}

	out := output.New(cmd.OutOrStdout())
	if assembled.Empty() {
		out.Infof("No results.")
		return nil
	}
	for i, ch := range assembled.Chunks {
		out.Result(i+1, fmt.Sprintf("%s (score %.3f)", ch.Title, ch.Score), ch.Content)
	}
	if assembled.Degraded {
		out.Warningf("degraded sources: %s", strings.Join(assembled.DegradedSources, ", "))
	}
	return nil
}

func printAnswer(cmd *cobra.Command, answer *rag.Answer, format string) error {
	if format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(queryOutput{
			Question:   answer.Question,
			Answer:     answer.Text,
			Confidence: answer.Confidence,
			Mode:       string(answer.Context.Mode),
			Degraded:   answer.Context.Degraded,
			Chunks:     answer.Context.Chunks,
		})
	}

	out := output.New(cmd.OutOrStdout())
	out.Infof("%s", answer.Text)
	if !answer.Context.Empty() {
		out.Newline()
		out.Infof("confidence: %.2f, sources:", answer.Confidence)
		for i, ch := range answer.Context.Chunks {
			out.Result(i+1, fmt.Sprintf("%s (score %.3f)", ch.Title, ch.Score), "")
		}
	}
	if answer.Context.Degraded {
		out.Warningf("degraded sources: %s", strings.Join(answer.Context.DegradedSources, ", "))
	}
	return nil
}
