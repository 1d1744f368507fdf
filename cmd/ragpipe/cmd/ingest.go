package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragpipe/internal/output"
	"github.com/Aman-CERP/ragpipe/internal/rag"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	docID string
	title string
	stdin bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Chunk, embed and index documents",
		Long: `Ingest documents into the keyword and vector indexes.

Each file becomes one document; the file name is used as the title
unless --title is given. With --stdin the document is read from
standard input instead.

Examples:
  ragpipe ingest docs/design.md docs/faq.md
  ragpipe ingest --stdin --id notes --title "Meeting notes" < notes.txt`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.docID, "id", "", "Document ID (default: derived from the file name)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Document title (default: file name)")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "Read one document from standard input")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts ingestOptions) error {
	if !opts.stdin && len(args) == 0 {
		return fmt.Errorf("nothing to ingest: pass file paths or --stdin")
	}
	if opts.stdin && len(args) > 0 {
		return fmt.Errorf("--stdin cannot be combined with file arguments")
	}
	if len(args) > 1 && opts.docID != "" {
		return fmt.Errorf("--id applies to a single document")
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

	out := output.New(cmd.OutOrStdout())
	if opts.stdin {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		pieces, err := svc.Ingest(cmd.Context(), opts.docID, opts.title, string(text), nil)
		if err != nil {
			return err
		}
		out.Successf("Ingested stdin: %d chunks", len(pieces))
		return nil
	}

	for _, path := range args {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docID := opts.docID
		if docID == "" {
			docID = docIDFromPath(path)
		}
		title := opts.title
		if title == "" {
			title = filepath.Base(path)
		}
		pieces, err := svc.Ingest(cmd.Context(), docID, title, string(text), map[string]string{
			"source": path,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		out.Successf("Ingested %s: %d chunks", path, len(pieces))
	}
	return nil
}

// docIDFromPath derives a stable document ID from a file path. Chunk IDs
// append _<index>, so separators are flattened.
func docIDFromPath(path string) string {
	id := filepath.ToSlash(filepath.Clean(path))
	id = strings.TrimPrefix(id, "./")
	return strings.NewReplacer("/", "-", " ", "-").Replace(id)
}
