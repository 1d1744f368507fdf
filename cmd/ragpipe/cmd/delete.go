package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragpipe/internal/output"
	"github.com/Aman-CERP/ragpipe/internal/rag"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>...",
		Short: "Remove documents from the indexes",
		Long: `Delete documents and their chunks from the keyword index, the
vector index and the chunk store. The document ID is the one printed
or given at ingest time (for files, the flattened path).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args)
		},
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
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
	for _, docID := range args {
		if err := svc.Delete(cmd.Context(), docID); err != nil {
			return err
		}
		out.Successf("Deleted %s", docID)
	}
	return nil
}
