// Package cmd provides the CLI commands for ragpipe.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragpipe/internal/config"
	"github.com/Aman-CERP/ragpipe/internal/logging"
	"github.com/Aman-CERP/ragpipe/pkg/version"
)

// rootFlags holds the persistent flags shared by all subcommands.
type rootFlags struct {
	dataDir  string
	logLevel string
}

var flags rootFlags

var loggingCleanup func()

// NewRootCmd creates the root command for the ragpipe CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragpipe",
		Short: "Local retrieval-augmented question answering over your documents",
		Long: `ragpipe ingests documents into hybrid keyword and vector indexes
and answers questions over them with retrieval-augmented generation.

It runs entirely locally. Ollama is used for embeddings and answer
generation when reachable; otherwise a static offline embedder is used
and queries return retrieved context without a generated answer.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.DefaultConfig()
			if flags.logLevel != "" {
				logCfg.Level = flags.logLevel
			}
			// keep stdout/stderr clean; logs go to the file
			logCfg.WriteToStderr = false
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			loggingCleanup = cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if loggingCleanup != nil {
				loggingCleanup()
			}
		},
	}

	cmd.SetVersionTemplate("ragpipe version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Index data directory (default ~/.ragpipe/data)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration from the working directory and applies
// persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		cfg.Paths.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}
