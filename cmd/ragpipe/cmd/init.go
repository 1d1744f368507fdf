package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragpipe/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .ragpipe.yaml and create the data directory",
		Long: `Write a default .ragpipe.yaml into the current directory and create
the configured data directory. Edit the file to change chunking,
retrieval or embedding settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing .ragpipe.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	const path = ".ragpipe.yaml"
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.NewConfig()
	if flags.dataDir != "" {
		cfg.Paths.DataDir = flags.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.WriteYAML(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nData directory: %s\n", path, cfg.Paths.DataDir)
	return nil
}
