// Package cmd provides the CLI commands for smartsearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quickkart/smartsearch/internal/logging"
	"github.com/quickkart/smartsearch/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the smartsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartsearch",
		Short: "Typo-tolerant product search with multi-strategy retrieval",
		Long: `Smartsearch answers product queries through a layered pipeline:
spell correction, price and entity extraction, synonym expansion,
then escalating retrieval (keyword index, embedding similarity,
structured catalog scan, emergency scan) fused into one ranking.

Index a catalog first, then search it:

  smartsearch index --products catalog.json
  smartsearch search "samung phone under 30k"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("smartsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.smartsearch/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	// Pipeline logs always go to the rotating file; the stderr mirror
	// would interleave with result output, so it is debug-only.
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
