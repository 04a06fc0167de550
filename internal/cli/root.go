// Package cli provides the ragengine command line: the API server, the
// ingestion worker and a few operator commands.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"scalable-rag-engine/internal/config"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
)

var (
	// Version and Commit are set at build time.
	Version = "dev"
	Commit  = "none"

	// Global flags
	cfgPath string
	devMode bool

	cfg    *config.Config
	logger *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragengine",
	Short: "Ingest web pages and answer questions about them",
	Long: `ragengine fetches submitted URLs in the background, splits their text into
overlapping chunks, embeds them into a pgvector index and answers questions
grounded in the retrieved chunks.

Run "ragengine api" for the HTTP API and "ragengine worker" for the consumers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.LoadConfig(cfgPath, devMode)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger = logging.New(cfg.Log, cfg.Runtime.Dev)
		if cfg.Runtime.Dev {
			logger.Info().Msg("[DEV MODE] enabled")
		}
		metrics.MustRegister()
		metrics.SetBuildInfo(Version, Commit)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "console logging and developer defaults")

	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(queueCmd)
}
