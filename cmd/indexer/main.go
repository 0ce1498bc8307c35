// Package main is the entry point for the indexer CLI. It extracts DSL
// records from API schemas, enriches their descriptions, and builds the
// vector index the server searches at request time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nl2api/backend/pkg/config"
	appLogger "github.com/nl2api/backend/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Build the DSL vector index for the NL2API server",
	Long: `indexer maintains the retrieval corpus behind the NL2API server.

The workflow is three subcommands, usually run in order: extract pulls
per-operation DSL records out of a GraphQL schema or an OpenAPI spec,
enrich rewrites their descriptions for semantic search, and build embeds
the records and rebuilds the vector collection from scratch.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// extract works offline and does not need an API key or endpoints.
		if cmd.Name() == "extract" {
			return appLogger.Init("info", "console", "stdout")
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		return appLogger.Init(cfg.Logging.Level, "console", "stdout")
	},
}

func main() {
	defer appLogger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
