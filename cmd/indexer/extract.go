package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	appLogger "github.com/nl2api/backend/pkg/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract DSL records from a GraphQL schema or an OpenAPI spec",
	Long: `Extract parses an API schema into one YAML record per operation and
writes them into the DSL directory. Re-running replaces records with the
same operation name; records are never merged.

The schema kind is chosen by flag: --graphql expects an SDL file,
--openapi an OpenAPI 3.x YAML file. Exactly one must be given.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("graphql", "", "path to a GraphQL SDL file")
	extractCmd.Flags().String("openapi", "", "path to an OpenAPI YAML file")
	extractCmd.Flags().String("out", "./generated_dsl", "output directory for DSL records")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	graphqlPath, _ := cmd.Flags().GetString("graphql")
	openapiPath, _ := cmd.Flags().GetString("openapi")
	outDir, _ := cmd.Flags().GetString("out")

	if (graphqlPath == "") == (openapiPath == "") {
		return fmt.Errorf("exactly one of --graphql or --openapi is required")
	}

	var (
		records []dsl.Record
		err     error
	)

	if graphqlPath != "" {
		data, readErr := os.ReadFile(graphqlPath)
		if readErr != nil {
			return fmt.Errorf("failed to read schema: %w", readErr)
		}
		records, err = dsl.ExtractGraphQL(filepath.Base(graphqlPath), string(data))
	} else {
		data, readErr := os.ReadFile(openapiPath)
		if readErr != nil {
			return fmt.Errorf("failed to read spec: %w", readErr)
		}
		records, err = dsl.ExtractOpenAPI(data)
	}

	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	for _, record := range records {
		if err := record.Save(outDir); err != nil {
			return err
		}
	}

	appLogger.Info("DSL records extracted",
		zap.Int("count", len(records)),
		zap.String("dir", outDir),
	)

	return nil
}
