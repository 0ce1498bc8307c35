package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/enrich"
	"github.com/nl2api/backend/internal/llm"
	appLogger "github.com/nl2api/backend/pkg/logger"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Rewrite DSL descriptions for semantic search",
	Long: `Enrich sends every DSL record through the LLM to replace its terse
extracted description with one or two sentences of user-facing intent plus
bilingual keywords. Records whose reply cannot be parsed keep their
original description. Run build afterwards to re-embed.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().String("dir", "", "DSL directory (default: dsl.dir from config)")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.DSL.Dir
	}

	records, err := dsl.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no DSL records found in %s; run extract first", dir)
	}

	llmClient := llm.NewClient(
		cfg.LLM.OpenAIAPIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	enriched, err := enrich.New(llmClient).EnrichAll(context.Background(), records)
	if err != nil {
		return err
	}

	for _, record := range enriched {
		if err := record.Save(dir); err != nil {
			return err
		}
	}

	appLogger.Info("DSL records enriched",
		zap.Int("count", len(enriched)),
		zap.String("dir", dir),
	)

	return nil
}
