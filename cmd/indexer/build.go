package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/cache/redis"
	"github.com/nl2api/backend/internal/docbuilder"
	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/llm"
	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/vector/milvus"
	appLogger "github.com/nl2api/backend/pkg/logger"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the DSL records and rebuild the vector collection",
	Long: `Build loads every DSL record, renders it into a retrieval document,
embeds the documents in batches, and replaces the vector collection
wholesale. Cached pipeline results are invalidated afterwards since they
may reference dropped documents.

Markdown guides given via --docs are indexed as whole documents next to
the DSL records, tagged with --docs-protocol.`,
	RunE: runBuild,
}

func loadMarkdownDocs(dir, protocolType string) ([]docbuilder.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs dir: %w", err)
	}

	var docs []docbuilder.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		docs = append(docs, docbuilder.FromMarkdown(name, string(data), protocolType, dir))
	}

	return docs, nil
}

func init() {
	buildCmd.Flags().String("dir", "", "DSL directory (default: dsl.dir from config)")
	buildCmd.Flags().String("source", "", "source label stored with each document (default: dir)")
	buildCmd.Flags().String("docs", "", "optional directory of markdown guides to index alongside the DSL records")
	buildCmd.Flags().String("docs-protocol", "graphql", "protocol_type stored with markdown guides")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.DSL.Dir
	}
	source, _ := cmd.Flags().GetString("source")
	if source == "" {
		source = dir
	}

	ctx := context.Background()

	records, err := dsl.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no DSL records found in %s; run extract first", dir)
	}

	docs := docbuilder.FromRecords(records, source)

	docsDir, _ := cmd.Flags().GetString("docs")
	if docsDir != "" {
		docsProtocol, _ := cmd.Flags().GetString("docs-protocol")
		guides, err := loadMarkdownDocs(docsDir, docsProtocol)
		if err != nil {
			return err
		}
		docs = append(docs, guides...)
	}

	llmClient := llm.NewClient(
		cfg.LLM.OpenAIAPIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	appLogger.Info("Embedding documents", zap.Int("count", len(texts)))

	embeddings, err := llmClient.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding count mismatch: %d documents, %d embeddings", len(docs), len(embeddings))
	}

	indexed := make([]milvus.IndexedDocument, len(docs))
	for i := range docs {
		indexed[i] = milvus.IndexedDocument{
			Document:  docs[i],
			Embedding: embeddings[i],
		}
	}

	milvusClient, err := milvus.NewClient(
		cfg.Vector.Endpoint,
		cfg.Vector.CollectionName,
		cfg.Vector.Dim,
	)
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	if err := milvusClient.RecreateCollection(ctx); err != nil {
		return err
	}
	if err := milvusClient.Insert(ctx, indexed); err != nil {
		return err
	}

	metrics.DocumentsIndexed.Set(float64(len(indexed)))

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Skipping cache invalidation, Redis unavailable", zap.Error(err))
		} else {
			defer redisClient.Close()
			if err := redisClient.InvalidateResults(ctx); err != nil {
				appLogger.Warn("Failed to invalidate result cache", zap.Error(err))
			}
		}
	}

	appLogger.Info("Vector index built",
		zap.Int("documents", len(indexed)),
		zap.String("collection", cfg.Vector.CollectionName),
	)

	return nil
}
