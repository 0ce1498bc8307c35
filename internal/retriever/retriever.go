// Package retriever turns an utterance into the top-k DSL documents for the
// classified protocol.
package retriever

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/vector/milvus"
	"github.com/nl2api/backend/pkg/logger"
	"github.com/nl2api/backend/pkg/utils"
)

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Translator interface {
	TranslateToEnglish(ctx context.Context, text string) (string, error)
}

type SearchStore interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, protocolType string) ([]milvus.SearchResult, error)
}

// EmbeddingCache is optional; a nil cache disables it.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Retriever struct {
	embedder   Embedder
	translator Translator
	store      SearchStore
	cache      EmbeddingCache
	topK       int
}

const embeddingCacheTTL = 24 * time.Hour

func New(embedder Embedder, translator Translator, store SearchStore, cache EmbeddingCache, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		embedder:   embedder,
		translator: translator,
		store:      store,
		cache:      cache,
		topK:       topK,
	}
}

// Retrieve returns at most topK documents ordered most similar first, all
// carrying the requested protocol type. The result may legitimately be
// empty. For identical input and index state the output is identical.
func (r *Retriever) Retrieve(ctx context.Context, utterance, protocolType string) ([]milvus.SearchResult, error) {
	searchText := utterance
	if needsTranslation(utterance) {
		translated, err := r.translator.TranslateToEnglish(ctx, utterance)
		if err != nil {
			return nil, fmt.Errorf("failed to translate utterance: %w", err)
		}
		metrics.TranslationsTotal.Inc()
		logger.Debug("Utterance translated for retrieval",
			zap.String("original", utterance),
			zap.String("translated", translated),
		)
		searchText = translated
	}

	embedding, err := r.embedText(ctx, searchText)
	if err != nil {
		return nil, err
	}

	results, err := r.store.Search(ctx, embedding, r.topK, protocolType)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// The store already filters server-side; drop anything a non-conforming
	// store returns anyway. Filtering may leave fewer than topK results.
	filtered := results[:0]
	for _, res := range results {
		if res.ProtocolType == protocolType {
			filtered = append(filtered, res)
		}
	}

	logger.Info("Context retrieved",
		zap.String("protocol", protocolType),
		zap.Int("results", len(filtered)),
	)

	return filtered, nil
}

func (r *Retriever) embedText(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)

	if r.cache != nil {
		if embedding, ok, err := r.cache.GetEmbedding(ctx, hash); err == nil && ok {
			return embedding, nil
		}
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.SetEmbedding(ctx, hash, embedding, embeddingCacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

// needsTranslation reports whether the text contains Hangul. The index is
// built from English schema text, so Korean input is translated first.
func needsTranslation(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
