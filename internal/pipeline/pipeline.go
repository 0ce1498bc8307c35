// Package pipeline runs the classify, retrieve, synthesize flow for one
// utterance and records the outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/classifier"
	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/internal/synthesizer"
	"github.com/nl2api/backend/internal/vector/milvus"
	"github.com/nl2api/backend/pkg/logger"
	"github.com/nl2api/backend/pkg/utils"
)

type Classifier interface {
	Classify(ctx context.Context, utterance string) (classifier.Result, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, utterance, protocolType string) ([]milvus.SearchResult, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, utterance, protocolType string, docs []milvus.SearchResult) (*synthesizer.Result, error)
}

// HistoryStore and ResultCache are optional; nil disables them. Persistence
// failures are logged, never surfaced to the caller.
type HistoryStore interface {
	InsertAskRecord(record *models.AskRecord) error
	InsertContextSource(source *models.ContextSource) error
}

type ResultCache interface {
	GetResult(ctx context.Context, queryHash string, result interface{}) (bool, error)
	SetResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error
}

// ContextSource is a truncated view of one retrieved document, returned to
// the caller so they can judge what the generation was based on.
type ContextSource struct {
	Name         string  `json:"name"`
	ProtocolType string  `json:"protocol_type"`
	Preview      string  `json:"preview"`
	Score        float64 `json:"score"`
}

type GenerationResult struct {
	ID               string                        `json:"id"`
	UserQuery        string                        `json:"user_query"`
	DetectedProtocol string                        `json:"detected_protocol"`
	Confidence       float64                       `json:"confidence"`
	Reasoning        string                        `json:"reasoning,omitempty"`
	GeneratedQuery   string                        `json:"generated_query,omitempty"`
	GeneratedRequest *synthesizer.GeneratedRequest `json:"generated_request,omitempty"`
	ContextSources   []ContextSource               `json:"context_sources,omitempty"`
	Message          string                        `json:"message,omitempty"`
	LatencyMS        int64                         `json:"latency_ms"`
}

const (
	previewLength   = 200
	resultCacheTTL  = time.Hour
	noContextNotice = "no relevant API found for this request; try rephrasing or naming the resource"
)

type Pipeline struct {
	classifier  Classifier
	retriever   Retriever
	synthesizer Synthesizer
	history     HistoryStore
	cache       ResultCache
}

func New(c Classifier, r Retriever, s Synthesizer, history HistoryStore, cache ResultCache) *Pipeline {
	return &Pipeline{
		classifier:  c,
		retriever:   r,
		synthesizer: s,
		history:     history,
		cache:       cache,
	}
}

// Ask processes one utterance end to end. Stages run strictly in order and
// nothing is carried over between calls.
func (p *Pipeline) Ask(ctx context.Context, utterance string) (*GenerationResult, error) {
	start := time.Now()
	queryHash := utils.HashString(utterance)

	if p.cache != nil {
		var cached GenerationResult
		if hit, err := p.cache.GetResult(ctx, queryHash, &cached); err == nil && hit {
			metrics.CacheHits.WithLabelValues("result").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("result").Inc()
	}

	classifyStart := time.Now()
	classification, err := p.classifier.Classify(ctx, utterance)
	if err != nil {
		metrics.AskTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classification stage failed: %w", err)
	}
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(classifyStart).Seconds())
	metrics.ConfidenceScore.Observe(classification.Confidence)
	metrics.ClassificationTotal.WithLabelValues(
		classification.Protocol,
		strconv.FormatBool(classification.Confidence >= classifier.TrustworthyConfidence),
	).Inc()
	if classification.Fallback {
		metrics.ClassificationFallbacks.Inc()
	}

	retrieveStart := time.Now()
	docs, err := p.retriever.Retrieve(ctx, utterance, classification.Protocol)
	if err != nil {
		metrics.AskTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retrieval stage failed: %w", err)
	}
	metrics.StageDuration.WithLabelValues("retrieve").Observe(time.Since(retrieveStart).Seconds())
	metrics.RetrievalResultsCount.Observe(float64(len(docs)))

	result := &GenerationResult{
		ID:               uuid.New().String(),
		UserQuery:        utterance,
		DetectedProtocol: classification.Protocol,
		Confidence:       classification.Confidence,
		Reasoning:        classification.Reasoning,
		ContextSources:   toContextSources(docs),
	}

	if len(docs) == 0 {
		result.Message = noContextNotice
		result.LatencyMS = time.Since(start).Milliseconds()
		metrics.AskTotal.WithLabelValues("no_context").Inc()
		metrics.AskDuration.WithLabelValues(classification.Protocol).Observe(time.Since(start).Seconds())

		p.record(result)

		logger.Info("Ask completed without context",
			zap.String("ask_id", result.ID),
			zap.String("protocol", classification.Protocol),
		)

		return result, nil
	}

	synthesizeStart := time.Now()
	generated, err := p.synthesizer.Synthesize(ctx, utterance, classification.Protocol, docs)
	if err != nil {
		metrics.AskTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("synthesis stage failed: %w", err)
	}
	metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(synthesizeStart).Seconds())

	result.GeneratedQuery = generated.Query
	result.GeneratedRequest = generated.Request
	result.LatencyMS = time.Since(start).Milliseconds()

	metrics.AskTotal.WithLabelValues("success").Inc()
	metrics.AskDuration.WithLabelValues(classification.Protocol).Observe(time.Since(start).Seconds())

	p.record(result)

	if p.cache != nil {
		if err := p.cache.SetResult(ctx, queryHash, result, resultCacheTTL); err != nil {
			logger.Warn("Failed to cache result", zap.Error(err))
		}
	}

	logger.Info("Ask completed",
		zap.String("ask_id", result.ID),
		zap.String("protocol", classification.Protocol),
		zap.Float64("confidence", classification.Confidence),
		zap.Int64("latency_ms", result.LatencyMS),
	)

	return result, nil
}

func (p *Pipeline) record(result *GenerationResult) {
	if p.history == nil {
		return
	}

	record := &models.AskRecord{
		ID:               result.ID,
		UserQuery:        result.UserQuery,
		DetectedProtocol: result.DetectedProtocol,
		Confidence:       result.Confidence,
		Reasoning:        result.Reasoning,
		GeneratedQuery:   result.GeneratedQuery,
		Message:          result.Message,
		LatencyMS:        result.LatencyMS,
		CreatedAt:        time.Now(),
	}

	if result.GeneratedRequest != nil {
		if data, err := json.Marshal(result.GeneratedRequest); err == nil {
			record.GeneratedRequest = string(data)
		}
	}

	if err := p.history.InsertAskRecord(record); err != nil {
		logger.Warn("Failed to persist ask record", zap.Error(err))
		return
	}

	for _, src := range result.ContextSources {
		err := p.history.InsertContextSource(&models.ContextSource{
			AskID:        result.ID,
			Name:         src.Name,
			ProtocolType: src.ProtocolType,
			Preview:      src.Preview,
			Score:        src.Score,
		})
		if err != nil {
			logger.Warn("Failed to persist context source", zap.Error(err))
		}
	}
}

func toContextSources(docs []milvus.SearchResult) []ContextSource {
	if len(docs) == 0 {
		return nil
	}

	sources := make([]ContextSource, len(docs))
	for i, doc := range docs {
		sources[i] = ContextSource{
			Name:         doc.Name,
			ProtocolType: doc.ProtocolType,
			Preview:      preview(doc.Content),
			Score:        float64(doc.Score),
		}
	}
	return sources
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}
