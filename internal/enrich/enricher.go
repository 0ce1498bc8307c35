// Package enrich rewrites terse DSL descriptions into retrieval-friendly
// text with bilingual search keywords.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/llm"
	"github.com/nl2api/backend/pkg/jsonutil"
	"github.com/nl2api/backend/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

const systemPrompt = `You improve API operation descriptions for semantic search over user requests in Korean and English.
Given an operation, write a one or two sentence description of what it does and when a user would ask for it, then list search keywords in both English and Korean.
Respond with JSON only:
{"description": "...", "keywords": ["english term", "한국어 용어", ...]}`

type enrichedReply struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type Enricher struct {
	llm Completer
}

func New(llm Completer) *Enricher {
	return &Enricher{llm: llm}
}

// EnrichRecord returns a copy with an improved description and keywords. A
// reply that cannot be parsed leaves the record unchanged; enrichment is
// best-effort and must never lose the original text.
func (e *Enricher) EnrichRecord(ctx context.Context, record dsl.Record) (dsl.Record, error) {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   renderRecordPrompt(record),
		MaxTokens:    400,
	})
	if err != nil {
		return record, fmt.Errorf("enrichment failed for %q: %w", record.Name, err)
	}

	var reply enrichedReply
	if err := jsonutil.ParseReply(resp.Content, &reply); err != nil || strings.TrimSpace(reply.Description) == "" {
		logger.Warn("Enrichment reply unusable, keeping original description",
			zap.String("name", record.Name),
		)
		return record, nil
	}

	record.Description = strings.TrimSpace(reply.Description)
	if len(reply.Keywords) > 0 {
		record.Keywords = dedupeKeywords(reply.Keywords)
	}

	logger.Debug("Record enriched",
		zap.String("name", record.Name),
		zap.Int("keywords", len(record.Keywords)),
	)

	return record, nil
}

// EnrichAll processes records sequentially. One upstream failure aborts the
// run so a partial batch is never mistaken for a complete one.
func (e *Enricher) EnrichAll(ctx context.Context, records []dsl.Record) ([]dsl.Record, error) {
	out := make([]dsl.Record, 0, len(records))
	for _, record := range records {
		enriched, err := e.EnrichRecord(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, enriched)
	}
	return out, nil
}

func renderRecordPrompt(record dsl.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s (%s, %s)\n", record.Name, record.Type, record.ProtocolType())
	fmt.Fprintf(&b, "Current description: %s\n", record.Description)
	if record.QueryTemplate != "" {
		fmt.Fprintf(&b, "Template:\n%s\n", record.QueryTemplate)
	}
	if len(record.Variables) > 0 {
		fmt.Fprintf(&b, "Variables: %s\n", strings.Join(record.Variables, ", "))
	}
	return b.String()
}

func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}
