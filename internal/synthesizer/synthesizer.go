// Package synthesizer renders the retrieval context into a protocol-specific
// prompt and extracts a query or request from the LLM reply.
package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/llm"
	"github.com/nl2api/backend/internal/vector/milvus"
	"github.com/nl2api/backend/pkg/jsonutil"
	"github.com/nl2api/backend/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// GeneratedRequest is the structured REST output. On a parse failure Error
// is set and Raw preserves the reply verbatim; the pair is mutually
// exclusive with a usable Method/URL.
type GeneratedRequest struct {
	Method  string                 `json:"method,omitempty"`
	URL     string                 `json:"url,omitempty"`
	Headers map[string]string      `json:"headers,omitempty"`
	Params  map[string]string      `json:"params,omitempty"`
	Body    map[string]interface{} `json:"body,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Raw     string                 `json:"raw,omitempty"`
}

type Result struct {
	Protocol string
	Query    string
	Request  *GeneratedRequest
}

// contextLimit bounds how many retrieved documents feed the prompt.
const contextLimit = 3

const graphqlSystemPrompt = `You are a GraphQL expert assistant. You will receive DSL schema skeletons with variable definitions and a user instruction.
Write a valid GraphQL query or mutation that satisfies the instruction.
Requirements:
1. Valid GraphQL syntax
2. Select only the fields the request needs
3. Use the declared variables with proper arguments
Reply with the GraphQL query only, no extra explanation.`

const restSystemPrompt = `You are a REST API expert assistant. You will receive OpenAPI operation descriptions and a user instruction.
Construct the HTTP request that satisfies the instruction.
Reply with JSON only, in this exact shape:
{"method": "GET|POST|PUT|DELETE|PATCH", "url": "/path", "headers": {}, "params": {}, "body": {}}`

type Synthesizer struct {
	llm Completer
}

func New(llm Completer) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize always produces a textual or structural result for LLM output
// problems; only upstream provider failures are returned as errors.
func (s *Synthesizer) Synthesize(ctx context.Context, utterance, protocolType string, docs []milvus.SearchResult) (*Result, error) {
	contextBlock := buildContext(docs)

	if protocolType == dsl.ProtocolREST {
		req, err := s.synthesizeREST(ctx, utterance, contextBlock)
		if err != nil {
			return nil, err
		}
		return &Result{Protocol: protocolType, Request: req}, nil
	}

	query, err := s.synthesizeGraphQL(ctx, utterance, contextBlock)
	if err != nil {
		return nil, err
	}
	return &Result{Protocol: dsl.ProtocolGraphQL, Query: query}, nil
}

func (s *Synthesizer) synthesizeGraphQL(ctx context.Context, utterance, contextBlock string) (string, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: graphqlSystemPrompt,
		UserPrompt:   renderUserPrompt("GraphQL schema information", contextBlock, utterance),
	})
	if err != nil {
		return "", fmt.Errorf("graphql synthesis failed: %w", err)
	}

	query := stripCodeFence(resp.Content)

	logger.Debug("GraphQL query synthesized", zap.Int("length", len(query)))

	return query, nil
}

func (s *Synthesizer) synthesizeREST(ctx context.Context, utterance, contextBlock string) (*GeneratedRequest, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: restSystemPrompt,
		UserPrompt:   renderUserPrompt("OpenAPI operation information", contextBlock, utterance),
	})
	if err != nil {
		return nil, fmt.Errorf("rest synthesis failed: %w", err)
	}

	raw := strings.TrimSpace(resp.Content)

	var req GeneratedRequest
	if err := jsonutil.ParseReply(raw, &req); err != nil || req.Method == "" || req.URL == "" {
		logger.Warn("REST reply was not a usable request, preserving raw text",
			zap.String("reply", raw),
		)
		return &GeneratedRequest{
			Error: "generated request could not be parsed",
			Raw:   raw,
		}, nil
	}

	req.Method = strings.ToUpper(req.Method)

	return &req, nil
}

func buildContext(docs []milvus.SearchResult) string {
	limit := len(docs)
	if limit > contextLimit {
		limit = contextLimit
	}

	parts := make([]string, 0, limit)
	for _, doc := range docs[:limit] {
		parts = append(parts, doc.Content)
	}

	return strings.Join(parts, "\n\n")
}

func renderUserPrompt(contextLabel, contextBlock, utterance string) string {
	return fmt.Sprintf("## %s\n%s\n\n## User request (Korean or English)\n%s", contextLabel, contextBlock, utterance)
}

// stripCodeFence unwraps replies of the form ```graphql ... ```.
func stripCodeFence(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// The first line may name the language.
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, " {(") {
			s = s[idx+1:]
		}
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}

	return strings.TrimSpace(s)
}
