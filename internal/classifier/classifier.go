// Package classifier decides whether an utterance is best served by a
// GraphQL query or a REST request.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/llm"
	"github.com/nl2api/backend/pkg/jsonutil"
	"github.com/nl2api/backend/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Result is a tagged variant: Fallback marks the documented default used
// when the LLM reply could not be parsed.
type Result struct {
	Protocol   string  `json:"protocol"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Fallback   bool    `json:"-"`
}

// TrustworthyConfidence is the threshold above which a classification is
// labelled trustworthy in metrics. Below it the pipeline still proceeds.
const TrustworthyConfidence = 0.7

const systemPrompt = `You decide which API protocol fits a natural-language request. The request may be in Korean or English.

Decision criteria:
- graphql: complex data reads, nested relations, fetching several related entities in one round trip, type-system driven selection
- rest: simple CRUD, resource-centric actions, standard HTTP method semantics

Respond with JSON only:
{"protocol": "graphql|rest", "reasoning": "why", "confidence": 0.0-1.0}`

type Classifier struct {
	llm Completer
}

func New(llm Completer) *Classifier {
	return &Classifier{llm: llm}
}

// Classify issues a single LLM call, no retry beyond the transport layer.
// A malformed reply is recovered into the fallback result; only upstream
// provider failures are returned as errors.
func (c *Classifier) Classify(ctx context.Context, utterance string) (Result, error) {
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("User request: %s", utterance),
		MaxTokens:    300,
	})
	if err != nil {
		return Result{}, fmt.Errorf("protocol classification failed: %w", err)
	}

	var parsed Result
	if err := jsonutil.ParseReply(resp.Content, &parsed); err != nil {
		logger.Warn("Classification reply was not parseable, using fallback",
			zap.Error(err),
			zap.String("reply", resp.Content),
		)
		return fallbackResult(), nil
	}

	if parsed.Protocol != dsl.ProtocolGraphQL && parsed.Protocol != dsl.ProtocolREST {
		logger.Warn("Classification returned unknown protocol, using fallback",
			zap.String("protocol", parsed.Protocol),
		)
		return fallbackResult(), nil
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	logger.Debug("Protocol classified",
		zap.String("protocol", parsed.Protocol),
		zap.Float64("confidence", parsed.Confidence),
	)

	return parsed, nil
}

func fallbackResult() Result {
	return Result{
		Protocol:   dsl.ProtocolGraphQL,
		Confidence: 0.5,
		Reasoning:  "fallback: classification reply could not be parsed",
		Fallback:   true,
	}
}
