package llm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/nl2api/backend/internal/metrics"
)

func TestRecordTokenUsage(t *testing.T) {
	promptBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-3.5-turbo", "prompt"))
	completionBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-3.5-turbo", "completion"))

	recordTokenUsage("gpt-3.5-turbo", 120, 45)

	assert.Equal(t, promptBefore+120, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-3.5-turbo", "prompt")))
	assert.Equal(t, completionBefore+45, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-3.5-turbo", "completion")))
}

func TestRecordTokenUsageEmbeddingCall(t *testing.T) {
	promptBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("text-embedding-3-small", "prompt"))
	completionBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("text-embedding-3-small", "completion"))

	recordTokenUsage("text-embedding-3-small", 30, 0)

	assert.Equal(t, promptBefore+30, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("text-embedding-3-small", "prompt")))
	assert.Equal(t, completionBefore, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("text-embedding-3-small", "completion")))
}
