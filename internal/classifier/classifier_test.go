package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/llm"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func TestClassifyParsesValidReply(t *testing.T) {
	fake := &fakeCompleter{reply: `{"protocol": "rest", "reasoning": "simple list fetch", "confidence": 0.9}`}
	c := New(fake)

	result, err := c.Classify(context.Background(), "모든 시나리오 목록을 가져와주세요")
	require.NoError(t, err)
	assert.Equal(t, dsl.ProtocolREST, result.Protocol)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "simple list fetch", result.Reasoning)
	assert.False(t, result.Fallback)
	assert.Equal(t, 1, fake.calls)
}

func TestClassifyHandlesCodeFencedReply(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n{\"protocol\": \"graphql\", \"reasoning\": \"nested relations\", \"confidence\": 0.8}\n```"}
	c := New(fake)

	result, err := c.Classify(context.Background(), "보드와 관련 시나리오를 함께 조회")
	require.NoError(t, err)
	assert.Equal(t, dsl.ProtocolGraphQL, result.Protocol)
	assert.False(t, result.Fallback)
}

func TestClassifyFallbackOnGarbage(t *testing.T) {
	fake := &fakeCompleter{reply: "I think GraphQL would be a great fit here!"}
	c := New(fake)

	result, err := c.Classify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, dsl.ProtocolGraphQL, result.Protocol)
	assert.Equal(t, 0.5, result.Confidence)
	assert.True(t, result.Fallback)
	assert.NotEmpty(t, result.Reasoning)
}

func TestClassifyFallbackOnUnknownProtocol(t *testing.T) {
	fake := &fakeCompleter{reply: `{"protocol": "soap", "confidence": 0.99}`}
	c := New(fake)

	result, err := c.Classify(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, dsl.ProtocolGraphQL, result.Protocol)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestClassifyClampsConfidence(t *testing.T) {
	cases := []struct {
		reply string
		want  float64
	}{
		{`{"protocol": "rest", "confidence": 1.7}`, 1.0},
		{`{"protocol": "rest", "confidence": -0.2}`, 0.0},
		{`{"protocol": "rest", "confidence": 0.42}`, 0.42},
	}

	for _, tc := range cases {
		c := New(&fakeCompleter{reply: tc.reply})
		result, err := c.Classify(context.Background(), "list scenarios")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
		assert.Equal(t, tc.want, result.Confidence)
	}
}

func TestClassifyPropagatesUpstreamFailure(t *testing.T) {
	boom := errors.New("rate limited")
	c := New(&fakeCompleter{err: boom})

	_, err := c.Classify(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
}
