package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2api/backend/internal/classifier"
	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/internal/storage/models"
	"github.com/nl2api/backend/internal/synthesizer"
	"github.com/nl2api/backend/internal/vector/milvus"
)

type fakeClassifier struct {
	result classifier.Result
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (classifier.Result, error) {
	return f.result, f.err
}

type fakeRetriever struct {
	docs         []milvus.SearchResult
	err          error
	lastProtocol string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, protocolType string) ([]milvus.SearchResult, error) {
	f.lastProtocol = protocolType
	return f.docs, f.err
}

type fakeSynthesizer struct {
	result *synthesizer.Result
	err    error
	calls  int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _, _ string, _ []milvus.SearchResult) (*synthesizer.Result, error) {
	f.calls++
	return f.result, f.err
}

type memoryHistory struct {
	records []*models.AskRecord
	sources []*models.ContextSource
}

func (m *memoryHistory) InsertAskRecord(record *models.AskRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memoryHistory) InsertContextSource(source *models.ContextSource) error {
	m.sources = append(m.sources, source)
	return nil
}

type memoryResultCache struct {
	data map[string]*GenerationResult
	hits int
}

func (m *memoryResultCache) GetResult(_ context.Context, hash string, result interface{}) (bool, error) {
	cached, ok := m.data[hash]
	if !ok {
		return false, nil
	}
	m.hits++
	*result.(*GenerationResult) = *cached
	return true, nil
}

func (m *memoryResultCache) SetResult(_ context.Context, hash string, result interface{}, _ time.Duration) error {
	m.data[hash] = result.(*GenerationResult)
	return nil
}

func graphqlClassification() classifier.Result {
	return classifier.Result{
		Protocol:   dsl.ProtocolGraphQL,
		Confidence: 0.9,
		Reasoning:  "requests nested board fields",
	}
}

func boardDoc() milvus.SearchResult {
	return milvus.SearchResult{
		Name:         "board",
		ProtocolType: dsl.ProtocolGraphQL,
		Content:      "DSL `board` (query): fetch a single board by id\nQuery:\nquery ($id: ID!) { board(id: $id) { ... } }",
		Score:        0.12,
	}
}

func TestAskGraphQLEndToEnd(t *testing.T) {
	retriever := &fakeRetriever{docs: []milvus.SearchResult{boardDoc()}}
	history := &memoryHistory{}
	p := New(
		&fakeClassifier{result: graphqlClassification()},
		retriever,
		&fakeSynthesizer{result: &synthesizer.Result{
			Protocol: dsl.ProtocolGraphQL,
			Query:    "query ($id: ID!) { board(id: $id) { id title } }",
		}},
		history,
		nil,
	)

	result, err := p.Ask(context.Background(), "42번 게시판을 보여주세요")
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, dsl.ProtocolGraphQL, result.DetectedProtocol)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Contains(t, result.GeneratedQuery, "board(id: $id)")
	assert.Nil(t, result.GeneratedRequest)
	assert.Empty(t, result.Message)

	assert.Equal(t, dsl.ProtocolGraphQL, retriever.lastProtocol)

	require.Len(t, result.ContextSources, 1)
	assert.Equal(t, "board", result.ContextSources[0].Name)

	require.Len(t, history.records, 1)
	assert.Equal(t, result.ID, history.records[0].ID)
	require.Len(t, history.sources, 1)
}

func TestAskRESTCarriesGeneratedRequest(t *testing.T) {
	p := New(
		&fakeClassifier{result: classifier.Result{Protocol: dsl.ProtocolREST, Confidence: 0.8}},
		&fakeRetriever{docs: []milvus.SearchResult{{Name: "listScenarios", ProtocolType: dsl.ProtocolREST, Content: "GET /scenarios"}}},
		&fakeSynthesizer{result: &synthesizer.Result{
			Protocol: dsl.ProtocolREST,
			Request:  &synthesizer.GeneratedRequest{Method: "GET", URL: "/scenarios"},
		}},
		nil,
		nil,
	)

	result, err := p.Ask(context.Background(), "list all scenarios")
	require.NoError(t, err)

	require.NotNil(t, result.GeneratedRequest)
	assert.Equal(t, "GET", result.GeneratedRequest.Method)
	assert.Empty(t, result.GeneratedQuery)
}

func TestAskEmptyRetrievalSkipsSynthesis(t *testing.T) {
	synth := &fakeSynthesizer{}
	history := &memoryHistory{}
	p := New(
		&fakeClassifier{result: graphqlClassification()},
		&fakeRetriever{},
		synth,
		history,
		nil,
	)

	result, err := p.Ask(context.Background(), "order a pizza")
	require.NoError(t, err)

	assert.Equal(t, 0, synth.calls)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, result.GeneratedQuery)
	assert.Nil(t, result.GeneratedRequest)

	// No-context asks are still recorded.
	require.Len(t, history.records, 1)
	assert.Equal(t, result.Message, history.records[0].Message)
}

func TestAskClassifierFailurePropagates(t *testing.T) {
	boom := errors.New("provider down")
	p := New(&fakeClassifier{err: boom}, &fakeRetriever{}, &fakeSynthesizer{}, nil, nil)

	_, err := p.Ask(context.Background(), "list boards")
	assert.ErrorIs(t, err, boom)
}

func TestAskRetrievalFailurePropagates(t *testing.T) {
	boom := errors.New("milvus unavailable")
	p := New(
		&fakeClassifier{result: graphqlClassification()},
		&fakeRetriever{err: boom},
		&fakeSynthesizer{},
		nil,
		nil,
	)

	_, err := p.Ask(context.Background(), "list boards")
	assert.ErrorIs(t, err, boom)
}

func TestAskSynthesisFailurePropagates(t *testing.T) {
	boom := errors.New("rate limited")
	p := New(
		&fakeClassifier{result: graphqlClassification()},
		&fakeRetriever{docs: []milvus.SearchResult{boardDoc()}},
		&fakeSynthesizer{err: boom},
		nil,
		nil,
	)

	_, err := p.Ask(context.Background(), "list boards")
	assert.ErrorIs(t, err, boom)
}

func TestAskUsesResultCache(t *testing.T) {
	synth := &fakeSynthesizer{result: &synthesizer.Result{Protocol: dsl.ProtocolGraphQL, Query: "query { boards { id } }"}}
	cache := &memoryResultCache{data: make(map[string]*GenerationResult)}
	p := New(
		&fakeClassifier{result: graphqlClassification()},
		&fakeRetriever{docs: []milvus.SearchResult{boardDoc()}},
		synth,
		nil,
		cache,
	)

	first, err := p.Ask(context.Background(), "list all boards")
	require.NoError(t, err)
	second, err := p.Ask(context.Background(), "list all boards")
	require.NoError(t, err)

	assert.Equal(t, 1, synth.calls)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.ID, second.ID)
}

func TestContextSourcePreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	sources := toContextSources([]milvus.SearchResult{{Name: "board", Content: long}})

	require.Len(t, sources, 1)
	assert.Len(t, []rune(sources[0].Preview), previewLength+3)
	assert.True(t, strings.HasSuffix(sources[0].Preview, "..."))
}
