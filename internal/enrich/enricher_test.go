package enrich

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
	replies []string
	err     error
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return &llm.CompletionResponse{Content: reply}, nil
}

func boardRecord() dsl.Record {
	return dsl.Record{
		Name:        "board",
		Type:        dsl.CategoryQuery,
		Description: "board query",
		Variables:   []string{"id"},
	}
}

func TestEnrichRecordRewritesDescription(t *testing.T) {
	completer := &fakeCompleter{replies: []string{
		`{"description": "Fetches a single board with its posts by board id.", "keywords": ["board", "게시판", "fetch board"]}`,
	}}
	e := New(completer)

	enriched, err := e.EnrichRecord(context.Background(), boardRecord())
	require.NoError(t, err)

	assert.Equal(t, "Fetches a single board with its posts by board id.", enriched.Description)
	assert.Equal(t, []string{"board", "게시판", "fetch board"}, enriched.Keywords)
	// Everything else is untouched.
	assert.Equal(t, "board", enriched.Name)
	assert.Equal(t, []string{"id"}, enriched.Variables)
}

func TestEnrichRecordKeepsOriginalOnBadReply(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"I would describe this operation as follows..."}}
	e := New(completer)

	original := boardRecord()
	enriched, err := e.EnrichRecord(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, original, enriched)
}

func TestEnrichRecordKeepsOriginalOnEmptyDescription(t *testing.T) {
	completer := &fakeCompleter{replies: []string{`{"description": "  ", "keywords": ["board"]}`}}
	e := New(completer)

	original := boardRecord()
	enriched, err := e.EnrichRecord(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, original.Description, enriched.Description)
}

func TestEnrichRecordUpstreamFailure(t *testing.T) {
	boom := errors.New("rate limited")
	e := New(&fakeCompleter{err: boom})

	_, err := e.EnrichRecord(context.Background(), boardRecord())
	assert.ErrorIs(t, err, boom)
}

func TestEnrichAllAbortsOnFailure(t *testing.T) {
	boom := errors.New("provider down")
	e := New(&fakeCompleter{err: boom})

	_, err := e.EnrichAll(context.Background(), []dsl.Record{boardRecord(), boardRecord()})
	assert.ErrorIs(t, err, boom)
}

func TestDedupeKeywords(t *testing.T) {
	out := dedupeKeywords([]string{"Board", "board", " 게시판 ", "", "게시판"})
	assert.Equal(t, []string{"Board", "게시판"}, out)
}
