package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2api/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	client, err := NewClient(dbPath)
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())

	t.Cleanup(func() { client.Close() })

	return client
}

func sampleAskRecord(id string) *models.AskRecord {
	return &models.AskRecord{
		ID:               id,
		UserQuery:        "show me board 42",
		DetectedProtocol: "graphql",
		Confidence:       0.92,
		Reasoning:        "asks for nested board fields",
		GeneratedQuery:   "query ($id: ID!) { board(id: $id) { id title } }",
		LatencyMS:        850,
		CreatedAt:        time.Now(),
	}
}

func TestInsertAndGetAskRecord(t *testing.T) {
	client := newTestClient(t)

	record := sampleAskRecord("ask-1")
	require.NoError(t, client.InsertAskRecord(record))

	got, err := client.GetAskRecord("ask-1")
	require.NoError(t, err)

	assert.Equal(t, record.UserQuery, got.UserQuery)
	assert.Equal(t, record.DetectedProtocol, got.DetectedProtocol)
	assert.Equal(t, record.Confidence, got.Confidence)
	assert.Equal(t, record.GeneratedQuery, got.GeneratedQuery)
	assert.Equal(t, record.LatencyMS, got.LatencyMS)
}

func TestGetAskHistoryOrderAndLimit(t *testing.T) {
	client := newTestClient(t)

	for i, id := range []string{"ask-old", "ask-mid", "ask-new"} {
		record := sampleAskRecord(id)
		record.CreatedAt = time.Now().Add(time.Duration(i) * time.Hour)
		require.NoError(t, client.InsertAskRecord(record))
	}

	records, err := client.GetAskHistory(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ask-new", records[0].ID)
	assert.Equal(t, "ask-mid", records[1].ID)
}

func TestContextSourcesRoundTrip(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertAskRecord(sampleAskRecord("ask-1")))

	require.NoError(t, client.InsertContextSource(&models.ContextSource{
		AskID:        "ask-1",
		Name:         "board",
		ProtocolType: "graphql",
		Preview:      "DSL `board` (query): fetch a single board...",
		Score:        0.12,
	}))

	sources, err := client.GetContextSources("ask-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "board", sources[0].Name)
	assert.Equal(t, "graphql", sources[0].ProtocolType)
}

func TestStoreFeedback(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertAskRecord(sampleAskRecord("ask-1")))

	err := client.StoreFeedback(&models.Feedback{
		ID:      "fb-1",
		AskID:   "ask-1",
		Helpful: true,
		Comment: "exactly the query I needed",
	})
	require.NoError(t, err)
}

func TestStoreFeedbackUnknownAskFails(t *testing.T) {
	client := newTestClient(t)

	err := client.StoreFeedback(&models.Feedback{
		ID:    "fb-1",
		AskID: "missing",
	})
	assert.Error(t, err)
}
