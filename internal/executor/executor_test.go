package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nl2api/backend/internal/synthesizer"
)

func TestExecuteGraphQL(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"board": {"id": "42"}}}`))
	}))
	defer server.Close()

	e := New(server.URL, "", 5*time.Second)

	resp, err := e.ExecuteGraphQL(context.Background(), "query ($id: ID!) { board(id: $id) { id } }", map[string]interface{}{"id": "42"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data": {"board": {"id": "42"}}}`, string(resp.Body))
	assert.Equal(t, "query ($id: ID!) { board(id: $id) { id } }", gotBody["query"])
}

func TestExecuteRESTBuildsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/scenarios", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "token", r.Header.Get("X-Api-Key"))

		w.Write([]byte(`[{"id": "s1"}]`))
	}))
	defer server.Close()

	e := New("", server.URL, 5*time.Second)

	resp, err := e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{
		Method:  "get",
		URL:     "scenarios",
		Params:  map[string]string{"limit": "10"},
		Headers: map[string]string{"X-Api-Key": "token"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id": "s1"}]`, string(resp.Body))
}

func TestExecuteRESTPostsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "demo", body["name"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "s2"}`))
	}))
	defer server.Close()

	e := New("", server.URL, 5*time.Second)

	resp, err := e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{
		Method: "POST",
		URL:    "/scenarios",
		Body:   map[string]interface{}{"name": "demo"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestExecuteRESTUpstreamErrorStatusIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))
	defer server.Close()

	e := New("", server.URL, 5*time.Second)

	resp, err := e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{Method: "GET", URL: "/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteNotConfigured(t *testing.T) {
	e := New("", "", 0)

	_, err := e.ExecuteGraphQL(context.Background(), "query { boards { id } }", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{Method: "GET", URL: "/x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExecuteRESTRejectsUnusableRequest(t *testing.T) {
	e := New("", "http://localhost:1", time.Second)

	_, err := e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{
		Error: "generated request could not be parsed",
		Raw:   "sorry",
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestExecuteWrapsNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text reply"))
	}))
	defer server.Close()

	e := New("", server.URL, 5*time.Second)

	resp, err := e.ExecuteREST(context.Background(), &synthesizer.GeneratedRequest{Method: "GET", URL: "/text"})
	require.NoError(t, err)

	var wrapped string
	require.NoError(t, json.Unmarshal(resp.Body, &wrapped))
	assert.Equal(t, "plain text reply", wrapped)
}
