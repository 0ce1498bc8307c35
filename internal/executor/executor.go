// Package executor sends generated queries to the configured upstream APIs
// and returns the raw responses.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/metrics"
	"github.com/nl2api/backend/internal/synthesizer"
	"github.com/nl2api/backend/pkg/logger"
)

// ErrNotConfigured is returned when no upstream endpoint is set; execution
// is an optional feature.
var ErrNotConfigured = errors.New("upstream endpoint not configured")

// Response carries the upstream reply without interpretation. Body is the
// raw payload; callers decide how to render it.
type Response struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

type Executor struct {
	graphqlURL  string
	restBaseURL string
	client      *http.Client
}

func New(graphqlURL, restBaseURL string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{
		graphqlURL:  graphqlURL,
		restBaseURL: strings.TrimRight(restBaseURL, "/"),
		client:      &http.Client{Timeout: timeout},
	}
}

// ExecuteGraphQL posts the query with variables to the GraphQL endpoint.
func (e *Executor) ExecuteGraphQL(ctx context.Context, query string, variables map[string]interface{}) (*Response, error) {
	if e.graphqlURL == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphql payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return e.send(req, "graphql")
}

// ExecuteREST turns a generated request into an HTTP call against the REST
// base URL. A request that carries a parse-failure payload is rejected.
func (e *Executor) ExecuteREST(ctx context.Context, genReq *synthesizer.GeneratedRequest) (*Response, error) {
	if e.restBaseURL == "" {
		return nil, ErrNotConfigured
	}
	if genReq == nil || genReq.Error != "" || genReq.Method == "" || genReq.URL == "" {
		return nil, fmt.Errorf("generated request is not executable")
	}

	target, err := e.buildRESTURL(genReq)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(genReq.Body) > 0 {
		payload, err := json.Marshal(genReq.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(genReq.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build rest request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range genReq.Headers {
		req.Header.Set(key, value)
	}

	return e.send(req, "rest")
}

func (e *Executor) buildRESTURL(genReq *synthesizer.GeneratedRequest) (string, error) {
	path := genReq.URL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target, err := url.Parse(e.restBaseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", genReq.URL, err)
	}

	if len(genReq.Params) > 0 {
		q := target.Query()
		for key, value := range genReq.Params {
			q.Set(key, value)
		}
		target.RawQuery = q.Encode()
	}

	return target.String(), nil
}

func (e *Executor) send(req *http.Request, protocol string) (*Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		metrics.UpstreamExecutions.WithLabelValues(protocol, "error").Inc()
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		metrics.UpstreamExecutions.WithLabelValues(protocol, "error").Inc()
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	status := "success"
	if resp.StatusCode >= 400 {
		status = "upstream_error"
	}
	metrics.UpstreamExecutions.WithLabelValues(protocol, status).Inc()

	logger.Info("Upstream request executed",
		zap.String("protocol", protocol),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
	)

	if !json.Valid(data) {
		// Non-JSON upstream replies are wrapped so Response stays renderable.
		data, _ = json.Marshal(string(data))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}
