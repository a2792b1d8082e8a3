// Package openstates fetches bills from the OpenStates GraphQL API.
package openstates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/worker"
)

// maxResponseBytes bounds one GraphQL response
const maxResponseBytes = 10 * 1024 * 1024

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
	Query     string         `json:"query"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Client executes GraphQL queries against the OpenStates endpoint
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	userAgent  string
	limiter    *worker.Limiter
}

// NewClient creates a new GraphQL client. limiter may be nil.
func NewClient(httpClient *http.Client, endpoint, apiKey, userAgent string, limiter *worker.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		userAgent:  userAgent,
		limiter:    limiter,
	}
}

// Execute sends one query and returns the raw data object.
//
// Errors: model.ErrAuth for a missing or rejected key (401/403),
// model.ErrRateLimit on 429, model.ErrFetch for everything else.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, fmt.Errorf("%w: OpenStates API key is not set", model.ErrAuth)
	}

	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFetch, err)
	}

	body, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", model.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", model.ErrFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", model.ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", model.ErrFetch, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: OpenStates rejected the API key (HTTP %d)", model.ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: OpenStates returned HTTP 429 (retry after %q)", model.ErrRateLimit, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %d: %s", model.ErrFetch, resp.StatusCode, snippet(respBody))
	}

	var gqlResp GraphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", model.ErrFetch, err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %s", model.ErrFetch, gqlResp.Errors[0].Message)
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil, fmt.Errorf("%w: no data in response", model.ErrFetch)
	}

	return gqlResp.Data, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// pingQuery is the cheapest query that still requires a valid key
const pingQuery = `query { jurisdictions(first: 1) { edges { node { id } } } }`

// Ping verifies the endpoint is reachable and the key is accepted
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, pingQuery, nil)
	return err
}
