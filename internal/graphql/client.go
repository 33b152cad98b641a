package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesprial/gqlfetch/internal/config"
)

const (
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a non-2xx body is kept in StatusError.
	maxErrorBody = 512
)

// HTTPClient is a concrete implementation of the Client interface that sends
// GraphQL requests over HTTP.
type HTTPClient struct {
	httpClient  *http.Client
	graphqlURL  string
	bearerToken string
	headers     map[string]string
}

// NewHTTPClient constructs an HTTPClient from the provided ClientConfig.
// It returns an error if cfg.URL is empty. When cfg.Timeout is zero or
// negative, a default timeout of 30 seconds is used.
func NewHTTPClient(cfg config.ClientConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graphql: URL is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint, err := normalizeURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("graphql: invalid URL: %w", err)
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &HTTPClient{
		httpClient:  &http.Client{Timeout: timeout},
		graphqlURL:  endpoint,
		bearerToken: cfg.BearerToken,
		headers:     headers,
	}, nil
}

// URL returns the normalized endpoint the client posts to.
func (c *HTTPClient) URL() string { return c.graphqlURL }

// normalizeURL trims any trailing slash from the path of rawURL and appends
// /graphql if the path does not already end with that suffix. Query and
// fragment are kept.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute URL", rawURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if !strings.HasSuffix(u.Path, "/graphql") {
		u.Path += "/graphql"
	}
	return u.String(), nil
}

// Do sends req and returns the decoded response with transport details.
// Duration covers the whole round trip including body decode.
//
// Do returns a nil Result if the request cannot be built or sent, if the
// server answers 401 or any other non-2xx status, or if the body is not
// JSON. When the body decodes but carries GraphQL errors, Do returns both
// the Result and a *ResponseError.
func (c *HTTPClient) Do(ctx context.Context, gqlReq Request) (*Result, error) {
	bodyBytes, err := json.Marshal(gqlReq)
	if err != nil {
		return nil, fmt.Errorf("graphql: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("graphql: create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graphql: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := strings.TrimSpace(string(raw))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var gqlResp Response
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return nil, fmt.Errorf("graphql: decode response: %w", err)
	}

	result := &Result{
		Response:   gqlResp,
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
		Size:       len(raw),
	}

	if len(gqlResp.Errors) > 0 {
		return result, &ResponseError{Errors: gqlResp.Errors, Data: gqlResp.Data}
	}
	return result, nil
}

// Execute sends a GraphQL query to the configured endpoint and returns the
// raw JSON bytes of the "data" field on success. Variables may be nil, in
// which case the "variables" key is omitted from the request body.
func (c *HTTPClient) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	res, err := c.Do(ctx, Request{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}
	return []byte(res.Response.Data), nil
}
