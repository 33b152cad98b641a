// Package graphql provides a GraphQL HTTP client and the graphql_query MCP
// tool built on top of it.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the endpoint answers HTTP 401.
var ErrUnauthorized = errors.New("graphql: authentication failed (HTTP 401)")

// Location is a line/column position inside a GraphQL document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents a single error returned in a GraphQL response.
type GraphQLError struct {
	Message   string     `json:"message"`
	Locations []Location `json:"locations,omitempty"`
	Path      []any      `json:"path,omitempty"`
}

// Request is the JSON body shape of a GraphQL HTTP request.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is the JSON body shape of a GraphQL HTTP response.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// Result is a decoded response together with transport details.
type Result struct {
	Response   Response
	StatusCode int
	Duration   time.Duration
	Size       int
}

// StatusError reports a non-2xx HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql: unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql: unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// ResponseError reports GraphQL-level errors. Data holds whatever partial
// result the server sent alongside them.
type ResponseError struct {
	Errors []GraphQLError
	Data   json.RawMessage
}

func (e *ResponseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// Client defines the interface for executing GraphQL queries.
type Client interface {
	Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}
