package schema

import (
	"context"

	"github.com/jamesprial/gqlfetch/internal/graphql"
)

// LocalClient runs queries in-process and satisfies graphql.Client, so the
// MCP tool can share the server's executor without an HTTP round trip.
type LocalClient struct {
	exec *Executor
}

var _ graphql.Client = (*LocalClient)(nil)

// NewLocalClient wraps exec.
func NewLocalClient(exec *Executor) *LocalClient {
	return &LocalClient{exec: exec}
}

// Execute returns the data field, or a *graphql.ResponseError carrying any
// partial data when the response holds errors.
func (c *LocalClient) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	resp, _ := c.exec.Execute(ctx, Params{Query: query, Variables: variables})
	if len(resp.Errors) > 0 {
		return nil, &graphql.ResponseError{Errors: resp.Errors, Data: resp.Data}
	}
	return []byte(resp.Data), nil
}
