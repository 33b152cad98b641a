package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamesprial/gqlfetch/internal/safety"
	"github.com/jamesprial/gqlfetch/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const toolNameGraphQLQuery = "graphql_query"

// GraphQLTools returns the tool registrations backed by client. It exposes a
// single "graphql_query" tool.
func GraphQLTools(client Client, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		toolGraphQLQuery(client, audit),
	}
}

// toolGraphQLQuery constructs the graphql_query Registration.
func toolGraphQLQuery(client Client, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool(toolNameGraphQLQuery,
		mcp.WithDescription("Execute a GraphQL query against the users API and return its data field."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The GraphQL query string to execute, e.g. { users { name kind } }."),
		),
		mcp.WithString("variables",
			mcp.Description("Optional JSON object string of variables to pass with the query."),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		query := req.GetString("query", "")
		variablesStr := req.GetString("variables", "")

		params := map[string]any{
			"query":     query,
			"variables": variablesStr,
		}

		if err := ValidateQuery(query); err != nil {
			tools.LogAudit(audit, toolNameGraphQLQuery, params, err, start)
			return tools.ErrorResult(err.Error()), nil
		}

		var parsedVars map[string]any
		if variablesStr != "" {
			if err := json.Unmarshal([]byte(variablesStr), &parsedVars); err != nil {
				err = fmt.Errorf("parse variables JSON: %w", err)
				tools.LogAudit(audit, toolNameGraphQLQuery, params, err, start)
				return tools.ErrorResult(err.Error()), nil
			}
		}

		data, err := client.Execute(ctx, query, parsedVars)
		if err != nil {
			tools.LogAudit(audit, toolNameGraphQLQuery, params, err, start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolNameGraphQLQuery, params, nil, start)
		return tools.RawJSONResult(data), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
