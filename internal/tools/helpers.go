// Package tools provides shared helper utilities for MCP tool handlers.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamesprial/gqlfetch/internal/safety"
	"github.com/mark3labs/mcp-go/mcp"
)

// JSONResult marshals v to indented JSON and returns an mcp.CallToolResult.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error marshaling result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// RawJSONResult re-indents already-encoded JSON. Input that is not valid
// JSON yields an error result.
func RawJSONResult(raw []byte) *mcp.CallToolResult {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return ErrorResult(fmt.Sprintf("invalid JSON result: %v", err))
	}
	return mcp.NewToolResultText(buf.String())
}

// ErrorResult returns an mcp.CallToolResult that describes an error condition.
func ErrorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("error: %s", msg))
}

// LogAudit logs a tool invocation to the audit logger, silently ignoring a
// nil logger. A nil err records outcome "ok".
func LogAudit(audit *safety.AuditLogger, toolName string, params map[string]any, err error, start time.Time) {
	if audit == nil {
		return
	}
	entry := safety.AuditEntry{
		Timestamp: start,
		Tool:      toolName,
		Params:    params,
		Outcome:   "ok",
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Outcome = "error"
		entry.Error = err.Error()
	}
	_ = audit.Log(entry)
}
