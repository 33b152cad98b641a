// Package server exposes the users schema over HTTP: the GraphQL endpoint,
// a GraphiQL page, Prometheus metrics, and the MCP tool endpoint.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/gqlfetch/internal/auth"
	"github.com/jamesprial/gqlfetch/internal/graphql"
	"github.com/jamesprial/gqlfetch/internal/metrics"
	"github.com/jamesprial/gqlfetch/internal/schema"
)

const maxRequestBody = 1 << 20

// Options configures NewHandler. Executor is required; the rest are
// optional and their routes are omitted when nil.
type Options struct {
	Executor *schema.Executor
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// MetricsHandler serves /metrics.
	MetricsHandler http.Handler
	// MCPHandler serves /mcp behind AuthToken.
	MCPHandler http.Handler
	AuthToken  string
}

type handler struct {
	exec    *schema.Executor
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler builds the HTTP handler with CORS, access logging and request
// metrics applied to every route.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("server: executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{exec: opts.Executor, logger: logger, metrics: opts.Metrics}

	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", h.handleGraphQL)
	mux.HandleFunc("/graphiql", handleGraphiQL)
	mux.HandleFunc("/{$}", handleHome)
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}
	if opts.MCPHandler != nil {
		mux.Handle("/mcp", auth.NewAuthMiddleware(opts.AuthToken)(opts.MCPHandler))
	}

	return withCORS(h.instrument(mux)), nil
}

func (h *handler) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var params schema.Params
	switch r.Method {
	case http.MethodGet:
		p, err := paramsFromQuery(r)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		params = p
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeRequestError(w, fmt.Errorf("invalid JSON body: %w", err))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if params.Query == "" {
		writeRequestError(w, fmt.Errorf("query is required"))
		return
	}

	start := time.Now()
	resp, opType := h.exec.Execute(r.Context(), params)
	elapsed := time.Since(start)
	h.metrics.ObserveOperation(string(opType), len(resp.Errors) > 0, elapsed)

	if len(resp.Errors) > 0 {
		h.logger.Debug("graphql errors",
			"operation", params.OperationName,
			"errors", len(resp.Errors),
			"first", resp.Errors[0].Message,
		)
	}

	status := http.StatusOK
	if resp.Data == nil {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func paramsFromQuery(r *http.Request) (schema.Params, error) {
	q := r.URL.Query()
	p := schema.Params{
		Query:         q.Get("query"),
		OperationName: q.Get("operationName"),
	}
	if raw := q.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Variables); err != nil {
			return p, fmt.Errorf("invalid variables: %w", err)
		}
	}
	return p, nil
}

func writeRequestError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, schema.Response{
		Errors: []graphql.GraphQLError{{Message: err.Error()}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
