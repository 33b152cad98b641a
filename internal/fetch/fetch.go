// Package fetch runs a single timed GraphQL request and prints its data.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jamesprial/gqlfetch/internal/graphql"
)

// Doer sends one GraphQL request. *graphql.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req graphql.Request) (*graphql.Result, error)
}

// Options describes the request to send and how to print the result.
type Options struct {
	Query         string
	Variables     map[string]any
	OperationName string
	// SkipValidation sends the query without a local syntax check.
	SkipValidation bool
	// Compact prints data on one line instead of indented.
	Compact bool
}

// Run sends the request, logs the elapsed time as a "fetch" record, and
// writes the response's data field to stdout. The elapsed time is logged
// whether or not the request succeeds.
//
// When the server answers with GraphQL errors, each is logged, the partial
// data is still printed, and the *graphql.ResponseError is returned.
func Run(ctx context.Context, client Doer, opts Options, stdout io.Writer, logger *slog.Logger) error {
	if !opts.SkipValidation {
		if err := graphql.ValidateQuery(opts.Query); err != nil {
			return err
		}
	}

	start := time.Now()
	res, err := client.Do(ctx, graphql.Request{
		Query:         opts.Query,
		Variables:     opts.Variables,
		OperationName: opts.OperationName,
	})
	elapsed := time.Since(start)

	attrs := []any{"duration", elapsed}
	if res != nil {
		attrs = append(attrs, "status", res.StatusCode, "bytes", res.Size)
	}
	logger.Info("fetch", attrs...)

	var respErr *graphql.ResponseError
	if err != nil && !errors.As(err, &respErr) {
		return err
	}

	if respErr != nil {
		for _, ge := range respErr.Errors {
			logger.Warn("graphql error", "message", ge.Message, "path", ge.Path)
		}
	}

	var data json.RawMessage
	switch {
	case res != nil:
		data = res.Response.Data
	case respErr != nil:
		data = respErr.Data
	}

	if werr := printData(stdout, data, opts.Compact); werr != nil {
		return werr
	}
	return err
}

func printData(w io.Writer, data json.RawMessage, compact bool) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	var buf bytes.Buffer
	var err error
	if compact {
		err = json.Compact(&buf, data)
	} else {
		err = json.Indent(&buf, data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("format data: %w", err)
	}
	buf.WriteByte('\n')

	_, err = w.Write(buf.Bytes())
	return err
}
