// Package main is the entry point for the gqlfetch command, which sends one
// GraphQL query and prints the data it returns.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/jamesprial/gqlfetch/internal/config"
	"github.com/jamesprial/gqlfetch/internal/fetch"
	"github.com/jamesprial/gqlfetch/internal/graphql"
	"github.com/jamesprial/gqlfetch/internal/logging"
)

// usageError marks failures caused by bad flags or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "gqlfetch:", err)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		url           string
		query         string
		variables     string
		operationName string
		timeout       int
		noValidate    bool
		compact       bool
	)

	cmd := &cobra.Command{
		Use:   "gqlfetch",
		Short: "Send one GraphQL query and print its data",
		Long: `gqlfetch POSTs a GraphQL query to an endpoint, logs how long the
round trip took, and prints the response's data field to stdout.

Defaults come from GQLFETCH_CONFIG_PATH (YAML), then GQLFETCH_* environment
variables, then flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgErr := config.Load()
			logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)
			if cfgErr != nil {
				logger.Warn("using default config", "error", cfgErr)
			}

			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.Client.URL = url
			}
			if flags.Changed("query") {
				cfg.Client.Query = query
			}
			if flags.Changed("timeout") {
				cfg.Client.Timeout = timeout
			}

			var vars map[string]any
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &vars); err != nil {
					logger.Error("invalid --variables", "error", err)
					return usageError{fmt.Errorf("parse variables JSON: %w", err)}
				}
			}

			client, err := graphql.NewHTTPClient(cfg.Client)
			if err != nil {
				logger.Error("invalid client config", "error", err)
				return usageError{err}
			}
			logger.Debug("sending query", "url", client.URL())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = fetch.Run(ctx, client, fetch.Options{
				Query:          cfg.Client.Query,
				Variables:      vars,
				OperationName:  operationName,
				SkipValidation: noValidate,
				Compact:        compact,
			}, cmd.OutOrStdout(), logger)
			if err != nil {
				logger.Error("fetch failed", "error", err)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "", "GraphQL endpoint (default from config: http://127.0.0.1:8080/graphql)")
	f.StringVarP(&query, "query", "q", "", "query to send (default from config: { users{name} })")
	f.StringVar(&variables, "variables", "", "JSON object of query variables")
	f.StringVar(&operationName, "operation", "", "operation name, for documents with several operations")
	f.IntVar(&timeout, "timeout", 0, "request timeout in seconds")
	f.BoolVar(&noValidate, "no-validate", false, "skip the local query syntax check")
	f.BoolVar(&compact, "compact", false, "print data on a single line")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	return cmd
}
