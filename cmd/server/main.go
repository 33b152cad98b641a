// Package main is the entry point for the local users GraphQL server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jamesprial/gqlfetch/internal/config"
	"github.com/jamesprial/gqlfetch/internal/graphql"
	"github.com/jamesprial/gqlfetch/internal/logging"
	"github.com/jamesprial/gqlfetch/internal/metrics"
	"github.com/jamesprial/gqlfetch/internal/safety"
	"github.com/jamesprial/gqlfetch/internal/schema"
	"github.com/jamesprial/gqlfetch/internal/server"
	"github.com/jamesprial/gqlfetch/internal/tools"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, cfgErr := config.Load()
	logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Warn("could not load config, using defaults", "error", cfgErr)
	}

	tokenBefore := cfg.Server.AuthToken
	token, err := config.EnsureAuthToken(cfg)
	if err != nil {
		logger.Warn("could not generate auth token, /mcp runs without authentication", "error", err)
	} else if tokenBefore == "" {
		logger.Info("generated MCP auth token (set GQLFETCH_AUTH_TOKEN to persist)", "token", token)
	}

	handler, cleanup, err := buildHandler(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-stop:
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildHandler wires the executor, metrics and MCP tools behind one handler.
// cleanup closes the audit log; on error everything opened is already closed.
func buildHandler(cfg *config.Config, logger *slog.Logger) (_ http.Handler, _ func(), err error) {
	closeAudit := func() {}

	// Open audit log writer if enabled.
	var auditLogger *safety.AuditLogger
	if cfg.Audit.Enabled {
		al, closer, openErr := safety.OpenAuditLog(cfg.Audit.LogPath)
		if openErr != nil {
			logger.Warn("audit logging disabled", "error", openErr)
		} else {
			auditLogger = al
			closeAudit = func() {
				if err := closer.Close(); err != nil {
					logger.Warn("close audit log", "error", err)
				}
			}
		}
	}
	defer func() {
		if err != nil {
			closeAudit()
		}
	}()

	var filterOpts []safety.FilterOption
	if cfg.Fetch.AllowPrivate {
		filterOpts = append(filterOpts, safety.AllowPrivateNetworks())
	}
	filter := safety.NewHostFilter(cfg.Fetch.Allowlist, cfg.Fetch.Denylist, filterOpts...)
	store := schema.NewStore(schema.DefaultUsers(), schema.NewFetcher(filter, 0))
	exec, err := schema.NewExecutor(store)
	if err != nil {
		return nil, nil, fmt.Errorf("build executor: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	mcpServer := mcpserver.NewMCPServer(
		"gqlfetch",
		"1.0.0",
		mcpserver.WithToolCapabilities(false),
	)
	if err := tools.RegisterAll(mcpServer, graphql.GraphQLTools(schema.NewLocalClient(exec), auditLogger)); err != nil {
		return nil, nil, fmt.Errorf("register MCP tools: %w", err)
	}

	handler, err := server.NewHandler(server.Options{
		Executor:       exec,
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		MCPHandler:     mcpserver.NewStreamableHTTPServer(mcpServer),
		AuthToken:      cfg.Server.AuthToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build handler: %w", err)
	}
	return handler, closeAudit, nil
}
