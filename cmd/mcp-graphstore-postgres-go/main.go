package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/server"
)

var (
	databaseURL   = flag.String("database-url", "", "PostgreSQL connection string (default: $POSTGRES_CONNECTION_STRING or $DATABASE_URL)")
	schema        = flag.String("schema", "", "Schema of the default project (default: public)")
	projectPrefix = flag.String("projects-schema-prefix", "", "Schema prefix for projects. Enables multi-project mode.")
	embeddingDims = flag.Int("embedding-dims", 0, "Embedding dimensionality (default: $EMBEDDING_DIMS or 1536)")
	dropExisting  = flag.Bool("drop-existing", false, "Drop existing tables on startup")
	echo          = flag.Bool("echo", false, "Log every SQL statement")
	transport     = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr          = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint   = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
	logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn or error")
)

func main() {
	flag.Parse()

	// stdout carries the stdio transport, so logs go to stderr
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database configuration
	config := database.NewConfig()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Override with command line flags if provided
	if *databaseURL != "" {
		config.ConnectionString = *databaseURL
	}
	if *schema != "" {
		config.Schema = *schema
	}
	if *projectPrefix != "" {
		config.ProjectsSchemaPrefix = *projectPrefix
		config.MultiProjectMode = true
	}
	if *embeddingDims > 0 {
		config.EmbeddingDims = *embeddingDims
	}
	if *dropExisting {
		config.DropExisting = true
	}
	if *echo {
		config.Echo = true
	}

	db, err := database.NewDBManager(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	mcpServer := server.NewMCPServer(db)

	slog.Info("starting MCP graph store server",
		"version", buildinfo.Version,
		"transport", *transport,
		"multiProject", config.MultiProjectMode,
		"embeddingDims", config.EmbeddingDims)

	g, gctx := errgroup.WithContext(ctx)
	switch *transport {
	case "stdio":
		g.Go(func() error { return mcpServer.Run(gctx) })
	case "sse":
		g.Go(func() error { return mcpServer.RunSSE(gctx, *addr, *sseEndpoint) })
	default:
		return fmt.Errorf("unknown transport: %s (expected: stdio or sse)", *transport)
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
