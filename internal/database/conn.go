package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

// openPool parses the connection string and applies pool tuning from config
func openPool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(NormalizeConnectionString(config.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection string: %v", ErrDatabaseUnavailable, err)
	}
	if config.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MinConns > 0 {
		poolCfg.MinConns = int32(config.MinConns)
	}
	if config.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(config.ConnMaxIdleSec) * time.Second
	}
	if config.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(config.ConnMaxLifeSec) * time.Second
	}
	if config.Echo {
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(logSQL),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	return pool, nil
}

// logSQL forwards pgx trace output to slog
func logSQL(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	lvl := slog.LevelInfo
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		lvl = slog.LevelDebug
	case tracelog.LogLevelWarn:
		lvl = slog.LevelWarn
	case tracelog.LogLevelError:
		lvl = slog.LevelError
	}
	// statements are echoed at info so PG_ECHO works without lowering the global level
	if lvl == slog.LevelDebug {
		lvl = slog.LevelInfo
	}
	slog.LogAttrs(ctx, lvl, "pgx: "+msg, attrs...)
}

// checkAvailability verifies the server answers and the vector type is usable
func checkAvailability(ctx context.Context, pool *pgxpool.Pool) error {
	done := metrics.TimeOp("db_check_availability")
	success := false
	defer func() { done(success) }()

	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: failed to create vector extension: %v", ErrDatabaseUnavailable, err)
	}
	var vec string
	if err := pool.QueryRow(ctx, "SELECT '[1]'::vector::text").Scan(&vec); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	success = true
	return nil
}

// getProject returns the initialised project, creating its tables if necessary
func (dm *DBManager) getProject(ctx context.Context, projectName string) (*project, error) {
	if projectName == "" {
		if dm.config.MultiProjectMode {
			return nil, invalidArg("project name cannot be empty in multi-project mode")
		}
		projectName = defaultProject
	}

	dm.mu.RLock()
	p, ok := dm.projects[projectName]
	dm.mu.RUnlock()
	if ok {
		return p, nil
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	// Double-check if another goroutine initialised the project while we were waiting for the lock
	if p, ok := dm.projects[projectName]; ok {
		return p, nil
	}

	p = newProject(projectName, dm.config)
	if err := dm.initialize(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to initialize database for project %s: %w", projectName, err)
	}
	dm.projects[projectName] = p

	dm.stmtMu.Lock()
	if _, ok := dm.stmtCache[projectName]; !ok {
		dm.stmtCache[projectName] = make(map[string]string)
	}
	dm.stmtMu.Unlock()

	metrics.Default().ObservePoolStats(dm.PoolStats())
	return p, nil
}

// initialize creates the project schema, tables and indexes if they don't exist
func (dm *DBManager) initialize(ctx context.Context, p *project) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()

	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if p.schema != defaultSchema {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{p.schema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", p.schema, err)
		}
	}
	if dm.config.DropExisting {
		for _, stmt := range dropStatements(p) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop existing tables: %w", err)
			}
		}
	}

	// Reconcile embedding dims with an existing node table to avoid env drift
	if dbDims := detectEmbeddingDims(ctx, tx, p); dbDims > 0 && dbDims != p.dims {
		slog.Warn("embedding dims mismatch, adopting database dims",
			"project", p.name, "db", dbDims, "config", p.dims)
		p.dims = dbDims
	}

	for _, stmt := range schemaStatements(p, dm.Capabilities().HNSW) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit initialization: %w", err)
	}
	success = true
	return nil
}

// detectEmbeddingDims reads the declared width of the embedding column, 0 if unknown
func detectEmbeddingDims(ctx context.Context, tx pgx.Tx, p *project) int {
	var dims int32
	err := tx.QueryRow(ctx, `SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped`,
		p.qualified(p.nodeTable)).Scan(&dims)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("failed to detect embedding dims", "project", p.name, "error", err)
		}
		return 0
	}
	if dims <= 0 {
		return 0
	}
	return int(dims)
}

// EmbeddingDims returns the embedding width in use for a project, which may
// differ from the configured value when an existing table was adopted
func (dm *DBManager) EmbeddingDims(ctx context.Context, projectName string) (int, error) {
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return 0, err
	}
	return p.dims, nil
}

// PoolStats returns the number of acquired and idle connections
func (dm *DBManager) PoolStats() (inUse int, idle int) {
	s := dm.pool.Stat()
	return int(s.AcquiredConns()), int(s.IdleConns())
}

// Ping checks the pool can reach the server
func (dm *DBManager) Ping(ctx context.Context) error {
	if err := dm.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	return nil
}
