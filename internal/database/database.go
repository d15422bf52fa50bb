package database

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/embeddings"
)

const defaultProject = "default"

// DBManager handles all database operations. It owns one connection pool and
// lazily initialises the tables of each project on first use.
type DBManager struct {
	config   *Config
	pool     *pgxpool.Pool
	provider embeddings.Provider

	mu       sync.RWMutex
	projects map[string]*project

	stmtMu    sync.RWMutex
	stmtCache map[string]map[string]string

	capMu sync.RWMutex
	caps  capFlags
}

// NewDBManager connects to PostgreSQL, verifies pgvector is usable and, in
// single-project mode, initialises the default project.
func NewDBManager(ctx context.Context, config *Config) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > maxEmbeddingDims {
		return nil, invalidArg("EMBEDDING_DIMS must be between 1 and %d inclusive, got %d", maxEmbeddingDims, config.EmbeddingDims)
	}
	pool, err := openPool(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := checkAvailability(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	manager := &DBManager{
		config:    config,
		pool:      pool,
		projects:  make(map[string]*project),
		stmtCache: make(map[string]map[string]string),
	}
	manager.detectCapabilities(ctx)
	if p := embeddings.NewFromEnv(); p != nil {
		manager.SetProvider(p)
	}

	// If not in multi-project mode, initialize the default project immediately
	if !config.MultiProjectMode {
		if _, err := manager.getProject(ctx, defaultProject); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize default project: %w", err)
		}
	}
	return manager, nil
}

// SetProvider installs the embeddings provider used to fill missing node
// embeddings and to embed query text. A nil provider disables generation.
func (dm *DBManager) SetProvider(p embeddings.Provider) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.provider = p
}

// embedderFor returns the provider adapted to the project's vector width
func (dm *DBManager) embedderFor(p *project) embeddings.Provider {
	dm.mu.RLock()
	base := dm.provider
	dm.mu.RUnlock()
	if base == nil {
		return nil
	}
	if base.Dimensions() != p.dims {
		return embeddings.WrapToDims(base, p.dims, os.Getenv("EMBEDDINGS_ADAPT_MODE"))
	}
	return base
}

// Config returns the configuration the manager was built with
func (dm *DBManager) Config() Config {
	return *dm.config
}

// Close releases the connection pool
func (dm *DBManager) Close() error {
	dm.pool.Close()
	return nil
}
