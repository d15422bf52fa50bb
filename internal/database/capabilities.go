package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
)

// hnswMinVersion is the first pgvector release with HNSW indexes
const hnswMinVersion = ">= 0.5.0"

// capFlags stores what the connected server's pgvector supports
type capFlags struct {
	checked         bool
	pgvectorVersion string
	hnsw            bool
}

// Capabilities reports the detected pgvector features
type Capabilities struct {
	PgvectorVersion string
	HNSW            bool
}

// detectCapabilities reads the installed pgvector version and records flags
func (dm *DBManager) detectCapabilities(ctx context.Context) {
	dm.capMu.RLock()
	checked := dm.caps.checked
	dm.capMu.RUnlock()
	if checked {
		return
	}

	ctx2, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var version string
	err := dm.pool.QueryRow(ctx2, "SELECT extversion FROM pg_extension WHERE extname = 'vector'").Scan(&version)
	caps := capFlags{checked: true}
	if err != nil {
		slog.Warn("failed to detect pgvector version", "error", err)
	} else {
		caps.pgvectorVersion = version
		caps.hnsw = supportsHNSW(version)
	}

	dm.capMu.Lock()
	dm.caps = caps
	dm.capMu.Unlock()
}

// supportsHNSW reports whether the pgvector version can build HNSW indexes
func supportsHNSW(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(hnswMinVersion)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// Capabilities returns the detected pgvector features
func (dm *DBManager) Capabilities() Capabilities {
	dm.capMu.RLock()
	defer dm.capMu.RUnlock()
	return Capabilities{PgvectorVersion: dm.caps.pgvectorVersion, HNSW: dm.caps.hnsw}
}
