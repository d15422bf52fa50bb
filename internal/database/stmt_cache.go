package database

import (
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

// stmt returns the SQL template rendered for the project's tables, caching the
// result per project. pgx keeps its own server-side prepared statement cache
// keyed by the rendered text.
func (dm *DBManager) stmt(p *project, tmpl string) string {
	// fast path read
	dm.stmtMu.RLock()
	if projCache, ok := dm.stmtCache[p.name]; ok {
		if sqlText, ok2 := projCache[tmpl]; ok2 {
			dm.stmtMu.RUnlock()
			metrics.Default().IncStmtCacheHit("render")
			return sqlText
		}
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss("render")

	sqlText := p.render(tmpl)
	dm.stmtMu.Lock()
	if _, ok := dm.stmtCache[p.name]; !ok {
		dm.stmtCache[p.name] = make(map[string]string)
	}
	dm.stmtCache[p.name][tmpl] = sqlText
	dm.stmtMu.Unlock()
	return sqlText
}
