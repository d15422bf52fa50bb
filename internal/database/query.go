package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

// Query runs raw SQL against the project and returns each row as a slice of
// column values. The placeholders {entities}, {relations}, {nodes} and {prels}
// expand to the project's qualified table names.
func (dm *DBManager) Query(ctx context.Context, projectName, query string, args ...any) ([][]any, error) {
	done := metrics.TimeOp("db_query")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(query) == "" {
		return nil, invalidArg("query must be non-empty")
	}
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	rows, err := dm.pool.Query(ctx, p.render(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	out := make([][]any, 0)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	success = true
	return out, nil
}

// StructuredQuery runs raw SQL like Query and returns rows keyed by column name
func (dm *DBManager) StructuredQuery(ctx context.Context, projectName, query string, args ...any) ([]map[string]any, error) {
	done := metrics.TimeOp("db_structured_query")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(query) == "" {
		return nil, invalidArg("query must be non-empty")
	}
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	rows, err := dm.pool.Query(ctx, p.render(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to collect rows: %w", err)
	}
	success = true
	return out, nil
}

// TableNames returns the qualified table names of a project
func (dm *DBManager) TableNames(ctx context.Context, projectName string) (map[string]string, error) {
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"entities":  p.qualified(p.entityTable),
		"relations": p.qualified(p.relationTable),
		"nodes":     p.qualified(p.nodeTable),
		"prels":     p.qualified(p.propRelTable),
	}, nil
}
