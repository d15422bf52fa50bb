package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

const (
	// hops keeps each relation once, at the shallowest depth it was reached
	relMapSQL = `WITH RECURSIVE walk AS (
			SELECT r.id, r.target_id, 1 AS depth
			FROM {prels} r
			WHERE r.source_id = ANY($1::text[]) AND NOT (r.label = ANY($3::text[]))
			UNION
			SELECT r.id, r.target_id, w.depth + 1
			FROM walk w
			JOIN {prels} r ON r.source_id = w.target_id
			WHERE w.depth < $2 AND NOT (r.label = ANY($3::text[]))
		), hops AS (
			SELECT id, MIN(depth) AS depth FROM walk GROUP BY id
		)
		SELECT ` + tripletColumns + `
		FROM hops h
		JOIN {prels} r ON r.id = h.id
		JOIN {nodes} s ON s.id = r.source_id
		JOIN {nodes} t ON t.id = r.target_id
		ORDER BY h.depth, r.id
		LIMIT $4`

	nodeLabelCountsSQL = `SELECT label, count(*) FROM {nodes} GROUP BY label ORDER BY label`

	relationPatternsSQL = `SELECT s.label, r.label, t.label, count(*)` + tripletFrom + `
		GROUP BY s.label, r.label, t.label
		ORDER BY s.label, r.label, t.label`
)

// GetRelMap returns the triplets reachable from the given node IDs following
// relation direction within depth hops, skipping ignoreRels labels. Results are
// ordered by depth and capped at limit.
func (dm *DBManager) GetRelMap(ctx context.Context, projectName string, nodeIDs []string, depth, limit int, ignoreRels []string) ([]apptype.Triplet, error) {
	done := metrics.TimeOp("db_get_rel_map")
	success := false
	defer func() { done(success) }()

	depth, limit = relMapBounds(depth, limit)
	if len(nodeIDs) == 0 {
		success = true
		return []apptype.Triplet{}, nil
	}
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	rows, err := dm.pool.Query(ctx, dm.stmt(p, relMapSQL), nodeIDs, depth, nonNil(ignoreRels), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation map: %w", err)
	}
	defer rows.Close()

	out, err := collectTriplets(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

// GetSchema summarises node labels and (source, relation, target) label patterns
func (dm *DBManager) GetSchema(ctx context.Context, projectName string) (apptype.GraphSchema, error) {
	done := metrics.TimeOp("db_get_schema")
	success := false
	defer func() { done(success) }()

	schema := apptype.GraphSchema{
		NodeLabels:       []apptype.LabelCount{},
		RelationPatterns: []apptype.RelationPattern{},
	}
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return schema, err
	}

	rows, err := dm.pool.Query(ctx, dm.stmt(p, nodeLabelCountsSQL))
	if err != nil {
		return schema, fmt.Errorf("failed to query node labels: %w", err)
	}
	for rows.Next() {
		var lc apptype.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			slog.Warn("failed to scan label row", "error", err)
			continue
		}
		schema.NodeLabels = append(schema.NodeLabels, lc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return schema, err
	}

	rows, err = dm.pool.Query(ctx, dm.stmt(p, relationPatternsSQL))
	if err != nil {
		return schema, fmt.Errorf("failed to query relation patterns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rp apptype.RelationPattern
		if err := rows.Scan(&rp.SourceLabel, &rp.RelationLabel, &rp.TargetLabel, &rp.Count); err != nil {
			slog.Warn("failed to scan relation pattern row", "error", err)
			continue
		}
		schema.RelationPatterns = append(schema.RelationPatterns, rp)
	}
	if err := rows.Err(); err != nil {
		return schema, err
	}
	success = true
	return schema, nil
}

// SchemaString renders a schema for prompts and logs
func SchemaString(schema apptype.GraphSchema) string {
	var b strings.Builder
	b.WriteString("Node labels:\n")
	for _, l := range schema.NodeLabels {
		fmt.Fprintf(&b, "  %s (%d)\n", l.Label, l.Count)
	}
	b.WriteString("Relationships:\n")
	for _, rp := range schema.RelationPatterns {
		fmt.Fprintf(&b, "  (:%s)-[:%s]->(:%s) (%d)\n", rp.SourceLabel, rp.RelationLabel, rp.TargetLabel, rp.Count)
	}
	return b.String()
}
