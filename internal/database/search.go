package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

const defaultTopK = 10

// VectorQuery returns the nodes closest to the query embedding by cosine
// distance with score = 1 - distance. When no embedding is given, QueryText is
// embedded with the configured provider.
func (dm *DBManager) VectorQuery(ctx context.Context, projectName string, q apptype.VectorQuery) ([]apptype.ScoredNode, error) {
	done := metrics.TimeOp("db_vector_query")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	embedding := q.Embedding
	if len(embedding) == 0 && strings.TrimSpace(q.QueryText) != "" {
		provider := dm.embedderFor(p)
		if provider == nil {
			return nil, invalidArg("queryText requires an embeddings provider")
		}
		vecs, err := provider.Embed(ctx, []string{q.QueryText})
		if err != nil {
			return nil, fmt.Errorf("embeddings provider %s failed: %w", provider.Name(), err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embeddings provider %s returned %d embeddings for 1 input", provider.Name(), len(vecs))
		}
		embedding = vecs[0]
	}
	if len(embedding) == 0 {
		return nil, invalidArg("vector query needs an embedding or query text")
	}
	vec, err := toVector(embedding, p.dims)
	if err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	w := newWhere(vec)
	w.add("n.embedding IS NOT NULL")
	nodeWhere(w, apptype.NodeFilter{IDs: q.NodeIDs, Properties: q.Properties})
	limit := w.arg(topK)
	query := "SELECT " + nodeColumns + ", 1 - (n.embedding <=> $1::vector) AS score FROM {nodes} n" +
		w.sql("WHERE") + " ORDER BY n.embedding <=> $1::vector LIMIT " + limit

	rows, err := dm.pool.Query(ctx, dm.stmt(p, query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector query: %w", mapVectorError(err))
	}
	defer rows.Close()

	out := make([]apptype.ScoredNode, 0, topK)
	for rows.Next() {
		var score float64
		n, err := scanNode(rows, &score)
		if err != nil {
			slog.Warn("failed to scan vector result row", "error", err)
			continue
		}
		out = append(out, apptype.ScoredNode{Node: n, Score: finiteScore(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to run vector query: %w", mapVectorError(err))
	}
	success = true
	return out, nil
}

// VectorSearch accepts either query text or a slice-like embedding, as sent by tool clients
func (dm *DBManager) VectorSearch(ctx context.Context, projectName string, query interface{}, topK int, nodeIDs []string, properties map[string]any) ([]apptype.ScoredNode, error) {
	q := apptype.VectorQuery{TopK: topK, NodeIDs: nodeIDs, Properties: properties}
	switch v := query.(type) {
	case string:
		q.QueryText = v
	case nil:
		return nil, invalidArg("query is required")
	default:
		vec, ok, err := coerceToFloat32Slice(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEmbedding, err)
		}
		if !ok {
			return nil, invalidArg("unsupported query type %T", query)
		}
		q.Embedding = vec
	}
	return dm.VectorQuery(ctx, projectName, q)
}
