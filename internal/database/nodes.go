package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

const nodeColumns = `n.id, n.name, n.label, n.kind, n.text, n.properties, n.embedding::real[]`

const (
	upsertNodeSQL = `INSERT INTO {nodes} (id, name, label, kind, text, properties, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::vector)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			label = EXCLUDED.label,
			kind = EXCLUDED.kind,
			text = EXCLUDED.text,
			properties = EXCLUDED.properties,
			embedding = EXCLUDED.embedding,
			updated_at = now()`

	deleteNodeSQL = `DELETE FROM {nodes} WHERE id = $1`

	clearGraphSQL = `TRUNCATE {prels}, {nodes} RESTART IDENTITY`
)

// UpsertNodes inserts or replaces nodes by ID in a single transaction and
// returns the IDs in input order. Missing embeddings are generated with the
// configured provider, if any.
func (dm *DBManager) UpsertNodes(ctx context.Context, projectName string, nodes []apptype.Node) ([]string, error) {
	done := metrics.TimeOp("db_upsert_nodes")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	normalized := make([]apptype.Node, len(nodes))
	for i, n := range nodes {
		n = n.Normalize()
		if !n.Kind.Valid() {
			return nil, invalidArg("node at index %d has unknown kind %q", i, n.Kind)
		}
		if strings.TrimSpace(n.ID) == "" {
			return nil, invalidArg("node at index %d has no id, name or text", i)
		}
		normalized[i] = n
	}
	if err := dm.fillEmbeddings(ctx, p, normalized); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	ids := make([]string, len(normalized))
	for i, n := range normalized {
		vec, err := toVector(n.Embedding, p.dims)
		if err != nil {
			return nil, fmt.Errorf("failed to convert embedding for node %q: %w", n.ID, err)
		}
		batch.Queue(dm.stmt(p, upsertNodeSQL), n.ID, n.Name, n.Label, string(n.Kind), n.Text, n.Properties, vec)
		ids[i] = n.ID
	}
	if len(ids) == 0 {
		success = true
		return ids, nil
	}

	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := execBatch(ctx, tx, batch); err != nil {
		return nil, fmt.Errorf("failed to upsert nodes: %w", mapVectorError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit nodes: %w", err)
	}
	success = true
	return ids, nil
}

// fillEmbeddings generates embeddings for nodes that have none
func (dm *DBManager) fillEmbeddings(ctx context.Context, p *project, nodes []apptype.Node) error {
	provider := dm.embedderFor(p)
	if provider == nil {
		return nil
	}
	inputs := make([]string, 0)
	idxs := make([]int, 0)
	for i, n := range nodes {
		if len(n.Embedding) == 0 && n.EmbeddingInput() != "" {
			inputs = append(inputs, n.EmbeddingInput())
			idxs = append(idxs, i)
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	vecs, err := provider.Embed(ctx, inputs)
	if err != nil {
		return fmt.Errorf("embeddings provider %s failed: %w", provider.Name(), err)
	}
	if len(vecs) != len(inputs) {
		return fmt.Errorf("embeddings provider %s returned %d embeddings for %d inputs", provider.Name(), len(vecs), len(inputs))
	}
	for j, idx := range idxs {
		nodes[idx].Embedding = vecs[j]
	}
	return nil
}

// execBatch sends the batch and checks every queued statement
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// GetNodes returns nodes matching every given filter; no filter returns all nodes
func (dm *DBManager) GetNodes(ctx context.Context, projectName string, filter apptype.NodeFilter) ([]apptype.Node, error) {
	done := metrics.TimeOp("db_get_nodes")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	w := newWhere()
	nodeWhere(w, filter)
	query := "SELECT " + nodeColumns + " FROM {nodes} n" + w.sql("WHERE") + " ORDER BY n.created_at, n.id"
	rows, err := dm.pool.Query(ctx, dm.stmt(p, query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	out := make([]apptype.Node, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			slog.Warn("failed to scan node row", "error", err)
			continue
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

// scanNode reads the nodeColumns projection
func scanNode(row pgx.Row, extra ...any) (apptype.Node, error) {
	var (
		n    apptype.Node
		kind string
	)
	dest := append([]any{&n.ID, &n.Name, &n.Label, &kind, &n.Text, &n.Properties, &n.Embedding}, extra...)
	if err := row.Scan(dest...); err != nil {
		return apptype.Node{}, err
	}
	n.Kind = apptype.NodeKind(kind)
	return n, nil
}

// DeleteNode removes a node; its relations cascade
func (dm *DBManager) DeleteNode(ctx context.Context, projectName, id string) error {
	done := metrics.TimeOp("db_delete_node")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	if _, err := dm.pool.Exec(ctx, dm.stmt(p, deleteNodeSQL), id); err != nil {
		return fmt.Errorf("failed to delete node %q: %w", id, err)
	}
	success = true
	return nil
}

// Clear removes every node and relation of the property store
func (dm *DBManager) Clear(ctx context.Context, projectName string) error {
	done := metrics.TimeOp("db_clear")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	if _, err := dm.pool.Exec(ctx, dm.stmt(p, clearGraphSQL)); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	success = true
	return nil
}
