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

const (
	// endpoints that were never upserted become bare entity nodes named by their id
	placeholderNodeSQL = `INSERT INTO {nodes} (id, name, label, kind) VALUES ($1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	upsertRelationSQL = `INSERT INTO {prels} (label, source_id, target_id, properties)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (source_id, target_id, label) DO UPDATE SET properties = EXCLUDED.properties`

	deleteRelationSQL = `DELETE FROM {prels} WHERE source_id = $1 AND target_id = $2 AND label = $3`

	tripletColumns = `s.id, s.name, s.label, s.kind, s.text, s.properties,
		r.label, r.properties,
		t.id, t.name, t.label, t.kind, t.text, t.properties`

	tripletFrom = ` FROM {prels} r
		JOIN {nodes} s ON s.id = r.source_id
		JOIN {nodes} t ON t.id = r.target_id`
)

// UpsertRelations inserts relations or replaces the properties of existing ones.
// Missing endpoints are created as placeholder entity nodes.
func (dm *DBManager) UpsertRelations(ctx context.Context, projectName string, relations []apptype.Relation) error {
	done := metrics.TimeOp("db_upsert_relations")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, r := range relations {
		if strings.TrimSpace(r.Label) == "" || strings.TrimSpace(r.SourceID) == "" || strings.TrimSpace(r.TargetID) == "" {
			return invalidArg("relation at index %d needs label, sourceId and targetId", i)
		}
		props := r.Properties
		if props == nil {
			props = map[string]any{}
		}
		batch.Queue(dm.stmt(p, placeholderNodeSQL), r.SourceID, apptype.DefaultEntityLabel, string(apptype.KindEntity))
		batch.Queue(dm.stmt(p, placeholderNodeSQL), r.TargetID, apptype.DefaultEntityLabel, string(apptype.KindEntity))
		batch.Queue(dm.stmt(p, upsertRelationSQL), r.Label, r.SourceID, r.TargetID, props)
	}
	if batch.Len() == 0 {
		success = true
		return nil
	}

	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := execBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to upsert relations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit relations: %w", err)
	}
	success = true
	return nil
}

// DeleteRelation removes the relation identified by source, target and label
func (dm *DBManager) DeleteRelation(ctx context.Context, projectName string, rel apptype.Relation) error {
	done := metrics.TimeOp("db_delete_relation")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	if _, err := dm.pool.Exec(ctx, dm.stmt(p, deleteRelationSQL), rel.SourceID, rel.TargetID, rel.Label); err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}
	success = true
	return nil
}

// GetTriplets returns triplets matching every given filter; no filter returns all
func (dm *DBManager) GetTriplets(ctx context.Context, projectName string, filter apptype.TripletFilter) ([]apptype.Triplet, error) {
	done := metrics.TimeOp("db_get_triplets")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	w := newWhere()
	tripletWhere(w, filter)
	query := "SELECT " + tripletColumns + tripletFrom + w.sql("WHERE") + " ORDER BY r.id"
	rows, err := dm.pool.Query(ctx, dm.stmt(p, query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triplets: %w", err)
	}
	defer rows.Close()

	out, err := collectTriplets(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

// collectTriplets reads rows projected with tripletColumns
func collectTriplets(rows pgx.Rows) ([]apptype.Triplet, error) {
	out := make([]apptype.Triplet, 0)
	for rows.Next() {
		var t apptype.Triplet
		var sourceKind, targetKind string
		err := rows.Scan(
			&t.Source.ID, &t.Source.Name, &t.Source.Label, &sourceKind, &t.Source.Text, &t.Source.Properties,
			&t.Relation.Label, &t.Relation.Properties,
			&t.Target.ID, &t.Target.Name, &t.Target.Label, &targetKind, &t.Target.Text, &t.Target.Properties,
		)
		if err != nil {
			slog.Warn("failed to scan triplet row", "error", err)
			continue
		}
		t.Source.Kind = apptype.NodeKind(sourceKind)
		t.Target.Kind = apptype.NodeKind(targetKind)
		t.Relation.SourceID = t.Source.ID
		t.Relation.TargetID = t.Target.ID
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes nodes by name, id or properties and relations by label or
// properties. Each filter applies on its own; relations of deleted nodes cascade.
func (dm *DBManager) Delete(ctx context.Context, projectName string, filter apptype.TripletFilter) error {
	done := metrics.TimeOp("db_delete")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	if len(filter.EntityNames) > 0 {
		batch.Queue(dm.stmt(p, `DELETE FROM {nodes} WHERE name = ANY($1::text[])`), filter.EntityNames)
	}
	if len(filter.IDs) > 0 {
		batch.Queue(dm.stmt(p, `DELETE FROM {nodes} WHERE id = ANY($1::text[])`), filter.IDs)
	}
	if len(filter.RelationNames) > 0 {
		batch.Queue(dm.stmt(p, `DELETE FROM {prels} WHERE label = ANY($1::text[])`), filter.RelationNames)
	}
	if len(filter.Properties) > 0 {
		batch.Queue(dm.stmt(p, `DELETE FROM {prels} WHERE properties @> $1::jsonb`), filter.Properties)
		batch.Queue(dm.stmt(p, `DELETE FROM {nodes} WHERE properties @> $1::jsonb`), filter.Properties)
	}
	if batch.Len() == 0 {
		success = true
		return nil
	}

	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := execBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	success = true
	return nil
}
