package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
)

const (
	defaultRelMapDepth = 2
	defaultRelMapLimit = 30
	maxRelMapDepth     = 10
)

// relMapBounds applies defaults to non-positive values and caps depth
func relMapBounds(depth, limit int) (int, int) {
	if depth <= 0 {
		depth = defaultRelMapDepth
	}
	if depth > maxRelMapDepth {
		depth = maxRelMapDepth
	}
	if limit <= 0 {
		limit = defaultRelMapLimit
	}
	return depth, limit
}

const (
	upsertEntitySQL = `INSERT INTO {entities} (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	insertTripletSQL = `INSERT INTO {relations} (subject_id, object_id, description) VALUES ($1, $2, $3)
		ON CONFLICT (subject_id, description, object_id) DO NOTHING`

	getTripletsSQL = `SELECT r.description, o.name
		FROM {relations} r
		JOIN {entities} s ON s.id = r.subject_id
		JOIN {entities} o ON o.id = r.object_id
		WHERE s.name = $1
		ORDER BY r.id`

	// walk keeps one row per (root, relation, depth) so dense graphs stay polynomial;
	// ranked lists each relation once per root, at its shallowest depth
	tripletRelMapSQL = `WITH RECURSIVE walk AS (
			SELECT s.name AS root, r.id, r.object_id, 1 AS depth
			FROM {relations} r
			JOIN {entities} s ON s.id = r.subject_id
			WHERE cardinality($1::text[]) = 0 OR s.name = ANY($1::text[])
			UNION
			SELECT w.root, r.id, r.object_id, w.depth + 1
			FROM walk w
			JOIN {relations} r ON r.subject_id = w.object_id
			WHERE w.depth < $2
		), hops AS (
			SELECT root, id, MIN(depth) AS depth FROM walk GROUP BY root, id
		), ranked AS (
			SELECT root, id, depth, row_number() OVER (PARTITION BY root ORDER BY depth, id) AS rn
			FROM hops
		)
		SELECT k.root, s.name, r.description, o.name
		FROM ranked k
		JOIN {relations} r ON r.id = k.id
		JOIN {entities} s ON s.id = r.subject_id
		JOIN {entities} o ON o.id = r.object_id
		WHERE k.rn <= $3
		ORDER BY k.root, k.depth, k.id`

	deleteTripletSQL = `DELETE FROM {relations} r
		USING {entities} s, {entities} o
		WHERE r.subject_id = s.id AND r.object_id = o.id
			AND s.name = $1 AND r.description = $2 AND o.name = $3`

	deleteOrphanEntitiesSQL = `DELETE FROM {entities} e
		WHERE e.name = ANY($1::text[])
			AND NOT EXISTS (SELECT 1 FROM {relations} r WHERE r.subject_id = e.id OR r.object_id = e.id)`

	clearTripletsSQL = `TRUNCATE {relations}, {entities} RESTART IDENTITY`
)

// UpsertTriplet stores subject -[relation]-> object, creating entities as needed.
// Re-adding an existing triplet is a no-op.
func (dm *DBManager) UpsertTriplet(ctx context.Context, projectName, subject, relation, object string) error {
	done := metrics.TimeOp("db_upsert_triplet")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(subject) == "" || strings.TrimSpace(relation) == "" || strings.TrimSpace(object) == "" {
		return invalidArg("subject, relation and object must be non-empty")
	}
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}

	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var subjectID, objectID int64
	if err := tx.QueryRow(ctx, dm.stmt(p, upsertEntitySQL), subject).Scan(&subjectID); err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", subject, err)
	}
	if err := tx.QueryRow(ctx, dm.stmt(p, upsertEntitySQL), object).Scan(&objectID); err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", object, err)
	}
	if _, err := tx.Exec(ctx, dm.stmt(p, insertTripletSQL), subjectID, objectID, relation); err != nil {
		return fmt.Errorf("failed to insert relation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit triplet: %w", err)
	}
	success = true
	return nil
}

// GetSubjectTriplets returns [relation, object] pairs for the subject in insertion order
func (dm *DBManager) GetSubjectTriplets(ctx context.Context, projectName, subject string) ([][2]string, error) {
	done := metrics.TimeOp("db_get_subject_triplets")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	rows, err := dm.pool.Query(ctx, dm.stmt(p, getTripletsSQL), subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query triplets: %w", err)
	}
	defer rows.Close()

	out := make([][2]string, 0)
	for rows.Next() {
		var rel, obj string
		if err := rows.Scan(&rel, &obj); err != nil {
			slog.Warn("failed to scan triplet row", "error", err)
			continue
		}
		out = append(out, [2]string{rel, obj})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

// GetTripletRelMap returns, per subject, the [subject, relation, object] paths
// reachable within depth hops, shallowest first and at most limit per subject.
// No subjects means every entity with outgoing relations.
func (dm *DBManager) GetTripletRelMap(ctx context.Context, projectName string, subjects []string, depth, limit int) (map[string][][3]string, error) {
	done := metrics.TimeOp("db_get_triplet_rel_map")
	success := false
	defer func() { done(success) }()

	depth, limit = relMapBounds(depth, limit)
	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	rows, err := dm.pool.Query(ctx, dm.stmt(p, tripletRelMapSQL), nonNil(subjects), depth, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation map: %w", err)
	}
	defer rows.Close()

	relMap := make(map[string][][3]string)
	for rows.Next() {
		var root, subj, rel, obj string
		if err := rows.Scan(&root, &subj, &rel, &obj); err != nil {
			slog.Warn("failed to scan relation map row", "error", err)
			continue
		}
		relMap[root] = append(relMap[root], [3]string{subj, rel, obj})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return relMap, nil
}

// DeleteTriplet removes the relation and any of its two entities left without relations
func (dm *DBManager) DeleteTriplet(ctx context.Context, projectName, subject, relation, object string) error {
	done := metrics.TimeOp("db_delete_triplet")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	tx, err := dm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, dm.stmt(p, deleteTripletSQL), subject, relation, object); err != nil {
		return fmt.Errorf("failed to delete triplet: %w", err)
	}
	if _, err := tx.Exec(ctx, dm.stmt(p, deleteOrphanEntitiesSQL), []string{subject, object}); err != nil {
		return fmt.Errorf("failed to delete orphaned entities: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	success = true
	return nil
}

// ClearTriplets removes every entity and relation of the basic store
func (dm *DBManager) ClearTriplets(ctx context.Context, projectName string) error {
	done := metrics.TimeOp("db_clear_triplets")
	success := false
	defer func() { done(success) }()

	p, err := dm.getProject(ctx, projectName)
	if err != nil {
		return err
	}
	if _, err := dm.pool.Exec(ctx, dm.stmt(p, clearTripletsSQL)); err != nil {
		return fmt.Errorf("failed to clear triplets: %w", err)
	}
	success = true
	return nil
}
