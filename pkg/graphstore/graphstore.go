// Package graphstore is the library API over the PostgreSQL graph stores.
// A GraphStore keeps plain subject-relation-object triplets; a
// PropertyGraphStore keeps labelled nodes and relations with properties and
// pgvector embeddings. Each store is bound to one project.
package graphstore

import (
	"context"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
)

const defaultProject = "default"

// store holds what both store kinds share
type store struct {
	db         *database.DBManager
	project    string
	rawQueries bool
}

func open(ctx context.Context, opts ...Option) (store, error) {
	o := newOptions(opts...)
	db, err := database.NewDBManager(ctx, o.cfg)
	if err != nil {
		return store{}, err
	}
	if o.provider != nil {
		db.SetProvider(o.provider)
	}
	return store{db: db, project: o.project, rawQueries: o.rawQueries}, nil
}

// Project returns the project the store is bound to
func (s *store) Project() string { return s.project }

// Close releases the connection pool
func (s *store) Close() error { return s.db.Close() }

// GraphStore is a basic triplet store.
type GraphStore struct {
	store
}

// NewGraphStore connects to PostgreSQL and prepares the triplet tables.
func NewGraphStore(ctx context.Context, opts ...Option) (*GraphStore, error) {
	s, err := open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GraphStore{store: s}, nil
}

// UpsertTriplet stores a fact; storing it again is a no-op.
func (g *GraphStore) UpsertTriplet(ctx context.Context, subject, relation, object string) error {
	return g.db.UpsertTriplet(ctx, g.project, subject, relation, object)
}

// Get returns [relation, object] pairs for subject in insertion order.
func (g *GraphStore) Get(ctx context.Context, subject string) ([][2]string, error) {
	return g.db.GetSubjectTriplets(ctx, g.project, subject)
}

// GetRelMap expands subjects to their [subject, relation, object] paths.
// No subjects expands every subject with outgoing relations.
func (g *GraphStore) GetRelMap(ctx context.Context, subjects []string, depth, limit int) (map[string][][3]string, error) {
	return g.db.GetTripletRelMap(ctx, g.project, subjects, depth, limit)
}

// Delete removes a fact and any entity it leaves without relations.
func (g *GraphStore) Delete(ctx context.Context, subject, relation, object string) error {
	return g.db.DeleteTriplet(ctx, g.project, subject, relation, object)
}

// Query runs raw SQL. {entities} and {relations} expand to the store's tables.
func (g *GraphStore) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	if !g.rawQueries {
		return nil, ErrRawQueriesDisabled
	}
	return g.db.Query(ctx, g.project, sql, args...)
}

// Clear removes every triplet.
func (g *GraphStore) Clear(ctx context.Context) error {
	return g.db.ClearTriplets(ctx, g.project)
}
