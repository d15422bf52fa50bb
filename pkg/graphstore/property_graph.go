package graphstore

import (
	"context"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
)

// PropertyGraphStore is a labelled property graph with vector search.
type PropertyGraphStore struct {
	store
}

// NewPropertyGraphStore connects to PostgreSQL, checks pgvector and prepares
// the node and relation tables.
func NewPropertyGraphStore(ctx context.Context, opts ...Option) (*PropertyGraphStore, error) {
	s, err := open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &PropertyGraphStore{store: s}, nil
}

// UpsertNodes inserts or replaces nodes and returns their IDs.
func (g *PropertyGraphStore) UpsertNodes(ctx context.Context, nodes []Node) ([]string, error) {
	return g.db.UpsertNodes(ctx, g.project, nodes)
}

// UpsertRelations inserts or replaces relations, creating missing endpoints.
func (g *PropertyGraphStore) UpsertRelations(ctx context.Context, relations []Relation) error {
	return g.db.UpsertRelations(ctx, g.project, relations)
}

// Get returns nodes matching the filter.
func (g *PropertyGraphStore) Get(ctx context.Context, filter NodeFilter) ([]Node, error) {
	return g.db.GetNodes(ctx, g.project, filter)
}

func (g *PropertyGraphStore) GetTriplets(ctx context.Context, filter TripletFilter) ([]Triplet, error) {
	return g.db.GetTriplets(ctx, g.project, filter)
}

func (g *PropertyGraphStore) GetRelMap(ctx context.Context, nodeIDs []string, depth, limit int, ignoreRels []string) ([]Triplet, error) {
	return g.db.GetRelMap(ctx, g.project, nodeIDs, depth, limit, ignoreRels)
}

// VectorQuery returns the closest nodes with score = 1 - cosine distance.
func (g *PropertyGraphStore) VectorQuery(ctx context.Context, q VectorQuery) ([]ScoredNode, error) {
	return g.db.VectorQuery(ctx, g.project, q)
}

// Delete removes nodes and relations matching any of the filter fields.
func (g *PropertyGraphStore) Delete(ctx context.Context, filter TripletFilter) error {
	return g.db.Delete(ctx, g.project, filter)
}

func (g *PropertyGraphStore) DeleteNode(ctx context.Context, id string) error {
	return g.db.DeleteNode(ctx, g.project, id)
}

func (g *PropertyGraphStore) DeleteRelation(ctx context.Context, rel Relation) error {
	return g.db.DeleteRelation(ctx, g.project, rel)
}

// StructuredQuery runs raw SQL and returns rows keyed by column name.
// {nodes} and {prels} expand to the store's tables.
func (g *PropertyGraphStore) StructuredQuery(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if !g.rawQueries {
		return nil, ErrRawQueriesDisabled
	}
	return g.db.StructuredQuery(ctx, g.project, sql, args...)
}

func (g *PropertyGraphStore) GetSchema(ctx context.Context) (GraphSchema, error) {
	return g.db.GetSchema(ctx, g.project)
}

// GetSchemaString renders the schema for prompts.
func (g *PropertyGraphStore) GetSchemaString(ctx context.Context) (string, error) {
	schema, err := g.db.GetSchema(ctx, g.project)
	if err != nil {
		return "", err
	}
	return database.SchemaString(schema), nil
}

// Clear removes every node and relation.
func (g *PropertyGraphStore) Clear(ctx context.Context) error {
	return g.db.Clear(ctx, g.project)
}
