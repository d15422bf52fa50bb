package database

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	emb "github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNodes() []apptype.Node {
	return []apptype.Node{
		apptype.NewEntityNode("Alice", "Person", map[string]any{"age": 30, "occupation": "Engineer"}),
		apptype.NewEntityNode("Bob", "Person", map[string]any{"age": 25, "occupation": "Designer"}),
		{
			ID:         "chunk1",
			Kind:       apptype.KindChunk,
			Label:      "Chunk",
			Text:       "This is a test chunk",
			Properties: map[string]any{"source": "test"},
			Embedding:  []float32{0.1, 0.2, 0.3, 0.4},
		},
	}
}

func sampleRelations() []apptype.Relation {
	return []apptype.Relation{
		{SourceID: "Alice", TargetID: "Bob", Label: "KNOWS", Properties: map[string]any{"since": 2020}},
		{SourceID: "Alice", TargetID: "chunk1", Label: "CREATED", Properties: map[string]any{"date": "2023-01-01"}},
	}
}

func seedGraph(t *testing.T, db *DBManager, project string) {
	t.Helper()
	ctx := context.Background()
	_, err := db.UpsertNodes(ctx, project, sampleNodes())
	require.NoError(t, err)
	require.NoError(t, db.UpsertRelations(ctx, project, sampleRelations()))
}

func TestUpsertAndGetNodes(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()

	ids, err := db.UpsertNodes(ctx, project, sampleNodes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "chunk1"}, ids)

	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	engineers, err := db.GetNodes(ctx, project, apptype.NodeFilter{Properties: map[string]any{"occupation": "Engineer"}})
	require.NoError(t, err)
	require.Len(t, engineers, 1)
	assert.Equal(t, "Engineer", engineers[0].Properties["occupation"])
	assert.Equal(t, float64(30), engineers[0].Properties["age"])

	chunks, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"chunk1"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, apptype.KindChunk, chunks[0].Kind)
	assert.Equal(t, "This is a test chunk", chunks[0].Text)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3, 0.4}, chunks[0].Embedding, 1e-6)

	both, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"Alice", "Bob"}})
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestUpsertNodes_Replaces(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertNodes(ctx, project, []apptype.Node{apptype.NewEntityNode("e1", "", map[string]any{"p1": "v1"})})
	require.NoError(t, err)
	_, err = db.UpsertNodes(ctx, project, []apptype.Node{apptype.NewEntityNode("e1", "Thing", map[string]any{"p1": "v2"})})
	require.NoError(t, err)

	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"e1"}})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Thing", nodes[0].Label)
	assert.Equal(t, "v2", nodes[0].Properties["p1"])
}

func TestUpsertNodes_InvalidEmbedding(t *testing.T) {
	db, project := setupTestDB(t)
	n := apptype.NewEntityNode("e1", "", nil)
	n.Embedding = []float32{1, 2}
	_, err := db.UpsertNodes(context.Background(), project, []apptype.Node{n})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEmbedding))
}

func TestUpsertNodes_UnknownKind(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()
	_, err := db.UpsertNodes(ctx, project, []apptype.Node{{Name: "e1", Kind: "foo"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"e1"}})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestUpsertNodes_GeneratesEmbeddings(t *testing.T) {
	db, project := setupTestDB(t)
	db.SetProvider(&emb.StaticProvider{N: testDims})
	ctx := context.Background()

	_, err := db.UpsertNodes(ctx, project, []apptype.Node{apptype.NewEntityNode("e1", "", nil)})
	require.NoError(t, err)
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"e1"}})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Len(t, nodes[0].Embedding, testDims)
}

func TestGetTriplets(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{EntityNames: []string{"Alice"}})
	require.NoError(t, err)
	assert.Len(t, triplets, 2)

	knows, err := db.GetTriplets(ctx, project, apptype.TripletFilter{RelationNames: []string{"KNOWS"}})
	require.NoError(t, err)
	require.Len(t, knows, 1)
	assert.Equal(t, "KNOWS", knows[0].Relation.Label)
	assert.Equal(t, "Alice", knows[0].Source.Name)
	assert.Equal(t, "Bob", knows[0].Target.Name)

	dated, err := db.GetTriplets(ctx, project, apptype.TripletFilter{Properties: map[string]any{"date": "2023-01-01"}})
	require.NoError(t, err)
	require.Len(t, dated, 1)
	assert.Equal(t, "2023-01-01", dated[0].Relation.Properties["date"])

	// node properties match too
	engineers, err := db.GetTriplets(ctx, project, apptype.TripletFilter{Properties: map[string]any{"occupation": "Engineer"}})
	require.NoError(t, err)
	assert.Len(t, engineers, 2)

	byID, err := db.GetTriplets(ctx, project, apptype.TripletFilter{IDs: []string{"chunk1"}})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	all, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing, err := db.GetTriplets(ctx, project, apptype.TripletFilter{EntityNames: []string{"e3"}})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUpsertRelations_CreatesPlaceholders(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertRelations(ctx, project, []apptype.Relation{{SourceID: "x", TargetID: "y", Label: "r"}}))
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	// upserting the same relation replaces its properties
	require.NoError(t, db.UpsertRelations(ctx, project, []apptype.Relation{{SourceID: "x", TargetID: "y", Label: "r", Properties: map[string]any{"w": "1"}}}))
	triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	assert.Equal(t, "1", triplets[0].Relation.Properties["w"])
}

func TestGetRelMap(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertNodes(ctx, project, []apptype.Node{
		apptype.NewEntityNode("e1", "", map[string]any{"p1": "v1"}),
		apptype.NewEntityNode("e2", "", nil),
		apptype.NewEntityNode("e3", "", nil),
	})
	require.NoError(t, err)
	require.NoError(t, db.UpsertRelations(ctx, project, []apptype.Relation{
		{SourceID: "e1", TargetID: "e2", Label: "r"},
		{SourceID: "e2", TargetID: "e3", Label: "s"},
	}))

	relMap, err := db.GetRelMap(ctx, project, []string{"e1"}, 1, 0, nil)
	require.NoError(t, err)
	assert.Len(t, relMap, 1)

	relMap, err = db.GetRelMap(ctx, project, []string{"e1"}, 2, 0, nil)
	require.NoError(t, err)
	require.Len(t, relMap, 2)
	assert.Equal(t, "r", relMap[0].Relation.Label)
	assert.Equal(t, "s", relMap[1].Relation.Label)

	relMap, err = db.GetRelMap(ctx, project, []string{"e1"}, 2, 0, []string{"s"})
	require.NoError(t, err)
	assert.Len(t, relMap, 1)

	relMap, err = db.GetRelMap(ctx, project, []string{"e3"}, 2, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, relMap)
}

func TestVectorQuery(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()
	_, err := db.UpsertNodes(ctx, project, sampleNodes())
	require.NoError(t, err)

	results, err := db.VectorQuery(ctx, project, apptype.VectorQuery{Embedding: []float32{0.1, 0.2, 0.3, 0.4}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk1", results[0].Node.ID)
	assert.Greater(t, results[0].Score, 0.9)

	filtered, err := db.VectorQuery(ctx, project, apptype.VectorQuery{
		Embedding:  []float32{0.1, 0.2, 0.3, 0.4},
		Properties: map[string]any{"source": "other"},
	})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	_, err = db.VectorQuery(ctx, project, apptype.VectorQuery{QueryText: "hello"})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestVectorSearch_TextAndVector(t *testing.T) {
	db, project := setupTestDB(t)
	db.SetProvider(&emb.StaticProvider{N: testDims})
	ctx := context.Background()

	_, err := db.UpsertNodes(ctx, project, []apptype.Node{
		apptype.NewEntityNode("e1", "", nil),
		apptype.NewEntityNode("e2", "", nil),
	})
	require.NoError(t, err)

	byText, err := db.VectorSearch(ctx, project, "e1", 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "e1", byText[0].Node.ID)

	byVec, err := db.VectorSearch(ctx, project, []any{0.1, 0.2, 0.3, 0.4}, 2, nil, nil)
	require.NoError(t, err)
	assert.Len(t, byVec, 2)
}

func TestDeleteNodeAndRelation(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	require.NoError(t, db.DeleteRelation(ctx, project, sampleRelations()[0]))
	knows, err := db.GetTriplets(ctx, project, apptype.TripletFilter{RelationNames: []string{"KNOWS"}})
	require.NoError(t, err)
	assert.Empty(t, knows)
	created, err := db.GetTriplets(ctx, project, apptype.TripletFilter{RelationNames: []string{"CREATED"}})
	require.NoError(t, err)
	assert.Len(t, created, 1)

	require.NoError(t, db.DeleteNode(ctx, project, "Alice"))
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"Alice"}})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{EntityNames: []string{"Alice"}})
	require.NoError(t, err)
	assert.Empty(t, triplets)
}

func TestDeleteByFilters(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()

	_, err := db.UpsertNodes(ctx, project, []apptype.Node{
		apptype.NewEntityNode("e1", "", map[string]any{"p1": "v1"}),
		apptype.NewEntityNode("e2", "", nil),
	})
	require.NoError(t, err)
	require.NoError(t, db.UpsertRelations(ctx, project, []apptype.Relation{{SourceID: "e1", TargetID: "e2", Label: "r"}}))

	count := func() int {
		triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{EntityNames: []string{"e1"}})
		require.NoError(t, err)
		return len(triplets)
	}
	require.Equal(t, 1, count())

	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{Properties: map[string]any{"p1": "not exist"}}))
	assert.Equal(t, 1, count())
	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{Properties: map[string]any{"p1": "v1"}}))
	assert.Equal(t, 0, count())

	require.NoError(t, db.UpsertRelations(ctx, project, []apptype.Relation{{SourceID: "e1", TargetID: "e2", Label: "r"}}))
	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{EntityNames: []string{"e1"}}))
	assert.Equal(t, 0, count())

	// an empty filter deletes nothing
	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{}))
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"e2"}})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestGetSchemaAndStructuredQuery(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	schema, err := db.GetSchema(ctx, project)
	require.NoError(t, err)
	assert.Contains(t, schema.NodeLabels, apptype.LabelCount{Label: "Person", Count: 2})
	assert.Contains(t, schema.RelationPatterns, apptype.RelationPattern{SourceLabel: "Person", RelationLabel: "KNOWS", TargetLabel: "Person", Count: 1})
	assert.Contains(t, SchemaString(schema), "(:Person)-[:KNOWS]->(:Person)")

	rows, err := db.StructuredQuery(ctx, project, "SELECT id, label FROM {nodes} WHERE label = $1 ORDER BY id", "Person")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0]["id"])

	// a typo in caller SQL is reported as-is, not as missing vector support
	_, err = db.StructuredQuery(ctx, project, "SELECT no_such_fn() FROM {nodes}")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVectorUnsupported)
}

func TestClear(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	require.NoError(t, db.Clear(ctx, project))
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	assert.Empty(t, triplets)
}

func TestMultiProject(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()
	other := project + "_b"
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+db.config.SchemaFor(other)+" CASCADE")
	})

	require.NoError(t, db.UpsertTriplet(ctx, project, "a", "r", "b"))
	require.NoError(t, db.UpsertTriplet(ctx, other, "c", "r", "d"))

	ta, err := db.GetSubjectTriplets(ctx, project, "c")
	require.NoError(t, err)
	assert.Empty(t, ta)
	tb, err := db.GetSubjectTriplets(ctx, other, "c")
	require.NoError(t, err)
	assert.Len(t, tb, 1)

	_, err = db.GetNodes(ctx, "", apptype.NodeFilter{})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestSingleProjectDropExisting(t *testing.T) {
	cfg := testConfig(t)
	cfg.MultiProjectMode = false
	cfg.ProjectsSchemaPrefix = ""
	cfg.NodeTable = "single_nodes"
	cfg.PropertyRelationTable = "single_relations"
	cfg.EntityTable = "single_entities"
	cfg.RelationTable = "single_triplets"
	ctx := context.Background()

	db, err := NewDBManager(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, db.UpsertTriplet(ctx, "", "a", "r", "b"))
	require.NoError(t, db.Close())

	// a fresh manager with DropExisting starts from empty tables
	db, err = NewDBManager(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	defer func() {
		p, err := db.getProject(ctx, "")
		require.NoError(t, err)
		for _, stmt := range dropStatements(p) {
			_, _ = db.pool.Exec(ctx, stmt)
		}
	}()
	triplets, err := db.GetSubjectTriplets(ctx, "", "a")
	require.NoError(t, err)
	assert.Empty(t, triplets)

	caps := db.Capabilities()
	assert.NotEmpty(t, caps.PgvectorVersion)
}

func TestEmbeddingDims_AdoptsExistingTable(t *testing.T) {
	db, project := setupTestDB(t)
	ctx := context.Background()
	dims, err := db.EmbeddingDims(ctx, project)
	require.NoError(t, err)
	require.Equal(t, testDims, dims)

	cfg := testConfig(t)
	cfg.DropExisting = false
	cfg.EmbeddingDims = testDims * 2
	other, err := NewDBManager(ctx, cfg)
	require.NoError(t, err)
	defer other.Close()

	dims, err = other.EmbeddingDims(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, testDims, dims)
	assert.Equal(t, testDims*2, other.Config().EmbeddingDims)
}

func TestNewDBManager_InvalidDims(t *testing.T) {
	_, err := NewDBManager(context.Background(), &Config{EmbeddingDims: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestDelete_ByIDsCascadesRelations(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{IDs: []string{"chunk1"}}))

	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{IDs: []string{"chunk1"}})
	require.NoError(t, err)
	assert.Empty(t, nodes)
	// CREATED pointed at chunk1 and goes with it, KNOWS stays
	triplets, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	assert.Equal(t, "KNOWS", triplets[0].Relation.Label)
}

func TestDelete_EmptyFilterIsNoop(t *testing.T) {
	db, project := setupTestDB(t)
	seedGraph(t, db, project)
	ctx := context.Background()

	before, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{}))
	require.NoError(t, db.Delete(ctx, project, apptype.TripletFilter{EntityNames: []string{}, Properties: map[string]any{}}))

	after, err := db.GetTriplets(ctx, project, apptype.TripletFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	nodes, err := db.GetNodes(ctx, project, apptype.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, nodes, len(sampleNodes()))
}
