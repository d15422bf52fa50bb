package database

import (
	"math"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	for _, k := range []string{"POSTGRES_CONNECTION_STRING", "DATABASE_URL", "PG_PROJECTS_SCHEMA_PREFIX", "PG_SCHEMA", "EMBEDDING_DIMS", "PG_DROP_EXISTING"} {
		t.Setenv(k, "")
	}
	cfg := NewConfig()
	assert.Equal(t, defaultConnectionString, cfg.ConnectionString)
	assert.Equal(t, "public", cfg.Schema)
	assert.False(t, cfg.MultiProjectMode)
	assert.Equal(t, 1536, cfg.EmbeddingDims)
	assert.Equal(t, "pg_nodes", cfg.NodeTable)
	assert.False(t, cfg.DropExisting)
	assert.Equal(t, "public", cfg.SchemaFor("anything"))
}

func TestNewConfig_Env(t *testing.T) {
	t.Setenv("POSTGRES_CONNECTION_STRING", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/graph")
	t.Setenv("PG_PROJECTS_SCHEMA_PREFIX", "proj_")
	t.Setenv("EMBEDDING_DIMS", "768")
	t.Setenv("PG_DROP_EXISTING", "true")
	t.Setenv("PG_ALLOW_RAW_QUERIES", "1")
	t.Setenv("DB_MAX_OPEN_CONNS", "8")
	t.Setenv("PG_NODE_TABLE", "my_nodes")

	cfg := NewConfig()
	assert.Equal(t, "postgres://u:p@db:5432/graph", cfg.ConnectionString)
	assert.True(t, cfg.MultiProjectMode)
	assert.Equal(t, "proj_alpha", cfg.SchemaFor("alpha"))
	assert.Equal(t, 768, cfg.EmbeddingDims)
	assert.True(t, cfg.DropExisting)
	assert.True(t, cfg.AllowRawQueries)
	assert.Equal(t, 8, cfg.MaxOpenConns)
	assert.Equal(t, "my_nodes", cfg.NodeTable)

	t.Setenv("EMBEDDING_DIMS", "not-a-number")
	assert.Equal(t, defaultEmbeddingDims, NewConfig().EmbeddingDims)
}

func TestNormalizeConnectionString(t *testing.T) {
	cases := []struct{ in, want string }{
		{"postgresql+psycopg://u:p@h/db", "postgresql://u:p@h/db"},
		{"postgresql+asyncpg://u:p@h/db", "postgresql://u:p@h/db"},
		{" postgres://u:p@h:5432/db ", "postgres://u:p@h:5432/db"},
		{"host=localhost user=postgres", "host=localhost user=postgres"},
		{"postgres://u:p+x@h/db?a=b+c", "postgres://u:p+x@h/db?a=b+c"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeConnectionString(c.in), c.in)
	}
}

func TestToVector(t *testing.T) {
	v, err := toVector(nil, 4)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = toVector([]float32{1, 2, 3}, 4)
	assert.ErrorIs(t, err, ErrInvalidEmbedding)

	v, err = toVector([]float32{1, float32(math.NaN()), float32(math.Inf(1)), 4}, 4)
	require.NoError(t, err)
	vec, ok := v.(pgvector.Vector)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 4}, vec.Slice())
}

func TestFiniteScore(t *testing.T) {
	assert.Equal(t, 0.0, finiteScore(math.NaN()))
	assert.Equal(t, 0.0, finiteScore(math.Inf(-1)))
	assert.Equal(t, 0.5, finiteScore(0.5))
}

func TestCoerceToFloat32Slice(t *testing.T) {
	vec, ok, err := coerceToFloat32Slice([]any{1, 2.5, "3"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2.5, 3}, vec)

	_, ok, err = coerceToFloat32Slice("hello")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = coerceToFloat32Slice([]any{true})
	assert.Error(t, err)
}

func TestSupportsHNSW(t *testing.T) {
	assert.True(t, supportsHNSW("0.5.0"))
	assert.True(t, supportsHNSW("0.8.0"))
	assert.False(t, supportsHNSW("0.4.4"))
	assert.False(t, supportsHNSW("garbage"))
}

func TestProjectRender(t *testing.T) {
	cfg := &Config{
		MultiProjectMode:      true,
		ProjectsSchemaPrefix:  "graph_",
		EntityTable:           "entities",
		RelationTable:         "relations",
		NodeTable:             "pg_nodes",
		PropertyRelationTable: "pg_relations",
		EmbeddingDims:         8,
	}
	p := newProject("alpha", cfg)
	assert.Equal(t, `SELECT * FROM "graph_alpha"."pg_nodes" n JOIN "graph_alpha"."pg_relations" r`,
		p.render("SELECT * FROM {nodes} n JOIN {prels} r"))

	stmts := schemaStatements(p, true)
	assert.Contains(t, stmts[len(stmts)-1], "hnsw")
	for _, s := range schemaStatements(p, false) {
		assert.NotContains(t, s, "hnsw")
	}
}
