package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// project is one graph namespace: a PostgreSQL schema holding the basic
// store tables and the property store tables.
type project struct {
	name   string
	schema string
	dims   int

	entityTable   string
	relationTable string
	nodeTable     string
	propRelTable  string

	replacer *strings.Replacer
}

func newProject(name string, cfg *Config) *project {
	p := &project{
		name:          name,
		schema:        cfg.SchemaFor(name),
		dims:          cfg.EmbeddingDims,
		entityTable:   cfg.EntityTable,
		relationTable: cfg.RelationTable,
		nodeTable:     cfg.NodeTable,
		propRelTable:  cfg.PropertyRelationTable,
	}
	p.replacer = strings.NewReplacer(
		"{entities}", p.qualified(p.entityTable),
		"{relations}", p.qualified(p.relationTable),
		"{nodes}", p.qualified(p.nodeTable),
		"{prels}", p.qualified(p.propRelTable),
	)
	return p
}

// qualified returns the quoted schema.table identifier
func (p *project) qualified(table string) string {
	return pgx.Identifier{p.schema, table}.Sanitize()
}

// render substitutes table placeholders in a SQL template
func (p *project) render(tmpl string) string {
	return p.replacer.Replace(tmpl)
}

// index names live in the table's schema and must not be qualified
func indexName(table, suffix string) string {
	return pgx.Identifier{table + "_" + suffix}.Sanitize()
}

// dropStatements drops the project tables, dependents first
func dropStatements(p *project) []string {
	return []string{
		"DROP TABLE IF EXISTS " + p.qualified(p.relationTable) + " CASCADE",
		"DROP TABLE IF EXISTS " + p.qualified(p.entityTable) + " CASCADE",
		"DROP TABLE IF EXISTS " + p.qualified(p.propRelTable) + " CASCADE",
		"DROP TABLE IF EXISTS " + p.qualified(p.nodeTable) + " CASCADE",
	}
}

// schemaStatements returns the DDL for both stores of a project
func schemaStatements(p *project, hnsw bool) []string {
	stmts := []string{
		// basic triplet store
		p.render(`CREATE TABLE IF NOT EXISTS {entities} (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`),
		p.render(`CREATE TABLE IF NOT EXISTS {relations} (
			id BIGSERIAL PRIMARY KEY,
			subject_id BIGINT NOT NULL REFERENCES {entities}(id) ON DELETE CASCADE,
			object_id BIGINT NOT NULL REFERENCES {entities}(id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (subject_id, description, object_id)
		)`),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (subject_id)",
			indexName(p.relationTable, "subject_idx"), p.qualified(p.relationTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (object_id)",
			indexName(p.relationTable, "object_idx"), p.qualified(p.relationTable)),

		// property graph store
		p.render(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS {nodes} (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'entity',
			text TEXT NOT NULL DEFAULT '',
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.dims)),
		p.render(`CREATE TABLE IF NOT EXISTS {prels} (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL,
			source_id TEXT NOT NULL REFERENCES {nodes}(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES {nodes}(id) ON DELETE CASCADE,
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source_id, target_id, label)
		)`),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (name)",
			indexName(p.nodeTable, "name_idx"), p.qualified(p.nodeTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (label)",
			indexName(p.nodeTable, "label_idx"), p.qualified(p.nodeTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (properties)",
			indexName(p.nodeTable, "properties_idx"), p.qualified(p.nodeTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (source_id)",
			indexName(p.propRelTable, "source_idx"), p.qualified(p.propRelTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (target_id)",
			indexName(p.propRelTable, "target_idx"), p.qualified(p.propRelTable)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (label)",
			indexName(p.propRelTable, "label_idx"), p.qualified(p.propRelTable)),
	}
	if hnsw && p.dims <= maxIndexedDims {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)",
			indexName(p.nodeTable, "embedding_idx"), p.qualified(p.nodeTable)))
	}
	return stmts
}
