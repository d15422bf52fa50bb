package graphstore

import (
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/embeddings"
)

// Option configures a store.
type Option func(*options)

type options struct {
	cfg        *database.Config
	project    string
	provider   embeddings.Provider
	rawQueries bool
}

// applyDefaults fills unset options from the environment.
func applyDefaults(opts *options) {
	if opts.cfg == nil {
		opts.cfg = database.NewConfig()
	}
	if opts.project == "" {
		opts.project = defaultProject
	}
}

func newOptions(opts ...Option) *options {
	o := &options{rawQueries: true}
	for _, opt := range opts {
		opt(o)
	}
	applyDefaults(o)
	return o
}

// withConfig lazily materialises the env-based config before mutating it.
func withConfig(fn func(*database.Config)) Option {
	return func(o *options) {
		if o.cfg == nil {
			o.cfg = database.NewConfig()
		}
		fn(o.cfg)
	}
}

// WithConnectionString sets the PostgreSQL URL or DSN.
// "postgresql+psycopg://" style URLs are accepted.
func WithConnectionString(conn string) Option {
	return withConfig(func(c *database.Config) { c.ConnectionString = conn })
}

// WithSchema sets the schema used in single-project mode.
func WithSchema(schema string) Option {
	return withConfig(func(c *database.Config) { c.Schema = schema })
}

// WithProject binds the store to a project. A non-empty prefix enables
// multi-project mode, placing the project in schema <prefix><project>.
func WithProject(project, schemaPrefix string) Option {
	return func(o *options) {
		o.project = project
		if schemaPrefix != "" {
			withConfig(func(c *database.Config) {
				c.ProjectsSchemaPrefix = schemaPrefix
				c.MultiProjectMode = true
			})(o)
		}
	}
}

// WithTripletTables overrides the basic store table names.
func WithTripletTables(entities, relations string) Option {
	return withConfig(func(c *database.Config) {
		c.EntityTable = entities
		c.RelationTable = relations
	})
}

// WithPropertyGraphTables overrides the property graph table names.
func WithPropertyGraphTables(nodes, relations string) Option {
	return withConfig(func(c *database.Config) {
		c.NodeTable = nodes
		c.PropertyRelationTable = relations
	})
}

// WithEmbeddingDims sets the width of the vector column.
func WithEmbeddingDims(dims int) Option {
	return withConfig(func(c *database.Config) { c.EmbeddingDims = dims })
}

// WithDropExisting drops the project's tables on initialisation.
func WithDropExisting(drop bool) Option {
	return withConfig(func(c *database.Config) { c.DropExisting = drop })
}

// WithEcho logs every SQL statement.
func WithEcho(echo bool) Option {
	return withConfig(func(c *database.Config) { c.Echo = echo })
}

// WithRawQueries toggles Query and StructuredQuery. Enabled by default.
func WithRawQueries(allow bool) Option {
	return func(o *options) { o.rawQueries = allow }
}

// WithEmbeddingsProvider overrides the provider selected by EMBEDDINGS_PROVIDER.
func WithEmbeddingsProvider(p EmbeddingsProvider) Option {
	return func(o *options) { o.provider = p }
}
