package graphstore

import (
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/embeddings"
)

type (
	Node            = apptype.Node
	NodeKind        = apptype.NodeKind
	Relation        = apptype.Relation
	Triplet         = apptype.Triplet
	ScoredNode      = apptype.ScoredNode
	NodeFilter      = apptype.NodeFilter
	TripletFilter   = apptype.TripletFilter
	VectorQuery     = apptype.VectorQuery
	GraphSchema     = apptype.GraphSchema
	LabelCount      = apptype.LabelCount
	RelationPattern = apptype.RelationPattern

	// EmbeddingsProvider generates embeddings for nodes and query text.
	EmbeddingsProvider = embeddings.Provider
	// StaticProvider produces deterministic hash-based embeddings.
	StaticProvider = embeddings.StaticProvider
)

const (
	KindEntity = apptype.KindEntity
	KindChunk  = apptype.KindChunk
)

var (
	ErrDatabaseUnavailable = database.ErrDatabaseUnavailable
	ErrInvalidArgument     = database.ErrInvalidArgument
	ErrInvalidEmbedding    = database.ErrInvalidEmbedding
	ErrVectorUnsupported   = database.ErrVectorUnsupported
	ErrRawQueriesDisabled  = database.ErrRawQueriesDisabled
	ErrDimensionMismatch   = embeddings.ErrDimensionMismatch
)

// NewEntityNode builds an entity node whose ID is its name.
func NewEntityNode(name, label string, properties map[string]any) Node {
	return apptype.NewEntityNode(name, label, properties)
}

// NewChunkNode builds a text chunk node; an empty id gets a random UUID.
func NewChunkNode(id, text string, properties map[string]any) Node {
	return apptype.NewChunkNode(id, text, properties)
}
