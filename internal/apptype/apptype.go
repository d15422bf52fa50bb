package apptype

import "github.com/google/uuid"

// NodeKind distinguishes entity nodes from text chunk nodes
type NodeKind string

const (
	KindEntity NodeKind = "entity"
	KindChunk  NodeKind = "chunk"

	DefaultEntityLabel = "entity"
	DefaultChunkLabel  = "text_chunk"
)

// Valid reports whether k is a known node kind
func (k NodeKind) Valid() bool {
	return k == KindEntity || k == KindChunk
}

// Node represents a labelled node in the property graph
type Node struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Label      string         `json:"label,omitempty"`
	Kind       NodeKind       `json:"kind,omitempty"`
	Text       string         `json:"text,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
}

// NewEntityNode builds an entity node whose ID is its name
func NewEntityNode(name, label string, properties map[string]any) Node {
	n := Node{Name: name, Label: label, Kind: KindEntity, Properties: properties}
	return n.Normalize()
}

// NewChunkNode builds a text chunk node. An empty id gets a random UUID.
func NewChunkNode(id, text string, properties map[string]any) Node {
	n := Node{ID: id, Text: text, Kind: KindChunk, Properties: properties}
	return n.Normalize()
}

// Normalize fills defaults: kind, label and ID
func (n Node) Normalize() Node {
	if n.Kind == "" {
		if n.Text != "" && n.Name == "" {
			n.Kind = KindChunk
		} else {
			n.Kind = KindEntity
		}
	}
	switch n.Kind {
	case KindChunk:
		if n.Label == "" {
			n.Label = DefaultChunkLabel
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
	default:
		if n.Label == "" {
			n.Label = DefaultEntityLabel
		}
		if n.ID == "" {
			n.ID = n.Name
		}
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	return n
}

// EmbeddingInput returns the text used to generate an embedding for the node
func (n Node) EmbeddingInput() string {
	if n.Kind == KindChunk {
		return n.Text
	}
	return n.Name
}

// Relation represents a directed, labelled edge between two node IDs
type Relation struct {
	Label      string         `json:"label"`
	SourceID   string         `json:"sourceId"`
	TargetID   string         `json:"targetId"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Triplet is the (source, relation, target) read model of the property graph
type Triplet struct {
	Source   Node     `json:"source"`
	Relation Relation `json:"relation"`
	Target   Node     `json:"target"`
}

// ScoredNode pairs a node with its vector similarity score
type ScoredNode struct {
	Node  Node    `json:"node"`
	Score float64 `json:"score"`
}

// NodeFilter selects nodes. Empty fields are ignored.
type NodeFilter struct {
	IDs        []string       `json:"ids,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TripletFilter selects triplets. All non-empty fields must match.
type TripletFilter struct {
	EntityNames   []string       `json:"entityNames,omitempty"`
	RelationNames []string       `json:"relationNames,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
	IDs           []string       `json:"ids,omitempty"`
}

// IsEmpty reports whether no filter field is set
func (f TripletFilter) IsEmpty() bool {
	return len(f.EntityNames) == 0 && len(f.RelationNames) == 0 && len(f.Properties) == 0 && len(f.IDs) == 0
}

// VectorQuery describes an approximate nearest-neighbour lookup
type VectorQuery struct {
	Embedding  []float32      `json:"embedding,omitempty"`
	QueryText  string         `json:"queryText,omitempty"`
	TopK       int            `json:"topK,omitempty"`
	NodeIDs    []string       `json:"nodeIds,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// LabelCount is a label with the number of rows carrying it
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// RelationPattern is a (source label)-[relation label]->(target label) shape
type RelationPattern struct {
	SourceLabel   string `json:"sourceLabel"`
	RelationLabel string `json:"relationLabel"`
	TargetLabel   string `json:"targetLabel"`
	Count         int64  `json:"count"`
}

// GraphSchema summarises the labels present in the property graph
type GraphSchema struct {
	NodeLabels       []LabelCount      `json:"nodeLabels"`
	RelationPatterns []RelationPattern `json:"relationPatterns"`
}
