package apptype

// ProjectArgs provides a standard way to pass project context to tools.
type ProjectArgs struct {
	ProjectName string `json:"projectName,omitempty" jsonschema:"The name of the project to operate on. If not provided, the default project is used."`
}

// TripletArgs identifies a subject-predicate-object fact
type TripletArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Subject     string      `json:"subject" jsonschema:"Subject entity name."`
	Relation    string      `json:"relation" jsonschema:"Predicate describing the relation."`
	Object      string      `json:"object" jsonschema:"Object entity name."`
}

// TripletGetArgs represents the arguments for the triplet_get tool
type TripletGetArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Subject     string      `json:"subject" jsonschema:"Subject entity name to look up."`
}

// TripletGetResult lists [relation, object] pairs for a subject
type TripletGetResult struct {
	Subject string      `json:"subject"`
	Pairs   [][2]string `json:"pairs"`
}

// TripletRelMapArgs represents the arguments for the triplet_rel_map tool
type TripletRelMapArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Subjects    []string    `json:"subjects,omitempty" jsonschema:"Subjects to expand from. Empty means every subject."`
	Depth       int         `json:"depth,omitempty" jsonschema:"Maximum hop depth (default 2)."`
	Limit       int         `json:"limit,omitempty" jsonschema:"Maximum paths per subject (default 30)."`
}

// TripletRelMapResult maps each subject to its [subject, relation, object] paths
type TripletRelMapResult struct {
	RelMap map[string][][3]string `json:"relMap"`
}

// UpsertNodesArgs represents the arguments for the upsert_nodes tool
type UpsertNodesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Nodes       []Node      `json:"nodes" jsonschema:"Entity or chunk nodes to insert or replace."`
}

// UpsertNodesResult returns the IDs assigned to the upserted nodes
type UpsertNodesResult struct {
	IDs []string `json:"ids"`
}

// UpsertRelationsArgs represents the arguments for the upsert_relations tool
type UpsertRelationsArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Relations   []Relation  `json:"relations" jsonschema:"Directed relations between node IDs."`
}

// GetNodesArgs represents the arguments for the get_nodes tool
type GetNodesArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Filter      NodeFilter  `json:"filter,omitempty" jsonschema:"Optional id and property filters."`
}

// NodesResult wraps a list of nodes
type NodesResult struct {
	Nodes []Node `json:"nodes"`
}

// GetTripletsArgs represents the arguments for the get_triplets tool
type GetTripletsArgs struct {
	ProjectArgs ProjectArgs   `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Filter      TripletFilter `json:"filter,omitempty" jsonschema:"Optional entity name, relation name, property and id filters."`
}

// TripletsResult wraps a list of triplets
type TripletsResult struct {
	Triplets []Triplet `json:"triplets"`
}

// GetRelMapArgs represents the arguments for the get_rel_map tool
type GetRelMapArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	NodeIDs     []string    `json:"nodeIds" jsonschema:"Seed node IDs to expand from."`
	Depth       int         `json:"depth,omitempty" jsonschema:"Maximum hop depth (default 2)."`
	Limit       int         `json:"limit,omitempty" jsonschema:"Maximum number of triplets (default 30)."`
	IgnoreRels  []string    `json:"ignoreRels,omitempty" jsonschema:"Relation labels to skip while expanding."`
}

// VectorSearchArgs represents the arguments for the vector_search tool
type VectorSearchArgs struct {
	ProjectArgs ProjectArgs    `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Query       interface{}    `json:"query" jsonschema:"The search query. Can be a string embedded by the configured provider or a []float32 query embedding."`
	TopK        int            `json:"topK,omitempty" jsonschema:"Maximum number of results to return (default 10)."`
	NodeIDs     []string       `json:"nodeIds,omitempty" jsonschema:"Restrict the search to these node IDs."`
	Properties  map[string]any `json:"properties,omitempty" jsonschema:"Restrict the search to nodes whose properties contain these values."`
}

// VectorSearchResult lists nodes with similarity scores
type VectorSearchResult struct {
	Results []ScoredNode `json:"results"`
}

// DeleteArgs represents the arguments for the delete tool
type DeleteArgs struct {
	ProjectArgs ProjectArgs   `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Filter      TripletFilter `json:"filter" jsonschema:"Entity names, relation labels, properties or ids to delete."`
}

// GetSchemaArgs represents the arguments for the get_schema tool
type GetSchemaArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
}

// StructuredQueryArgs represents the arguments for the structured_query tool
type StructuredQueryArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project context for the operation."`
	Query       string      `json:"query" jsonschema:"SQL statement using $1..$n placeholders."`
	Params      []any       `json:"params,omitempty" jsonschema:"Positional parameters."`
}

// StructuredQueryResult holds the rows returned by a raw query
type StructuredQueryResult struct {
	Rows []map[string]any `json:"rows"`
}

// Health
type HealthArgs struct {
	ProjectArgs ProjectArgs `json:"projectArgs,omitempty" jsonschema:"Project whose embedding width is reported. Defaults to the default project."`
}

type HealthResult struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Revision        string `json:"revision"`
	BuildDate       string `json:"buildDate"`
	MultiProject    bool   `json:"multiProject"`
	EmbeddingDims   int    `json:"embeddingDims"`
	PgvectorVersion string `json:"pgvectorVersion,omitempty"`
	HNSW            bool   `json:"hnsw"`
}
