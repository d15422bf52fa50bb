package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/metrics"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultProject = "default"
	poolStatsEvery = 5 * time.Second
)

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	db     *database.DBManager
}

// NewMCPServer creates a new MCP server
func NewMCPServer(db *database.DBManager) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    buildinfo.Name,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		db:     db,
	}

	mcpServer.setupToolHandlers()
	return mcpServer
}

// schemaFor infers a JSON schema; failures are programming errors
func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T]()
	if err != nil {
		var zero T
		panic(fmt.Sprintf("failed to create schema for %T: %v", zero, err))
	}
	return s
}

func annotations(title string, readOnly bool) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{Title: title, ReadOnlyHint: readOnly}
}

// setupToolHandlers registers all MCP tools. Tools that return plain text do
// not declare an output schema.
func (s *MCPServer) setupToolHandlers() {
	// basic triplet store
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: annotations("Upsert Triplet", false),
		Name:        "triplet_upsert",
		Title:       "Upsert Triplet",
		Description: "Store a subject-relation-object fact. Storing the same fact twice is a no-op.",
		InputSchema: schemaFor[apptype.TripletArgs](),
	}, s.handleTripletUpsert)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Get Triplets", true),
		Name:         "triplet_get",
		Title:        "Get Triplets",
		Description:  "List the [relation, object] pairs stored for a subject.",
		InputSchema:  schemaFor[apptype.TripletGetArgs](),
		OutputSchema: schemaFor[apptype.TripletGetResult](),
	}, s.handleTripletGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Triplet Relation Map", true),
		Name:         "triplet_rel_map",
		Title:        "Triplet Relation Map",
		Description:  "Expand subjects to their multi-hop [subject, relation, object] paths.",
		InputSchema:  schemaFor[apptype.TripletRelMapArgs](),
		OutputSchema: schemaFor[apptype.TripletRelMapResult](),
	}, s.handleTripletRelMap)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: annotations("Delete Triplet", false),
		Name:        "triplet_delete",
		Title:       "Delete Triplet",
		Description: "Delete a subject-relation-object fact and any entity it leaves orphaned.",
		InputSchema: schemaFor[apptype.TripletArgs](),
	}, s.handleTripletDelete)

	// property graph store
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Upsert Nodes", false),
		Name:         "upsert_nodes",
		Title:        "Upsert Nodes",
		Description:  "Insert or replace entity and chunk nodes. Missing embeddings are generated when a provider is configured.",
		InputSchema:  schemaFor[apptype.UpsertNodesArgs](),
		OutputSchema: schemaFor[apptype.UpsertNodesResult](),
	}, s.handleUpsertNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: annotations("Upsert Relations", false),
		Name:        "upsert_relations",
		Title:       "Upsert Relations",
		Description: "Insert or replace labelled relations between node IDs. Unknown endpoints are created as placeholder entities.",
		InputSchema: schemaFor[apptype.UpsertRelationsArgs](),
	}, s.handleUpsertRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Get Nodes", true),
		Name:         "get_nodes",
		Title:        "Get Nodes",
		Description:  "Fetch nodes by IDs and/or property values.",
		InputSchema:  schemaFor[apptype.GetNodesArgs](),
		OutputSchema: schemaFor[apptype.NodesResult](),
	}, s.handleGetNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Get Triplets", true),
		Name:         "get_triplets",
		Title:        "Get Triplets",
		Description:  "Fetch (source, relation, target) triplets filtered by entity names, relation labels, properties or IDs.",
		InputSchema:  schemaFor[apptype.GetTripletsArgs](),
		OutputSchema: schemaFor[apptype.TripletsResult](),
	}, s.handleGetTriplets)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Relation Map", true),
		Name:         "get_rel_map",
		Title:        "Relation Map",
		Description:  "Bounded-depth expansion from seed nodes following relation direction.",
		InputSchema:  schemaFor[apptype.GetRelMapArgs](),
		OutputSchema: schemaFor[apptype.TripletsResult](),
	}, s.handleGetRelMap)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Vector Search", true),
		Name:         "vector_search",
		Title:        "Vector Search",
		Description:  "Find the nodes closest to a query by cosine similarity. The query is text or an embedding.",
		InputSchema:  schemaFor[apptype.VectorSearchArgs](),
		OutputSchema: schemaFor[apptype.VectorSearchResult](),
	}, s.handleVectorSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: annotations("Delete", false),
		Name:        "delete",
		Title:       "Delete",
		Description: "Delete nodes by name, ID or properties and relations by label or properties.",
		InputSchema: schemaFor[apptype.DeleteArgs](),
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Graph Schema", true),
		Name:         "get_schema",
		Title:        "Graph Schema",
		Description:  "Summarise node labels and relation patterns of the property graph.",
		InputSchema:  schemaFor[apptype.GetSchemaArgs](),
		OutputSchema: schemaFor[apptype.GraphSchema](),
	}, s.handleGetSchema)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  annotations("Health Check", true),
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server, configuration and pgvector information.",
		InputSchema:  schemaFor[apptype.HealthArgs](),
		OutputSchema: schemaFor[apptype.HealthResult](),
	}, s.handleHealth)

	if s.db.Config().AllowRawQueries {
		mcp.AddTool(s.server, &mcp.Tool{
			Annotations:  annotations("Structured Query", false),
			Name:         "structured_query",
			Title:        "Structured Query",
			Description:  "Run a SQL statement. {entities}, {relations}, {nodes} and {prels} expand to the project's tables.",
			InputSchema:  schemaFor[apptype.StructuredQueryArgs](),
			OutputSchema: schemaFor[apptype.StructuredQueryResult](),
		}, s.handleStructuredQuery)
	}
}

func (s *MCPServer) getProjectName(providedName string) string {
	if providedName != "" {
		return providedName
	}
	return defaultProject
}

func textResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

// handleTripletUpsert handles the triplet_upsert tool call
func (s *MCPServer) handleTripletUpsert(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.TripletArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("triplet_upsert")
	var success bool
	defer func() { done(success) }()
	a := params.Arguments
	projectName := s.getProjectName(a.ProjectArgs.ProjectName)

	if err := s.db.UpsertTriplet(ctx, projectName, a.Subject, a.Relation, a.Object); err != nil {
		return nil, fmt.Errorf("failed to upsert triplet: %w", err)
	}
	success = true
	return textResult("Stored (%s)-[%s]->(%s) in project %s", a.Subject, a.Relation, a.Object, projectName), nil
}

// handleTripletGet handles the triplet_get tool call
func (s *MCPServer) handleTripletGet(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.TripletGetArgs],
) (*mcp.CallToolResultFor[apptype.TripletGetResult], error) {
	done := metrics.TimeTool("triplet_get")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	pairs, err := s.db.GetSubjectTriplets(ctx, projectName, params.Arguments.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to get triplets: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.TripletGetResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d triplets", len(pairs))}},
		StructuredContent: apptype.TripletGetResult{Subject: params.Arguments.Subject, Pairs: pairs},
	}, nil
}

// handleTripletRelMap handles the triplet_rel_map tool call
func (s *MCPServer) handleTripletRelMap(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.TripletRelMapArgs],
) (*mcp.CallToolResultFor[apptype.TripletRelMapResult], error) {
	done := metrics.TimeTool("triplet_rel_map")
	var success bool
	defer func() { done(success) }()
	a := params.Arguments
	projectName := s.getProjectName(a.ProjectArgs.ProjectName)

	relMap, err := s.db.GetTripletRelMap(ctx, projectName, a.Subjects, a.Depth, a.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build relation map: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.TripletRelMapResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Expanded %d subjects", len(relMap))}},
		StructuredContent: apptype.TripletRelMapResult{RelMap: relMap},
	}, nil
}

// handleTripletDelete handles the triplet_delete tool call
func (s *MCPServer) handleTripletDelete(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.TripletArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("triplet_delete")
	var success bool
	defer func() { done(success) }()
	a := params.Arguments
	projectName := s.getProjectName(a.ProjectArgs.ProjectName)

	if err := s.db.DeleteTriplet(ctx, projectName, a.Subject, a.Relation, a.Object); err != nil {
		return nil, fmt.Errorf("failed to delete triplet: %w", err)
	}
	success = true
	return textResult("Deleted (%s)-[%s]->(%s) from project %s", a.Subject, a.Relation, a.Object, projectName), nil
}

// handleUpsertNodes handles the upsert_nodes tool call
func (s *MCPServer) handleUpsertNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpsertNodesArgs],
) (*mcp.CallToolResultFor[apptype.UpsertNodesResult], error) {
	done := metrics.TimeTool("upsert_nodes")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	ids, err := s.db.UpsertNodes(ctx, projectName, params.Arguments.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert nodes: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.UpsertNodesResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Upserted %d nodes in project %s", len(ids), projectName)}},
		StructuredContent: apptype.UpsertNodesResult{IDs: ids},
	}, nil
}

// handleUpsertRelations handles the upsert_relations tool call
func (s *MCPServer) handleUpsertRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpsertRelationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("upsert_relations")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	if err := s.db.UpsertRelations(ctx, projectName, params.Arguments.Relations); err != nil {
		return nil, fmt.Errorf("failed to upsert relations: %w", err)
	}
	success = true
	return textResult("Upserted %d relations in project %s", len(params.Arguments.Relations), projectName), nil
}

// handleGetNodes handles the get_nodes tool call
func (s *MCPServer) handleGetNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetNodesArgs],
) (*mcp.CallToolResultFor[apptype.NodesResult], error) {
	done := metrics.TimeTool("get_nodes")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	nodes, err := s.db.GetNodes(ctx, projectName, params.Arguments.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.NodesResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d nodes", len(nodes))}},
		StructuredContent: apptype.NodesResult{Nodes: nodes},
	}, nil
}

// handleGetTriplets handles the get_triplets tool call
func (s *MCPServer) handleGetTriplets(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetTripletsArgs],
) (*mcp.CallToolResultFor[apptype.TripletsResult], error) {
	done := metrics.TimeTool("get_triplets")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	triplets, err := s.db.GetTriplets(ctx, projectName, params.Arguments.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get triplets: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.TripletsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d triplets", len(triplets))}},
		StructuredContent: apptype.TripletsResult{Triplets: triplets},
	}, nil
}

// handleGetRelMap handles the get_rel_map tool call
func (s *MCPServer) handleGetRelMap(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetRelMapArgs],
) (*mcp.CallToolResultFor[apptype.TripletsResult], error) {
	done := metrics.TimeTool("get_rel_map")
	var success bool
	defer func() { done(success) }()
	a := params.Arguments
	projectName := s.getProjectName(a.ProjectArgs.ProjectName)

	triplets, err := s.db.GetRelMap(ctx, projectName, a.NodeIDs, a.Depth, a.Limit, a.IgnoreRels)
	if err != nil {
		return nil, fmt.Errorf("failed to build relation map: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.TripletsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d triplets", len(triplets))}},
		StructuredContent: apptype.TripletsResult{Triplets: triplets},
	}, nil
}

// handleVectorSearch handles the vector_search tool call
func (s *MCPServer) handleVectorSearch(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.VectorSearchArgs],
) (*mcp.CallToolResultFor[apptype.VectorSearchResult], error) {
	done := metrics.TimeTool("vector_search")
	var success bool
	defer func() { done(success) }()
	a := params.Arguments
	projectName := s.getProjectName(a.ProjectArgs.ProjectName)

	results, err := s.db.VectorSearch(ctx, projectName, a.Query, a.TopK, a.NodeIDs, a.Properties)
	if err != nil {
		if errors.Is(err, database.ErrVectorUnsupported) {
			slog.Warn("vector search unavailable", "project", projectName, "error", err)
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.VectorSearchResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d results", len(results))}},
		StructuredContent: apptype.VectorSearchResult{Results: results},
	}, nil
}

// handleDelete handles the delete tool call
func (s *MCPServer) handleDelete(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	if params.Arguments.Filter.IsEmpty() {
		success = true
		return textResult("No filter given, nothing deleted"), nil
	}
	if err := s.db.Delete(ctx, projectName, params.Arguments.Filter); err != nil {
		return nil, fmt.Errorf("failed to delete: %w", err)
	}
	success = true
	return textResult("Deleted matching nodes and relations in project %s", projectName), nil
}

// handleGetSchema handles the get_schema tool call
func (s *MCPServer) handleGetSchema(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetSchemaArgs],
) (*mcp.CallToolResultFor[apptype.GraphSchema], error) {
	done := metrics.TimeTool("get_schema")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	schema, err := s.db.GetSchema(ctx, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.GraphSchema]{
		Content:           []mcp.Content{&mcp.TextContent{Text: database.SchemaString(schema)}},
		StructuredContent: schema,
	}, nil
}

// handleStructuredQuery handles the structured_query tool call
func (s *MCPServer) handleStructuredQuery(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.StructuredQueryArgs],
) (*mcp.CallToolResultFor[apptype.StructuredQueryResult], error) {
	done := metrics.TimeTool("structured_query")
	var success bool
	defer func() { done(success) }()
	projectName := s.getProjectName(params.Arguments.ProjectArgs.ProjectName)

	rows, err := s.db.StructuredQuery(ctx, projectName, params.Arguments.Query, params.Arguments.Params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.StructuredQueryResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d rows", len(rows))}},
		StructuredContent: apptype.StructuredQueryResult{Rows: rows},
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()
	cfg := s.db.Config()
	caps := s.db.Capabilities()
	// observe current pool gauges
	metrics.Default().ObservePoolStats(s.db.PoolStats())
	dims, err := s.db.EmbeddingDims(ctx, s.getProjectName(params.Arguments.ProjectArgs.ProjectName))
	if err != nil {
		slog.Warn("health check could not resolve project", "error", err)
		dims = cfg.EmbeddingDims
	}
	res := apptype.HealthResult{
		Name:            buildinfo.Name,
		Version:         buildinfo.Version,
		Revision:        buildinfo.Revision,
		BuildDate:       buildinfo.BuildDate,
		MultiProject:    cfg.MultiProjectMode,
		EmbeddingDims:   dims,
		PgvectorVersion: caps.PgvectorVersion,
		HNSW:            caps.HNSW,
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: res,
	}, nil
}

// reportPoolStats publishes pool gauges until ctx is cancelled
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(poolStatsEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.Default().ObservePoolStats(s.db.PoolStats())
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.reportPoolStats(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.reportPoolStats(ctx)
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("SSE MCP server listening", "addr", addr, "endpoint", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
