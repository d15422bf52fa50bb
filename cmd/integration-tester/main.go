package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	Project    string       `json:"project"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	project := flag.String("project", "default", "Project name to use")
	dims := flag.Int("embedding-dims", 1536, "Embedding dimensionality the server was started with")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, Project: *project, StartedAt: start}
	steps := make([]StepResult, 0, 16)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	pa := apptype.ProjectArgs{ProjectName: *project}
	vec := make([]float32, *dims)
	vec[0] = 1

	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runHealth(ctx, session))

	// basic triplet store
	steps = append(steps, callStep(ctx, session, "triplet_upsert", apptype.TripletArgs{ProjectArgs: pa, Subject: "a", Relation: "r", Object: "b"}))
	steps = append(steps, callStep(ctx, session, "triplet_upsert", apptype.TripletArgs{ProjectArgs: pa, Subject: "b", Relation: "r", Object: "c"}))
	steps = append(steps, callStep(ctx, session, "triplet_get", apptype.TripletGetArgs{ProjectArgs: pa, Subject: "a"}))
	steps = append(steps, callStep(ctx, session, "triplet_rel_map", apptype.TripletRelMapArgs{ProjectArgs: pa, Subjects: []string{"a"}, Depth: 2}))
	steps = append(steps, callStep(ctx, session, "triplet_delete", apptype.TripletArgs{ProjectArgs: pa, Subject: "b", Relation: "r", Object: "c"}))

	// property graph store
	steps = append(steps, callStep(ctx, session, "upsert_nodes", apptype.UpsertNodesArgs{ProjectArgs: pa, Nodes: []apptype.Node{
		{Name: "n1", Label: "Thing", Kind: apptype.KindEntity, Properties: map[string]any{"k": "v"}},
		{Name: "n2", Label: "Thing", Kind: apptype.KindEntity},
		{ID: "chunk1", Kind: apptype.KindChunk, Text: "integration chunk", Embedding: vec},
	}}))
	steps = append(steps, callStep(ctx, session, "upsert_relations", apptype.UpsertRelationsArgs{ProjectArgs: pa, Relations: []apptype.Relation{
		{SourceID: "n1", TargetID: "n2", Label: "LINKS"},
		{SourceID: "n2", TargetID: "chunk1", Label: "MENTIONS"},
	}}))
	steps = append(steps, callStep(ctx, session, "get_nodes", apptype.GetNodesArgs{ProjectArgs: pa, Filter: apptype.NodeFilter{Properties: map[string]any{"k": "v"}}}))
	steps = append(steps, callStep(ctx, session, "get_triplets", apptype.GetTripletsArgs{ProjectArgs: pa, Filter: apptype.TripletFilter{EntityNames: []string{"n1"}}}))
	steps = append(steps, callStep(ctx, session, "get_rel_map", apptype.GetRelMapArgs{ProjectArgs: pa, NodeIDs: []string{"n1"}, Depth: 2}))
	steps = append(steps, callStep(ctx, session, "vector_search", apptype.VectorSearchArgs{ProjectArgs: pa, Query: vec, TopK: 1}))
	steps = append(steps, callStep(ctx, session, "get_schema", apptype.GetSchemaArgs{ProjectArgs: pa}))
	steps = append(steps, callStep(ctx, session, "delete", apptype.DeleteArgs{ProjectArgs: pa, Filter: apptype.TripletFilter{RelationNames: []string{"LINKS"}}}))
	steps = append(steps, callStep(ctx, session, "delete", apptype.DeleteArgs{ProjectArgs: pa, Filter: apptype.TripletFilter{IDs: []string{"n1", "n2", "chunk1"}}}))

	// finalize report
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(report Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	switch {
	case err != nil:
		res.Error = err.Error()
	case len(tools.Tools) == 0:
		res.Error = "server registered no tools"
	default:
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func runHealth(ctx context.Context, session *mcp.ClientSession) StepResult {
	return callStep(ctx, session, "health_check", apptype.HealthArgs{})
}

// callStep invokes a tool and records transport errors and tool errors alike
func callStep(ctx context.Context, session *mcp.ClientSession, tool string, args any) StepResult {
	t0 := time.Now()
	res := StepResult{Name: tool}
	raw, err := json.Marshal(args)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: json.RawMessage(raw)})
	switch {
	case err != nil:
		res.Error = err.Error()
	case out.IsError:
		res.Error = contentText(out.Content)
	default:
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("tool returned an error with %d content items", len(content))
	}
	return strings.Join(parts, "; ")
}

func elapsedMsSince(t0 time.Time) int64 {
	return time.Since(t0).Milliseconds()
}
