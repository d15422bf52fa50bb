package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/database"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
	container     *tcpostgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

func testConnectionString(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL tests in short mode")
	}
	if conn := os.Getenv("POSTGRES_TEST_CONNECTION_STRING"); conn != "" {
		return conn
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		container, containerErr = tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
			tcpostgres.WithDatabase("graphstore_e2e"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if containerErr != nil {
			return
		}
		containerURL, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, containerErr)
	return containerURL
}

// startSSE serves a fresh manager over SSE and returns a connected client session
func startSSE(t *testing.T, allowRaw bool) (*mcp.ClientSession, string) {
	t.Helper()
	cfg := &database.Config{
		ConnectionString:      testConnectionString(t),
		ProjectsSchemaPrefix:  "e2e_",
		MultiProjectMode:      true,
		EntityTable:           "entities",
		RelationTable:         "relations",
		NodeTable:             "pg_nodes",
		PropertyRelationTable: "pg_relations",
		EmbeddingDims:         4,
		AllowRawQueries:       allowRaw,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dbm, err := database.NewDBManager(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbm.Close() })

	srv := NewMCPServer(dbm)
	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()
	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	project := "p_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	return session, project
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s failed: %+v", name, res.Content)
	return res
}

func TestSSEServer_ListTools(t *testing.T) {
	session, _ := startSSE(t, false)

	tools, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "triplet_upsert")
	assert.Contains(t, names, "vector_search")
	assert.Contains(t, names, "get_rel_map")
	assert.NotContains(t, names, "structured_query")
}

func TestSSEServer_PropertyGraphFlow(t *testing.T) {
	session, project := startSSE(t, true)
	projectArgs := map[string]any{"projectName": project}

	callTool(t, session, "upsert_nodes", map[string]any{
		"projectArgs": projectArgs,
		"nodes": []map[string]any{
			{"name": "Alice", "label": "Person", "kind": "entity"},
			{"id": "chunk1", "label": "Chunk", "kind": "chunk", "text": "hello", "embedding": []float32{0.1, 0.2, 0.3, 0.4}},
		},
	})
	callTool(t, session, "upsert_relations", map[string]any{
		"projectArgs": projectArgs,
		"relations":   []map[string]any{{"label": "CREATED", "sourceId": "Alice", "targetId": "chunk1"}},
	})

	res := callTool(t, session, "vector_search", map[string]any{
		"projectArgs": projectArgs,
		"query":       []float64{0.1, 0.2, 0.3, 0.4},
		"topK":        1,
	})
	require.NotEmpty(t, res.Content)

	res = callTool(t, session, "get_triplets", map[string]any{
		"projectArgs": projectArgs,
		"filter":      map[string]any{"entityNames": []string{"Alice"}},
	})
	require.NotEmpty(t, res.Content)
	assert.Equal(t, "Found 1 triplets", res.Content[0].(*mcp.TextContent).Text)

	res = callTool(t, session, "structured_query", map[string]any{
		"projectArgs": projectArgs,
		"query":       "SELECT count(*) AS n FROM {nodes}",
	})
	assert.Equal(t, "1 rows", res.Content[0].(*mcp.TextContent).Text)

	callTool(t, session, "delete", map[string]any{
		"projectArgs": projectArgs,
		"filter":      map[string]any{"ids": []string{"chunk1"}},
	})
	res = callTool(t, session, "get_triplets", map[string]any{"projectArgs": projectArgs})
	assert.Equal(t, "Found 0 triplets", res.Content[0].(*mcp.TextContent).Text)
}

func TestSSEServer_TripletFlow(t *testing.T) {
	session, project := startSSE(t, false)
	base := func(extra map[string]any) map[string]any {
		extra["projectArgs"] = map[string]any{"projectName": project}
		return extra
	}

	callTool(t, session, "triplet_upsert", base(map[string]any{"subject": "Alice", "relation": "KNOWS", "object": "Bob"}))
	res := callTool(t, session, "triplet_get", base(map[string]any{"subject": "Alice"}))
	assert.Equal(t, "Found 1 triplets", res.Content[0].(*mcp.TextContent).Text)

	callTool(t, session, "triplet_delete", base(map[string]any{"subject": "Alice", "relation": "KNOWS", "object": "Bob"}))
	res = callTool(t, session, "triplet_get", base(map[string]any{"subject": "Alice"}))
	assert.Equal(t, "Found 0 triplets", res.Content[0].(*mcp.TextContent).Text)

	health := callTool(t, session, "health_check", map[string]any{})
	assert.Equal(t, "ok", health.Content[0].(*mcp.TextContent).Text)
}
