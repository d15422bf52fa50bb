package embeddings

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

// Vertex AI text embeddings via the :predict REST endpoint:
// https://{location}-aiplatform.googleapis.com/v1/projects/{project}/locations/{location}/publishers/google/models/{model}:predict
// The caller supplies the full endpoint and an OAuth2 access token.
type vertexProvider struct {
	endpoint string
	token    string
	dims     int
	http     *http.Client
}

func newVertexFromEnv() Provider {
	endpoint := strings.TrimSpace(os.Getenv("VERTEX_EMBEDDINGS_ENDPOINT"))
	token := strings.TrimSpace(os.Getenv("VERTEX_ACCESS_TOKEN"))
	if endpoint == "" || token == "" {
		return nil
	}
	return &vertexProvider{
		endpoint: endpoint,
		token:    token,
		dims:     envInt("VERTEX_EMBEDDINGS_DIMS", 768),
		http:     &http.Client{Timeout: envTimeout(15*time.Second, "VERTEX_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")},
	}
}

func (p *vertexProvider) Name() string    { return "vertexai" }
func (p *vertexProvider) Dimensions() int { return p.dims }

func (p *vertexProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	instances := make([]map[string]any, 0, len(inputs))
	for _, in := range inputs {
		instances = append(instances, map[string]any{"content": in})
	}
	var out struct {
		Predictions []struct {
			Embeddings struct {
				Values []float64 `json:"values"`
			} `json:"embeddings"`
		} `json:"predictions"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.token}
	if err := postJSON(ctx, p.http, "vertex", p.endpoint, headers, map[string]any{"instances": instances}, &out); err != nil {
		return nil, err
	}
	if err := checkCount("vertex", len(out.Predictions), len(inputs)); err != nil {
		return nil, err
	}
	res := make([][]float32, 0, len(out.Predictions))
	for _, pr := range out.Predictions {
		res = append(res, f64to32(pr.Embeddings.Values))
	}
	return res, nil
}
