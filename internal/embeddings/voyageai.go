package embeddings

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

// Voyage AI embeddings. Docs: https://docs.voyageai.com/reference/embeddings-api
const defaultVoyageBaseURL = "https://api.voyageai.com/v1"

type voyageProvider struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	// requestDims is sent as output_dimension when overridden
	requestDims int
	http        *http.Client
}

func newVoyageFromEnv() Provider {
	// support VOYAGEAI_API_KEY and VOYAGE_API_KEY
	key := strings.TrimSpace(os.Getenv("VOYAGEAI_API_KEY"))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("VOYAGE_API_KEY"))
	}
	if key == "" {
		return nil
	}
	model := envOrDefault("VOYAGEAI_EMBEDDINGS_MODEL", "voyage-3-lite")
	dims := 1024
	if strings.HasSuffix(model, "-lite") {
		dims = 512
	}
	p := &voyageProvider{
		baseURL: strings.TrimRight(envOrDefault("VOYAGEAI_BASE_URL", defaultVoyageBaseURL), "/"),
		apiKey:  key,
		model:   model,
		dims:    dims,
		http:    &http.Client{Timeout: envTimeout(15*time.Second, "VOYAGEAI_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")},
	}
	if n := envInt("VOYAGEAI_EMBEDDINGS_DIMS", 0); n > 0 {
		p.dims = n
		p.requestDims = n
	}
	return p
}

func (p *voyageProvider) Name() string    { return "voyageai" }
func (p *voyageProvider) Dimensions() int { return p.dims }

func (p *voyageProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	payload := map[string]any{"input": inputs, "model": p.model}
	if p.requestDims > 0 {
		payload["output_dimension"] = p.requestDims
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.http, "voyageai", p.baseURL+"/embeddings", headers, payload, &out); err != nil {
		return nil, err
	}
	if err := checkCount("voyageai", len(out.Data), len(inputs)); err != nil {
		return nil, err
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	res := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res = append(res, f64to32(d.Embedding))
	}
	return res, nil
}
