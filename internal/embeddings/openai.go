package embeddings

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIProvider speaks the OpenAI /embeddings API, which LocalAI and other
// compatible servers also implement
type openAIProvider struct {
	name    string
	baseURL string
	model   string
	dims    int
	// requestDims is sent as "dimensions" when the user overrides the model default
	requestDims int
	http        *http.Client
	apiKey      string
}

func newOpenAIFromEnv() Provider {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil
	}
	model := os.Getenv("OPENAI_EMBEDDINGS_MODEL")
	if model == "" {
		model = "text-embedding-3-small"
	}
	p := &openAIProvider{
		name:    "openai",
		baseURL: strings.TrimRight(envOrDefault("OPENAI_BASE_URL", defaultOpenAIBaseURL), "/"),
		model:   model,
		dims:    openAIModelDims(model),
		http:    &http.Client{Timeout: envTimeout(15*time.Second, "OPENAI_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")},
		apiKey:  apiKey,
	}
	if n := envInt("OPENAI_EMBEDDINGS_DIMS", 0); n > 0 {
		p.dims = n
		p.requestDims = n
	}
	return p
}

func openAIModelDims(model string) int {
	if strings.Contains(model, "large") {
		return 3072
	}
	return 1536
}

func (p *openAIProvider) Name() string    { return p.name }
func (p *openAIProvider) Dimensions() int { return p.dims }

func (p *openAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	// Request: {"model": ..., "input": ["..."], "dimensions": n}
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	payload := map[string]any{
		"model": p.model,
		"input": inputs,
	}
	if p.requestDims > 0 {
		payload["dimensions"] = p.requestDims
	}
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := postJSON(ctx, p.http, p.name, p.baseURL+"/embeddings", headers, payload, &out); err != nil {
		return nil, err
	}
	if err := checkCount(p.name, len(out.Data), len(inputs)); err != nil {
		return nil, err
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
	res := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res = append(res, f64to32(d.Embedding))
	}
	return res, nil
}
