package embeddings

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

// Gemini Generative Language API, batched through :batchEmbedContents.
// Docs: https://ai.google.dev/api/embeddings
const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiProvider struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	// requestDims is sent as outputDimensionality when overridden
	requestDims int
	http        *http.Client
}

func newGeminiFromEnv() Provider {
	apiKey := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if apiKey == "" {
		return nil
	}
	model := strings.TrimPrefix(envOrDefault("GEMINI_EMBEDDINGS_MODEL", "text-embedding-004"), "models/")
	p := &geminiProvider{
		baseURL: strings.TrimRight(envOrDefault("GEMINI_BASE_URL", defaultGeminiBaseURL), "/"),
		apiKey:  apiKey,
		model:   model,
		dims:    768,
		http:    &http.Client{Timeout: envTimeout(15*time.Second, "GEMINI_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")},
	}
	if n := envInt("GEMINI_EMBEDDINGS_DIMS", 0); n > 0 {
		p.dims = n
		p.requestDims = n
	}
	return p
}

func (p *geminiProvider) Name() string    { return "gemini" }
func (p *geminiProvider) Dimensions() int { return p.dims }

func (p *geminiProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	requests := make([]map[string]any, 0, len(inputs))
	for _, in := range inputs {
		r := map[string]any{
			"model":   "models/" + p.model,
			"content": map[string]any{"parts": []map[string]string{{"text": in}}},
		}
		if p.requestDims > 0 {
			r["outputDimensionality"] = p.requestDims
		}
		requests = append(requests, r)
	}
	var out struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	url := p.baseURL + "/models/" + p.model + ":batchEmbedContents"
	headers := map[string]string{"x-goog-api-key": p.apiKey}
	if err := postJSON(ctx, p.http, "gemini", url, headers, map[string]any{"requests": requests}, &out); err != nil {
		return nil, err
	}
	if err := checkCount("gemini", len(out.Embeddings), len(inputs)); err != nil {
		return nil, err
	}
	res := make([][]float32, 0, len(out.Embeddings))
	for _, e := range out.Embeddings {
		res = append(res, f64to32(e.Values))
	}
	return res, nil
}
