package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"
)

type ollamaProvider struct {
	host  string
	model string
	dims  int
	http  *http.Client
}

func newOllamaFromEnv() Provider {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		return nil
	}
	model := os.Getenv("OLLAMA_EMBEDDINGS_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}
	// default to 60s to tolerate cold model loads
	timeout := envTimeout(60*time.Second, "OLLAMA_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")
	return &ollamaProvider{
		host:  host,
		model: model,
		dims:  envInt("OLLAMA_EMBEDDINGS_DIMS", 768),
		http:  &http.Client{Timeout: timeout},
	}
}

func (p *ollamaProvider) Name() string    { return "ollama" }
func (p *ollamaProvider) Dimensions() int { return p.dims }

// Embed prefers /api/embed (v0.2.6+) and falls back to the legacy
// single-input /api/embeddings endpoint when the server lacks it.
func (p *ollamaProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	base, err := url.Parse(p.host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST: %w", err)
	}

	status, body, err := p.post(ctx, base, "/api/embed", map[string]any{"model": p.model, "input": inputs})
	if err != nil && (isTimeout(err) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() == nil {
		// retry once on a cold model start
		status, body, err = p.post(ctx, base, "/api/embed", map[string]any{"model": p.model, "input": inputs})
	}
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return p.embedLegacy(ctx, base, inputs)
	}
	if err := ollamaStatusError(status, body); err != nil {
		return nil, err
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ollama embeddings: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func (p *ollamaProvider) embedLegacy(ctx context.Context, base *url.URL, inputs []string) ([][]float32, error) {
	results := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		status, body, err := p.post(ctx, base, "/api/embeddings", map[string]any{"model": p.model, "prompt": in})
		if err != nil {
			return nil, err
		}
		if err := ollamaStatusError(status, body); err != nil {
			return nil, err
		}
		var single struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("failed to decode ollama embedding: %w", err)
		}
		if len(single.Embedding) == 0 {
			return nil, fmt.Errorf("ollama returned no embedding")
		}
		results = append(results, f64to32(single.Embedding))
	}
	return results, nil
}

func (p *ollamaProvider) post(ctx context.Context, base *url.URL, endpoint string, payload any) (int, []byte, error) {
	u := *base
	u.Path = path.Join(u.Path, endpoint)
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func ollamaStatusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var b struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &b)
	if b.Error != "" {
		return fmt.Errorf("ollama error: %s", b.Error)
	}
	return fmt.Errorf("ollama http status: %d", status)
}

// isTimeout returns true if the error represents a timeout
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
