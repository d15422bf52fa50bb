package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// NewFromEnv constructs a provider based on environment variables.
// EMBEDDINGS_PROVIDER: "openai", "ollama", "gemini", "vertexai", "voyageai",
// "localai", "static", or empty for disabled.
func NewFromEnv() Provider {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER")))
	var p Provider
	switch name {
	case "":
		return nil
	case "openai":
		p = newOpenAIFromEnv()
	case "ollama":
		p = newOllamaFromEnv()
	case "gemini", "google-gemini", "google_genai", "google":
		p = newGeminiFromEnv()
	case "vertex", "vertexai", "google-vertex":
		p = newVertexFromEnv()
	case "voyage", "voyageai":
		p = newVoyageFromEnv()
	case "localai", "llamacpp", "llama.cpp":
		p = newLocalAIFromEnv()
	case "static", "fake":
		p = &StaticProvider{N: envInt("EMBEDDING_DIMS", 0)}
	default:
		slog.Warn("unknown embeddings provider, generation disabled", "provider", name)
		return nil
	}
	if p == nil {
		slog.Warn("embeddings provider is not configured, generation disabled", "provider", name)
		return nil
	}
	slog.Info("embeddings provider enabled", "provider", p.Name(), "dims", p.Dimensions())
	return p
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return def
}

// envTimeout reads a Go duration ("60s") or plain seconds ("60") from the
// first set key, falling back to def.
func envTimeout(def time.Duration, keys ...string) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func f64to32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// postJSON sends payload to url and decodes a 2xx response into out. Error
// bodies of the common {"error":{"message":...}} shape are surfaced.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var b struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		switch {
		case b.Error.Message != "":
			return fmt.Errorf("%s embeddings error: %s", provider, b.Error.Message)
		case b.Detail != "":
			return fmt.Errorf("%s embeddings error: %s", provider, b.Detail)
		}
		return fmt.Errorf("%s embeddings http status: %s", provider, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s embeddings: %w", provider, err)
	}
	return nil
}

// checkCount guards against providers silently dropping inputs
func checkCount(provider string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s returned %d embeddings for %d inputs", provider, got, want)
	}
	return nil
}
