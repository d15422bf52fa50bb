package embeddings

import (
	"net/http"
	"os"
	"strings"
	"time"
)

// newLocalAIFromEnv points the OpenAI-compatible client at a LocalAI or
// llama.cpp server. No API key is required.
func newLocalAIFromEnv() Provider {
	model := strings.TrimSpace(os.Getenv("LOCALAI_EMBEDDINGS_MODEL"))
	if model == "" {
		model = "text-embedding-ada-002"
	}
	return &openAIProvider{
		name:    "localai",
		baseURL: strings.TrimRight(envOrDefault("LOCALAI_BASE_URL", "http://localhost:8080/v1"), "/"),
		model:   model,
		dims:    envInt("LOCALAI_EMBEDDINGS_DIMS", openAIModelDims(model)),
		http:    &http.Client{Timeout: envTimeout(15*time.Second, "LOCALAI_HTTP_TIMEOUT", "EMBEDDINGS_HTTP_TIMEOUT")},
		apiKey:  strings.TrimSpace(os.Getenv("LOCALAI_API_KEY")),
	}
}
