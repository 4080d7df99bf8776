package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOllamaModels(t *testing.T) {
	t.Setenv("PAPERLENS_OLLAMA_EMBED_MODEL", "")
	t.Setenv("PAPERLENS_OLLAMA_MODEL", "")
	require.Equal(t, "nomic-embed-text", resolveOllamaEmbedModel(""))
	require.Equal(t, "bge-small-en-v1.5", resolveOllamaEmbedModel("bge"))
	require.Equal(t, "mxbai-embed-large", resolveOllamaEmbedModel("mxbai-embed-large"))
	require.Equal(t, "llama3.1", resolveOllamaModel("nomic-embed-text"))
	require.Equal(t, "qwen2.5:7b", resolveOllamaModel("qwen2.5:7b"))
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	require.Equal(t, []float32{1, 2}, matchDimension(src, 2))
	require.Equal(t, []float32{1, 2, 3, 0, 0}, matchDimension(src, 5))
	require.Equal(t, src, matchDimension(src, 0))
}

func TestOllamaGenerateAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/api/generate":
			if body["stream"] != false {
				http.Error(w, "streaming not supported", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "generated: " + body["model"].(string)})
		case "/api/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.25, 0.125, 1}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("PAPERLENS_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("PAPERLENS_OLLAMA_MODEL", "")

	p := NewOllamaProvider("")
	resp, info, err := p.Generate(context.Background(), GenerateRequest{Operation: OpAnswer, Prompt: "q", Context: []string{"c"}})
	require.NoError(t, err)
	require.Equal(t, "generated: llama3.1", resp.Text)
	require.Equal(t, "ollama", info.Name)

	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 3})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 3)
}
