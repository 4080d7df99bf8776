package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider talks to a local Ollama daemon for generation and embeddings.
// The alias selects the model, e.g. ollama:nomic-embed-text or ollama:llama3.1.
type OllamaProvider struct {
	alias      string
	baseURL    string
	model      string
	embedModel string
	client     *http.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	return &OllamaProvider{
		alias:      alias,
		baseURL:    strings.TrimRight(envOr("PAPERLENS_OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		model:      resolveOllamaModel(alias),
		embedModel: resolveOllamaEmbedModel(alias),
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	var parsed struct {
		Response string `json:"response"`
	}
	err := o.post(ctx, "/api/generate", map[string]any{
		"model":  o.model,
		"system": systemPrompt,
		"prompt": joinPrompt(req),
		"stream": false,
	}, &parsed)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate: %w", err)
	}
	return GenerateResponse{Text: parsed.Response}, info, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.embedModel, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := o.post(ctx, "/api/embeddings", map[string]any{"model": o.embedModel, "prompt": text}, &parsed); err != nil {
			return nil, info, fmt.Errorf("ollama embedding: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, info, fmt.Errorf("ollama returned empty embedding")
		}
		out = append(out, matchDimension(parsed.Embedding, req.Dimension))
	}
	return out, info, nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("error %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func resolveOllamaModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" && !isEmbedModelName(alias) && strings.ContainsAny(alias, "-/.:") {
		return alias
	}
	return envOr("PAPERLENS_OLLAMA_MODEL", "llama3.1")
}

func resolveOllamaEmbedModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := envOr("PAPERLENS_OLLAMA_EMBED_MODEL_"+sanitizeEnvToken(alias), ""); v != "" {
			return v
		}
		switch strings.ToLower(alias) {
		case "nomic":
			return "nomic-embed-text"
		case "bge":
			return "bge-small-en-v1.5"
		}
		if isEmbedModelName(alias) {
			return alias
		}
	}
	return envOr("PAPERLENS_OLLAMA_EMBED_MODEL", "nomic-embed-text")
}

func isEmbedModelName(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "embed") || strings.HasPrefix(s, "bge")
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
