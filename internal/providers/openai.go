package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves chat generation and embeddings from the OpenAI API.
type OpenAIProvider struct {
	*chatClient
	embedModel openai.EmbeddingModel
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	apiKey := resolveKey("PAPERLENS_OPENAI_KEY_", keyName, "OPENAI_API_KEY")
	return &OpenAIProvider{
		chatClient: newChatClient("openai", keyName, apiKey, envOr("PAPERLENS_OPENAI_BASE_URL", ""), envOr("PAPERLENS_OPENAI_MODEL", "gpt-4o-mini")),
		embedModel: openai.EmbeddingModel(envOr("PAPERLENS_OPENAI_EMBED_MODEL", string(openai.SmallEmbedding3))),
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: string(o.embedModel), Key: o.keyName}
	if o.client == nil {
		return nil, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      req.Inputs,
		Model:      o.embedModel,
		Dimensions: req.Dimension,
	})
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, info, fmt.Errorf("openai embedding index %d out of range", d.Index)
		}
		out[d.Index] = matchDimension(d.Embedding, req.Dimension)
	}
	return out, info, nil
}
