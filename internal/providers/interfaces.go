package providers

import "context"

// Operation names passed to providers. The mock provider keys its canned
// output off these and the audit log records them.
const (
	OpChunkSummary     = "chunk_summary"
	OpReduceSummary    = "reduce_summary"
	OpInsights         = "extract_insights"
	OpSectionSummaries = "section_summaries"
	OpRewriteParagraph = "rewrite_paragraph"
	OpConcepts         = "extract_concepts"
	OpCompressContext  = "rag_compress"
	OpAnswer           = "rag_answer"
	OpGeneralAnswer    = "general_answer"
	OpEmbedPaper       = "embed_paper"
	OpEmbedChunks      = "embed_chunks"
	OpEmbedQuery       = "embed_query"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest carries an instruction in Prompt and the material it
// applies to in Context.
type GenerateRequest struct {
	Operation string   `json:"operation"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// GenerateText is a convenience wrapper returning only the response text.
func GenerateText(ctx context.Context, p LLMProvider, op, prompt string, material ...string) (string, error) {
	resp, _, err := p.Generate(ctx, GenerateRequest{Operation: op, Prompt: prompt, Context: material})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func joinPrompt(req GenerateRequest) string {
	if len(req.Context) == 0 {
		return req.Prompt
	}
	out := req.Prompt + "\n\n"
	for i, c := range req.Context {
		if i > 0 {
			out += "\n\n"
		}
		out += c
	}
	return out
}

// LLMFunc adapts a plain function to LLMProvider.
type LLMFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f LLMFunc) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	text, err := f(ctx, req)
	return GenerateResponse{Text: text}, ProviderInfo{Name: "func"}, err
}
