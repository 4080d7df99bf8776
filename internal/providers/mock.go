package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// MockProvider produces deterministic, schema-shaped output derived from the
// supplied material so the full pipeline runs without a model.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	material := strings.TrimSpace(strings.Join(req.Context, "\n\n"))
	sentences := splitSentences(material)
	var text string
	switch req.Operation {
	case OpChunkSummary:
		text = strings.Join(firstN(sentences, 3), " ")
	case OpReduceSummary:
		text = mustJSON(map[string]any{
			"abstract":    strings.Join(firstN(sentences, 2), " "),
			"objectives":  matching(sentences, 2, "aim", "goal", "objective", "propose", "study"),
			"methodology": strings.Join(matching(sentences, 2, "method", "using", "approach", "we train", "we evaluate"), " "),
			"findings":    strings.Join(matching(sentences, 2, "found", "show", "result", "improve", "outperform"), " "),
			"limitations": strings.Join(matching(sentences, 1, "limitation", "however", "future work"), " "),
			"key_points":  firstN(sentences, 3),
		})
	case OpInsights:
		text = mustJSON(map[string]any{
			"findings":     matching(sentences, 3, "found", "show", "result", "improve", "outperform"),
			"methods":      matching(sentences, 3, "method", "using", "approach", "evaluat", "train"),
			"datasets":     matching(sentences, 3, "dataset", "corpus", "benchmark"),
			"limitations":  matching(sentences, 2, "limitation", "however"),
			"implications": matching(sentences, 2, "implication", "suggest", "enable"),
			"citations":    []string{},
		})
	case OpSectionSummaries:
		sections := []map[string]string{}
		if len(sentences) > 0 {
			sections = append(sections, map[string]string{"section": "Overview", "content": strings.Join(firstN(sentences, 3), " ")})
		}
		text = mustJSON(sections)
	case OpRewriteParagraph:
		text = "In plain terms: " + strings.Join(firstN(sentences, 2), " ")
	case OpConcepts:
		concepts := []map[string]string{}
		for _, term := range keyTerms(material, 3) {
			concepts = append(concepts, map[string]string{"concept": term, "description": "A term used in the paper: " + term + "."})
		}
		text = mustJSON(concepts)
	case OpCompressContext:
		text = material
		if r := []rune(text); len(r) > 2000 {
			text = string(r[:2000])
		}
	case OpAnswer:
		text = mustJSON(map[string]any{
			"answer":  "Based on the provided context: " + strings.Join(firstN(sentences, 2), " "),
			"sources": []any{},
		})
	case OpGeneralAnswer:
		text = mustJSON(map[string]any{
			"answer":  "No stored research matched; answering generally. " + strings.Join(firstN(sentences, 1), " "),
			"sources": []any{},
		})
	default:
		text = "Mock response to: " + strings.TrimSpace(req.Prompt)
	}
	return GenerateResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		if r == '\n' {
			r = ' '
		}
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); len(s) > 1 {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string{}, items...)
}

func matching(sentences []string, limit int, words ...string) []string {
	out := []string{}
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, w := range words {
			if strings.Contains(lower, w) {
				out = append(out, s)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func keyTerms(text string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' }) {
		if len([]rune(w)) < 4 || !unicode.IsUpper([]rune(w)[0]) {
			continue
		}
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
