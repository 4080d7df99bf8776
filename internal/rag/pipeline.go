// Package rag answers questions from a user's stored chunks: retrieve,
// compress, then generate with citations.
package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"paperlens/internal/jsonx"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

const noAnswer = "No answer generated."

type Retriever interface {
	QueryChunks(ctx context.Context, uid, query string, k int, docIDs []string) ([]models.EnrichedChunk, error)
}

type Options struct {
	TopK              int
	CompressThreshold int
	CompressInputMax  int
	MaxSources        int
}

func DefaultOptions() Options {
	return Options{TopK: 10, CompressThreshold: 4000, CompressInputMax: 12000, MaxSources: 10}
}

type Pipeline struct {
	retriever Retriever
	llm       providers.LLMProvider
	opts      Options
	log       *logger.Logger
}

func New(retriever Retriever, llm providers.LLMProvider, opts Options, log *logger.Logger) *Pipeline {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = def.CompressThreshold
	}
	if opts.CompressInputMax <= 0 {
		opts.CompressInputMax = def.CompressInputMax
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = def.MaxSources
	}
	return &Pipeline{retriever: retriever, llm: llm, opts: opts, log: log.With("component", "rag")}
}

// Answer retrieves chunks for the question and answers from them. With
// nothing retrieved it answers from general knowledge with no sources.
// Retrieval errors count as an empty retrieval; generation errors are
// returned.
func (p *Pipeline) Answer(ctx context.Context, uid, question string, docIDs []string) (models.Answer, error) {
	if uid == "" {
		return models.Answer{}, util.InvalidInput("uid is required")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return models.Answer{}, util.InvalidInput("message is required")
	}
	chunks, err := p.retriever.QueryChunks(ctx, uid, question, p.opts.TopK, docIDs)
	if err != nil {
		p.log.Warn("retrieval failed, answering without context", "uid", uid, "error", err)
		chunks = nil
	}
	if len(chunks) == 0 {
		return p.generalAnswer(ctx, question)
	}

	digest := p.Compress(ctx, chunks)
	raw, err := providers.GenerateText(ctx, p.llm, providers.OpAnswer, answerPrompt,
		"RESEARCH CONTEXT:\n"+digest, "USER QUESTION:\n"+question)
	if err != nil {
		return models.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	ans := parseAnswer(raw)
	if len(ans.Sources) == 0 {
		ans.Sources = p.synthesizeSources(chunks)
	}
	p.log.Debug("answer generated", "uid", uid, "chunks", len(chunks), "sources", len(ans.Sources))
	return ans, nil
}

func (p *Pipeline) generalAnswer(ctx context.Context, question string) (models.Answer, error) {
	raw, err := providers.GenerateText(ctx, p.llm, providers.OpGeneralAnswer, generalPrompt, "USER QUESTION:\n"+question)
	if err != nil {
		return models.Answer{}, fmt.Errorf("generate general answer: %w", err)
	}
	ans := parseAnswer(raw)
	// no grounding means no provenance to report
	ans.Sources = []models.Source{}
	return ans, nil
}

// Compress renders chunks with attribution headers. Short renderings are
// returned as is; longer ones are distilled by the model from a bounded
// prefix, falling back to a plain cut when that call fails.
func (p *Pipeline) Compress(ctx context.Context, chunks []models.EnrichedChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		title := c.Title
		if title == "" {
			title = "Unknown"
		}
		fmt.Fprintf(&b, "--- Source: %s (ID: %s, Type: %s) ---\n%s\n\n", title, c.DocID, c.Type, c.Content)
	}
	combined := b.String()
	if utf8.RuneCountInString(combined) < p.opts.CompressThreshold {
		return combined
	}
	input := truncateRunes(combined, p.opts.CompressInputMax)
	out, err := providers.GenerateText(ctx, p.llm, providers.OpCompressContext, compressPrompt, input)
	if err != nil || strings.TrimSpace(out) == "" {
		p.log.Warn("context compression failed, truncating", "error", err)
		return truncateRunes(combined, p.opts.CompressThreshold)
	}
	return out
}

func parseAnswer(raw string) models.Answer {
	ans := models.Answer{Sources: []models.Source{}}
	obj := jsonx.ExtractObject(raw)
	if obj == nil {
		ans.Answer = strings.TrimSpace(raw)
	} else {
		ans.Answer = answerText(obj["answer"])
		ans.Sources = decodeSources(obj["sources"])
	}
	if ans.Answer == "" {
		ans.Answer = noAnswer
	}
	return ans
}

func answerText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			if s := str(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// decodeSources keeps well-formed source objects and drops anything else the
// model put in the field. A lone object counts as a one-item list.
func decodeSources(v any) []models.Source {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	}
	out := []models.Source{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		s := models.Source{
			Title:     str(m["title"]),
			DocID:     str(m["doc_id"]),
			ChunkType: models.ChunkType(str(m["chunk_type"])),
			Section:   str(m["section"]),
		}
		if s.Title == "" && s.DocID == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (p *Pipeline) synthesizeSources(chunks []models.EnrichedChunk) []models.Source {
	seen := map[string]bool{}
	out := []models.Source{}
	for _, c := range chunks {
		if c.DocID == "" {
			continue
		}
		key := c.DocID + "\x00" + string(c.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		title := c.Title
		if title == "" {
			title = "Unknown"
		}
		out = append(out, models.Source{Title: title, DocID: c.DocID, ChunkType: c.Type, Section: c.Section})
		if len(out) == p.opts.MaxSources {
			break
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
