// Package insights derives typed insight lists from a summary and turns a
// paper into independently retrievable enrichment chunks.
package insights

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"paperlens/internal/jsonx"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
)

const skippedMarker = "\n...[skipped]...\n"

type Options struct {
	SectionWindow      int
	SectionHead        int
	SectionTail        int
	ParagraphMinLen    int
	ParagraphMax       int
	RewriteConcurrency int
	MinItemLen         int
}

func DefaultOptions() Options {
	return Options{
		SectionWindow:      20000,
		SectionHead:        15000,
		SectionTail:        5000,
		ParagraphMinLen:    100,
		ParagraphMax:       20,
		RewriteConcurrency: 4,
		MinItemLen:         8,
	}
}

type Section struct {
	Section string `json:"section"`
	Content string `json:"content"`
}

type Concept struct {
	Concept     string `json:"concept"`
	Description string `json:"description"`
}

type Extractor struct {
	llm  providers.LLMProvider
	opts Options
	log  *logger.Logger
}

func New(llm providers.LLMProvider, opts Options, log *logger.Logger) *Extractor {
	def := DefaultOptions()
	if opts.RewriteConcurrency <= 0 {
		opts.RewriteConcurrency = def.RewriteConcurrency
	}
	if opts.MinItemLen <= 0 {
		opts.MinItemLen = def.MinItemLen
	}
	if opts.SectionWindow <= 0 {
		opts.SectionWindow, opts.SectionHead, opts.SectionTail = def.SectionWindow, def.SectionHead, def.SectionTail
	}
	return &Extractor{llm: llm, opts: opts, log: log}
}

// ExtractInsights makes one model call. Unparseable output is kept as raw
// text. Only the model call itself can fail.
func (e *Extractor) ExtractInsights(ctx context.Context, summaryText string) (models.Insights, error) {
	raw, err := providers.GenerateText(ctx, e.llm, providers.OpInsights, insightsPrompt, summaryText)
	if err != nil {
		return models.Insights{}, fmt.Errorf("extract insights: %w", err)
	}
	obj := jsonx.ExtractObject(raw)
	if obj == nil {
		e.log.Warn("insights output not parseable, keeping raw text", "chars", len(raw))
		return models.RawInsights(strings.TrimSpace(raw)), nil
	}
	return models.StructuredOf(models.StructuredInsights{
		Findings:     stringList(obj["findings"]),
		Methods:      stringList(obj["methods"]),
		Datasets:     stringList(obj["datasets"]),
		Limitations:  stringList(obj["limitations"]),
		Implications: stringList(obj["implications"]),
		Citations:    stringList(obj["citations"]),
	}), nil
}

// ExtractSectionSummaries never fails. Long texts are cut to head and tail.
func (e *Extractor) ExtractSectionSummaries(ctx context.Context, fullText string) []Section {
	raw, err := providers.GenerateText(ctx, e.llm, providers.OpSectionSummaries, sectionsPrompt, e.window(fullText))
	if err != nil {
		e.log.Warn("section extraction failed", "error", err)
		return nil
	}
	var sections []Section
	if !jsonx.DecodeArray(raw, &sections) {
		e.log.Warn("section output not parseable", "chars", len(raw))
		return nil
	}
	out := sections[:0]
	for _, s := range sections {
		s.Section, s.Content = strings.TrimSpace(s.Section), strings.TrimSpace(s.Content)
		if s.Content != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *Extractor) window(text string) string {
	if utf8.RuneCountInString(text) <= e.opts.SectionWindow {
		return text
	}
	r := []rune(text)
	if e.opts.SectionHead+e.opts.SectionTail >= len(r) {
		return text
	}
	return string(r[:e.opts.SectionHead]) + skippedMarker + string(r[len(r)-e.opts.SectionTail:])
}

// Paragraphs returns the blank-line separated paragraphs eligible for
// rewriting, in document order.
func (e *Extractor) Paragraphs(fullText string) []string {
	var out []string
	for _, p := range strings.Split(fullText, "\n\n") {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) <= e.opts.ParagraphMinLen {
			continue
		}
		out = append(out, p)
		if e.opts.ParagraphMax > 0 && len(out) == e.opts.ParagraphMax {
			break
		}
	}
	return out
}

// Rewrite is one rewritten paragraph together with its index among the
// selected paragraphs.
type Rewrite struct {
	Index   int
	Content string
}

// RewriteParagraphs rewrites each paragraph independently. A failed
// paragraph is logged and skipped; the rest keep their input order.
func (e *Extractor) RewriteParagraphs(ctx context.Context, fullText string) []Rewrite {
	paragraphs := e.Paragraphs(fullText)
	results := make([]string, len(paragraphs))
	var g errgroup.Group
	g.SetLimit(e.opts.RewriteConcurrency)
	for idx, p := range paragraphs {
		g.Go(func() error {
			text, err := providers.GenerateText(ctx, e.llm, providers.OpRewriteParagraph, rewritePrompt, p)
			if err != nil {
				e.log.Warn("paragraph rewrite failed", "paragraph", idx, "error", err)
				return nil
			}
			results[idx] = strings.TrimSpace(text)
			return nil
		})
	}
	_ = g.Wait()
	out := make([]Rewrite, 0, len(results))
	for i, r := range results {
		if r != "" {
			out = append(out, Rewrite{Index: i, Content: r})
		}
	}
	return out
}

// ExtractConcepts never fails; any problem yields an empty list.
func (e *Extractor) ExtractConcepts(ctx context.Context, summaryText string) []Concept {
	raw, err := providers.GenerateText(ctx, e.llm, providers.OpConcepts, conceptsPrompt, summaryText)
	if err != nil {
		e.log.Warn("concept extraction failed", "error", err)
		return nil
	}
	var concepts []Concept
	if !jsonx.DecodeArray(raw, &concepts) {
		e.log.Warn("concept output not parseable", "chars", len(raw))
		return nil
	}
	out := concepts[:0]
	for _, c := range concepts {
		c.Concept, c.Description = strings.TrimSpace(c.Concept), strings.TrimSpace(c.Description)
		if c.Concept != "" {
			out = append(out, c)
		}
	}
	return out
}

// ExplodeInsights emits one chunk per list item, skipping degenerate items.
// Raw insights have no lists and produce nothing.
func (e *Extractor) ExplodeInsights(in models.Insights) []models.EnrichedChunk {
	s := in.Normalize()
	fields := []struct {
		kind  models.ChunkType
		items []string
	}{
		{models.ChunkFinding, s.Findings},
		{models.ChunkMethod, s.Methods},
		{models.ChunkDataset, s.Datasets},
		{models.ChunkLimitation, s.Limitations},
		{models.ChunkImplication, s.Implications},
		{models.ChunkCitation, s.Citations},
	}
	var out []models.EnrichedChunk
	for _, f := range fields {
		for _, item := range f.items {
			item = strings.TrimSpace(item)
			if utf8.RuneCountInString(item) < e.opts.MinItemLen {
				continue
			}
			out = append(out, models.EnrichedChunk{Type: f.kind, Content: item})
		}
	}
	return out
}

// Enrich runs the whole suite and returns chunks in a stable order: section
// summaries, paragraph rewrites, concepts, then exploded insights.
func (e *Extractor) Enrich(ctx context.Context, fullText string, summary models.StructuredSummary, in models.Insights) []models.EnrichedChunk {
	var out []models.EnrichedChunk
	for _, s := range e.ExtractSectionSummaries(ctx, fullText) {
		out = append(out, models.EnrichedChunk{Type: models.ChunkSectionSummary, Section: s.Section, Content: s.Content})
	}
	for _, r := range e.RewriteParagraphs(ctx, fullText) {
		idx := r.Index
		out = append(out, models.EnrichedChunk{Type: models.ChunkParagraphRewrite, Content: r.Content, ParagraphIndex: &idx})
	}
	for _, c := range e.ExtractConcepts(ctx, summary.Text()) {
		out = append(out, models.EnrichedChunk{Type: models.ChunkConcept, Concept: c.Concept, Content: c.Concept + ": " + c.Description})
	}
	out = append(out, e.ExplodeInsights(in)...)
	e.log.Debug("enrichment chunks built", "chunks", len(out))
	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			var s string
			switch x := it.(type) {
			case string:
				s = x
			case map[string]any:
				s = joinValues(x)
			case nil:
			default:
				s = fmt.Sprint(x)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

// joinValues flattens objects some models emit in place of plain strings,
// e.g. {"name": "ImageNet", "description": "..."}.
func joinValues(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range []string{"name", "title", "finding", "method", "dataset", "description", "text"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, ": ")
}
