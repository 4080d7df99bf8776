// Package summarize condenses paper text with a map-reduce over fixed-size chunks.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"paperlens/internal/jsonx"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

const notAvailable = "N/A"

type Options struct {
	ChunkSize   int
	Overlap     int
	Concurrency int
}

type Summarizer struct {
	llm  providers.LLMProvider
	opts Options
	log  *logger.Logger
}

func New(llm providers.LLMProvider, opts Options, log *logger.Logger) *Summarizer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Summarizer{llm: llm, opts: opts, log: log}
}

// Summarize splits text, summarizes every chunk and reduces the partials.
// onDone is passed through to SummarizeChunks.
func (s *Summarizer) Summarize(ctx context.Context, text string, meta models.PaperMeta, onDone func(done, total int)) (models.StructuredSummary, error) {
	if strings.TrimSpace(text) == "" {
		return models.StructuredSummary{}, util.ErrNoExtractableText
	}
	chunks := util.Split(text, s.opts.ChunkSize, s.opts.Overlap)
	partials, err := s.SummarizeChunks(ctx, chunks, onDone)
	if err != nil {
		return models.StructuredSummary{}, err
	}
	return s.Reduce(ctx, partials, meta)
}

// SummarizeChunks makes one model call per chunk. Output order matches input
// order. Any failed chunk fails the whole call. onDone, when set, is called
// after each chunk completes with the number finished so far.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks []string, onDone func(done, total int)) ([]string, error) {
	out := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	progress := make(chan struct{}, len(chunks))
	for idx, chunk := range chunks {
		g.Go(func() error {
			text, err := providers.GenerateText(gctx, s.llm, providers.OpChunkSummary, chunkPrompt, chunk)
			if err != nil {
				return fmt.Errorf("summarize chunk %d/%d: %w", idx+1, len(chunks), err)
			}
			out[idx] = strings.TrimSpace(text)
			progress <- struct{}{}
			return nil
		})
	}
	errc := make(chan error, 1)
	go func() {
		errc <- g.Wait()
		close(progress)
	}()
	done := 0
	for range progress {
		done++
		if onDone != nil {
			onDone(done, len(chunks))
		}
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	s.log.Debug("chunks summarized", "chunks", len(chunks))
	return out, nil
}

// Reduce merges partial summaries into the fixed schema. Missing or empty
// fields get defaults and caller metadata replaces anything the model wrote.
func (s *Summarizer) Reduce(ctx context.Context, partials []string, meta models.PaperMeta) (models.StructuredSummary, error) {
	raw, err := providers.GenerateText(ctx, s.llm, providers.OpReduceSummary, reducePrompt, strings.Join(partials, "\n\n"))
	if err != nil {
		return models.StructuredSummary{}, fmt.Errorf("reduce summaries: %w", err)
	}
	obj := jsonx.ExtractObject(raw)
	if obj == nil {
		s.log.Warn("summary output not parseable, using defaults", "chars", len(raw))
		obj = map[string]any{}
	}
	summary := models.StructuredSummary{
		Abstract:    scalarField(obj, "abstract"),
		Objectives:  listField(obj, "objectives"),
		Methodology: scalarField(obj, "methodology"),
		Findings:    scalarField(obj, "findings"),
		Limitations: scalarField(obj, "limitations"),
		KeyPoints:   listField(obj, "key_points"),
	}
	if len(obj) == 0 {
		summary.RawOutput = strings.TrimSpace(raw)
	}
	if meta.Title == "" {
		if t, ok := obj["title"].(string); ok {
			meta.Title = strings.TrimSpace(t)
		}
	}
	summary.Meta = meta
	return summary, nil
}

func scalarField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case []any:
		if items := toStrings(v); len(items) > 0 {
			return strings.Join(items, " ")
		}
	case float64:
		if v != 0 {
			return fmt.Sprint(v)
		}
	case bool:
		if v {
			return fmt.Sprint(v)
		}
	}
	return notAvailable
}

func listField(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case []any:
		return toStrings(v)
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

func toStrings(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		switch v := it.(type) {
		case string:
			s = v
		case nil:
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
