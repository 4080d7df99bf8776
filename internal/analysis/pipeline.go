// Package analysis runs the paper analysis stages and tracks them as jobs.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"paperlens/internal/insights"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/pdftext"
	"paperlens/internal/semantic"
	"paperlens/internal/summarize"
	"paperlens/internal/util"
)

// Progress checkpoints reported as the stages advance.
const (
	ProgressResolved    = 5
	ProgressExtracted   = 15
	ProgressSummarizing = 25
	ProgressSummarized  = 60
	ProgressInsights    = 70
	ProgressStored      = 80
	ProgressEnriched    = 90
)

type Request struct {
	UID   string           `json:"uid"`
	Path  string           `json:"path"`
	DocID string           `json:"doc_id,omitempty"`
	Meta  models.PaperMeta `json:"metadata"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.UID) == "" {
		return util.InvalidInput("uid is required")
	}
	if strings.TrimSpace(r.Path) == "" {
		return util.InvalidInput("path is required")
	}
	if pdftext.IsRemote(r.Path) {
		return nil
	}
	info, err := os.Stat(r.Path)
	if err != nil {
		return util.InvalidInput("file not found: %s", r.Path)
	}
	if info.IsDir() {
		return util.InvalidInput("path is a directory: %s", r.Path)
	}
	return nil
}

type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

// ProgressFunc receives a checkpoint and a stage description.
type ProgressFunc func(progress int, message string)

type Pipeline struct {
	downloader Downloader
	extractor  pdftext.Extractor
	summarizer *summarize.Summarizer
	insights   *insights.Extractor
	store      *semantic.Store
	dataOut    string
	log        *logger.Logger
}

func NewPipeline(downloader Downloader, extractor pdftext.Extractor, summarizer *summarize.Summarizer, ins *insights.Extractor, store *semantic.Store, dataOut string, log *logger.Logger) *Pipeline {
	return &Pipeline{
		downloader: downloader,
		extractor:  extractor,
		summarizer: summarizer,
		insights:   ins,
		store:      store,
		dataOut:    dataOut,
		log:        log.With("component", "analysis"),
	}
}

// Resolve returns a local path, downloading remote inputs first.
func (p *Pipeline) Resolve(ctx context.Context, path string) (string, error) {
	if !pdftext.IsRemote(path) {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("resolve input: %w", err)
		}
		return path, nil
	}
	local, err := p.downloader.Download(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve input: %w", err)
	}
	return local, nil
}

// ExtractText degrades to empty text on failure; Summarize then reports
// the paper as having no extractable text.
func (p *Pipeline) ExtractText(ctx context.Context, path string) string {
	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		p.log.Warn("text extraction failed", "path", filepath.Base(path), "error", err)
		return ""
	}
	return text
}

func (p *Pipeline) Summarize(ctx context.Context, text string, meta models.PaperMeta, progress ProgressFunc) (models.StructuredSummary, error) {
	return p.summarizer.Summarize(ctx, text, meta, func(done, total int) {
		if progress != nil {
			step := (ProgressSummarized - ProgressSummarizing) * done / total
			progress(ProgressSummarizing+step, fmt.Sprintf("summarized chunk %d of %d", done, total))
		}
	})
}

func (p *Pipeline) ExtractInsights(ctx context.Context, summary models.StructuredSummary) (models.Insights, error) {
	return p.insights.ExtractInsights(ctx, summary.Text())
}

// Store persists the paper record and returns its doc id.
func (p *Pipeline) Store(ctx context.Context, req Request, summary models.StructuredSummary, in models.Insights) (string, error) {
	return p.store.UpsertPaper(ctx, req.UID, models.Paper{
		DocID:    req.DocID,
		Title:    summary.Meta.Title,
		Meta:     summary.Meta,
		Summary:  summary,
		Insights: in,
	})
}

// Enrich builds and stores the enrichment chunks. It never fails; problems
// come back in the report.
func (p *Pipeline) Enrich(ctx context.Context, uid, docID, text string, summary models.StructuredSummary, in models.Insights) ([]models.EnrichedChunk, semantic.ChunkWriteReport) {
	chunks := p.insights.Enrich(ctx, text, summary, in)
	rep, err := p.store.UpsertChunks(ctx, uid, semantic.ChunkBase{DocID: docID, Title: summary.Meta.Title}, chunks)
	if err != nil {
		rep.Errors = append(rep.Errors, err)
	}
	return chunks, rep
}

// WriteArtifact saves the result and chunks under the data directory. Write
// failures are logged only.
func (p *Pipeline) WriteArtifact(uid, key string, res models.AnalysisResult, chunks []models.EnrichedChunk) string {
	if p.dataOut == "" {
		return ""
	}
	dir := p.artifactDir(uid, key)
	if err := util.WriteJSONAtomic(filepath.Join(dir, "analysis.json"), res); err != nil {
		p.log.Warn("write analysis artifact failed", "uid", uid, "error", err)
		return ""
	}
	if len(chunks) > 0 {
		if err := util.WriteJSONLinesAtomic(filepath.Join(dir, "chunks.jsonl"), chunks); err != nil {
			p.log.Warn("write chunk artifact failed", "uid", uid, "error", err)
		}
	}
	return dir
}

// ReadArtifact loads the analysis.json written for docID. ok is false when
// nothing was written for that user and document.
func (p *Pipeline) ReadArtifact(uid, docID string) (models.AnalysisResult, bool, error) {
	var res models.AnalysisResult
	if strings.TrimSpace(uid) == "" {
		return res, false, util.InvalidInput("uid is required")
	}
	if docID == "" || docID == "." || docID == ".." || strings.ContainsAny(docID, `/\`) {
		return res, false, util.InvalidInput("invalid doc_id: %q", docID)
	}
	if p.dataOut == "" {
		return res, false, nil
	}
	b, err := os.ReadFile(filepath.Join(p.artifactDir(uid, docID), "analysis.json"))
	if errors.Is(err, os.ErrNotExist) {
		return res, false, nil
	}
	if err != nil {
		return res, false, fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(b, &res); err != nil {
		return res, false, fmt.Errorf("decode artifact: %w", err)
	}
	return res, true, nil
}

func (p *Pipeline) artifactDir(uid, key string) string {
	return filepath.Join(p.dataOut, strings.TrimPrefix(logger.HashID(uid), "hash:"), filepath.Base(key))
}

// Run executes every stage in order for one request.
func (p *Pipeline) Run(ctx context.Context, jobID string, req Request, progress ProgressFunc) (models.AnalysisResult, error) {
	report := func(pct int, msg string) {
		if progress != nil {
			progress(pct, msg)
		}
	}
	log := p.log.With("job_id", jobID, "uid", req.UID)

	path, err := p.Resolve(ctx, req.Path)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	report(ProgressResolved, "input resolved")

	text := p.ExtractText(ctx, path)
	report(ProgressExtracted, "text extracted")

	report(ProgressSummarizing, "summarizing")
	summary, err := p.Summarize(ctx, text, req.Meta, report)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("summarize: %w", err)
	}
	report(ProgressSummarized, "summary ready")

	in, err := p.ExtractInsights(ctx, summary)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	report(ProgressInsights, "insights extracted")

	res := models.AnalysisResult{Summary: summary, Insights: in}
	docID, err := p.Store(ctx, req, summary, in)
	if err != nil {
		log.Error("paper store failed, skipping enrichment", "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.DocID = docID
	report(ProgressStored, "paper stored")

	var chunks []models.EnrichedChunk
	if docID != "" && text != "" {
		var rep semantic.ChunkWriteReport
		chunks, rep = p.Enrich(ctx, req.UID, docID, text, summary, in)
		res.ChunkCount = rep.Written
		if err := rep.Err(); err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		report(ProgressEnriched, "enrichment stored")
	}

	key := docID
	if key == "" {
		key = jobID
	}
	p.WriteArtifact(req.UID, key, res, chunks)
	log.Info("analysis finished", "doc_id", docID, "chunks", res.ChunkCount)
	return res, nil
}
