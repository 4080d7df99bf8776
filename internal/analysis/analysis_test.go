package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"paperlens/internal/insights"
	"paperlens/internal/jobs"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/semantic"
	"paperlens/internal/summarize"
	"paperlens/internal/util"
)

const twoPagePaper = `Abstract. We propose SparseRAG, a retrieval method for scientific question answering. We evaluated SparseRAG using dataset SciQA and found that it improves answer accuracy by 7 points.

Introduction. Question answering over papers requires grounding answers in retrieved evidence, and existing dense retrievers miss rare terminology that matters in scientific text.

Methods. Our approach combines a sparse lexical index with a dense re-ranker. We train the re-ranker on SciQA and evaluate on three benchmarks using exact match and F1 as the metrics of interest.

Results. SparseRAG outperforms dense baselines on all three benchmarks. However, latency grows with index size, which is a limitation for very large corpora.`

type fakeExtractor struct {
	text string
	err  error
	boom bool
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	if f.boom {
		panic("corrupt xref table")
	}
	return f.text, f.err
}

type fakeDownloader struct {
	path string
	err  error
}

func (f fakeDownloader) Download(ctx context.Context, url string) (string, error) {
	return f.path, f.err
}

type env struct {
	pipeline *Pipeline
	store    *semantic.Store
	registry *jobs.Registry
	orch     *Orchestrator
	dataOut  string
	pdf      string
}

func newEnv(t *testing.T, llm providers.LLMProvider, ext fakeExtractor, dl fakeDownloader) *env {
	t.Helper()
	log := logger.NewNop()
	dir := t.TempDir()
	pdf := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))
	if dl.path == "" {
		dl.path = pdf
	}
	store := semantic.NewStore(semantic.NewMemoryBackend(), providers.NewMockProvider(32), semantic.Options{Dimension: 32, BatchSize: 4}, log)
	sum := summarize.New(llm, summarize.Options{ChunkSize: 300, Overlap: 30, Concurrency: 3}, log)
	ins := insights.New(llm, insights.DefaultOptions(), log)
	dataOut := filepath.Join(dir, "out")
	p := NewPipeline(dl, ext, sum, ins, store, dataOut, log)
	reg := jobs.NewRegistry()
	return &env{pipeline: p, store: store, registry: reg, orch: NewOrchestrator(p, reg, log), dataOut: dataOut, pdf: pdf}
}

func (e *env) runJob(t *testing.T, req Request) models.AnalysisJob {
	t.Helper()
	id, err := e.orch.Submit(context.Background(), req)
	require.NoError(t, err)
	e.orch.Wait()
	job, err := e.orch.Status(context.Background(), id)
	require.NoError(t, err)
	return job
}

func TestAnalyzeCompletesWithSummaryAndChunks(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{})

	job := e.runJob(t, Request{UID: "alice", Path: e.pdf, Meta: models.PaperMeta{Title: "SparseRAG"}})
	require.Equal(t, models.JobCompleted, job.Status, job.Error)
	require.Equal(t, 100, job.Progress)
	require.Empty(t, job.Error)
	res := job.Result
	require.NotNil(t, res)
	require.NotEqual(t, "N/A", res.Summary.Abstract)
	require.NotEmpty(t, res.Summary.KeyPoints)
	require.Equal(t, "SparseRAG", res.Summary.Meta.Title)
	require.False(t, res.Insights.IsRaw())
	require.NotEmpty(t, res.DocID)
	require.Positive(t, res.ChunkCount)
	require.Empty(t, res.Warnings)

	paper, ok, err := e.store.GetPaper(context.Background(), "alice", res.DocID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SparseRAG", paper.Title)

	chunks, err := e.store.QueryChunks(context.Background(), "alice", "SparseRAG accuracy", 1000, []string{res.DocID})
	require.NoError(t, err)
	require.Len(t, chunks, res.ChunkCount)

	hashed := strings.TrimPrefix(logger.HashID("alice"), "hash:")
	_, err = os.Stat(filepath.Join(e.dataOut, hashed, res.DocID, "analysis.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(e.dataOut, hashed, res.DocID, "chunks.jsonl"))
	require.NoError(t, err)

	saved, ok, err := e.pipeline.ReadArtifact("alice", res.DocID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res.DocID, saved.DocID)
	require.Equal(t, res.Summary.Abstract, saved.Summary.Abstract)
	require.Equal(t, res.ChunkCount, saved.ChunkCount)

	_, ok, err = e.pipeline.ReadArtifact("bob", res.DocID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadArtifactRejectsPathLikeIDs(t *testing.T) {
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{})
	for _, id := range []string{"", ".", "..", "../x", `a\b`} {
		_, _, err := e.pipeline.ReadArtifact("alice", id)
		require.ErrorIs(t, err, util.ErrInvalidInput, "doc id %q", id)
	}
	_, _, err := e.pipeline.ReadArtifact("", "d1")
	require.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{})
	var seen []int
	_, err := e.pipeline.Run(context.Background(), "job-1", Request{UID: "alice", Path: e.pdf}, func(p int, _ string) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	require.Equal(t, ProgressResolved, seen[0])
	require.Equal(t, ProgressEnriched, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1], "progress went backwards: %v", seen)
	}
}

func TestAnalyzeFailsWithoutExtractableText(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{err: errors.New("encrypted pdf")}, fakeDownloader{})
	job := e.runJob(t, Request{UID: "alice", Path: e.pdf})
	require.Equal(t, models.JobFailed, job.Status)
	require.Contains(t, job.Error, util.ErrNoExtractableText.Error())
	require.Nil(t, job.Result)
}

func TestAnalyzeFailsWhenDownloadFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{err: errors.New("404 not found")})
	job := e.runJob(t, Request{UID: "alice", Path: "https://example.org/paper.pdf"})
	require.Equal(t, models.JobFailed, job.Status)
	require.Contains(t, job.Error, "404 not found")
}

func TestAnalyzeDownloadsRemoteInput(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{})
	job := e.runJob(t, Request{UID: "alice", Path: "https://example.org/paper.pdf"})
	require.Equal(t, models.JobCompleted, job.Status, job.Error)
}

func TestAnalyzeModelFailureFailsJob(t *testing.T) {
	defer goleak.VerifyNone(t)
	llm := providers.LLMFunc(func(ctx context.Context, req providers.GenerateRequest) (string, error) {
		return "", errors.New("ollama unavailable")
	})
	e := newEnv(t, llm, fakeExtractor{text: twoPagePaper}, fakeDownloader{})
	job := e.runJob(t, Request{UID: "alice", Path: e.pdf})
	require.Equal(t, models.JobFailed, job.Status)
	require.Contains(t, job.Error, "ollama unavailable")
	require.GreaterOrEqual(t, job.Progress, ProgressSummarizing)
}

func TestAnalyzePanicBecomesFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{boom: true}, fakeDownloader{})
	job := e.runJob(t, Request{UID: "alice", Path: e.pdf})
	require.Equal(t, models.JobFailed, job.Status)
	require.Contains(t, job.Error, "corrupt xref table")
}

func TestSubmitValidatesSynchronously(t *testing.T) {
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{text: twoPagePaper}, fakeDownloader{})
	for _, req := range []Request{
		{Path: e.pdf},
		{UID: "alice"},
		{UID: "alice", Path: filepath.Join(t.TempDir(), "missing.pdf")},
		{UID: "alice", Path: t.TempDir()},
	} {
		_, err := e.orch.Submit(context.Background(), req)
		require.ErrorIs(t, err, util.ErrInvalidInput)
	}
	require.Zero(t, e.registry.Len())
}

func TestStatusUnknownJob(t *testing.T) {
	e := newEnv(t, providers.NewMockProvider(32), fakeExtractor{}, fakeDownloader{})
	job, err := e.orch.Status(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, models.JobNotFound, job.Status)
}
