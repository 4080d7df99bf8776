// Package app wires configuration into the shared analysis, store and chat
// components used by both binaries.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paperlens/internal/analysis"
	"paperlens/internal/config"
	"paperlens/internal/insights"
	"paperlens/internal/logger"
	"paperlens/internal/pdftext"
	"paperlens/internal/providers"
	"paperlens/internal/rag"
	"paperlens/internal/semantic"
	"paperlens/internal/storage"
	"paperlens/internal/summarize"
)

type App struct {
	Store    *semantic.Store
	Pipeline *analysis.Pipeline
	RAG      *rag.Pipeline
	db       *storage.DB
}

// Build selects the store backend and model providers from cfg. With the
// postgres backend every model call is also written to the audit table.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	llm, llmRef := pm.LLM()
	embed, embedRef := pm.Embedder()

	a := &App{}
	var backend semantic.Backend
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory", "":
		backend = semantic.NewMemoryBackend()
	case "postgres":
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, cfg.EmbedDim); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		backend = storage.NewRecordRepo(db)
		llm = providers.NewAuditedLLM(llm, storage.NewLLMAuditRepo(db), func(err error) {
			log.Warn("llm audit write failed", "error", err)
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	a.Store = semantic.NewStore(backend, embed, semantic.Options{Dimension: cfg.EmbedDim, BatchSize: cfg.ChunkBatchSize}, log)
	sum := summarize.New(llm, summarize.Options{
		ChunkSize:   cfg.ChunkSize,
		Overlap:     cfg.ChunkOverlap,
		Concurrency: cfg.SummarizeConcurrency,
	}, log)
	ins := insights.New(llm, insights.Options{
		SectionWindow:      cfg.SectionWindow,
		SectionHead:        cfg.SectionHead,
		SectionTail:        cfg.SectionTail,
		ParagraphMinLen:    cfg.ParagraphMinLen,
		ParagraphMax:       cfg.ParagraphMax,
		RewriteConcurrency: cfg.RewriteConcurrency,
		MinItemLen:         insights.DefaultOptions().MinItemLen,
	}, log)
	downloader := pdftext.NewDownloader(cfg.DownloadDir, time.Duration(cfg.DownloadTimeoutSeconds)*time.Second)
	a.Pipeline = analysis.NewPipeline(downloader, pdftext.NewPDFExtractor(), sum, ins, a.Store, cfg.DataOutRoot, log)
	a.RAG = rag.New(a.Store, llm, rag.Options{
		TopK:              cfg.RAGTopK,
		CompressThreshold: cfg.CompressThreshold,
		CompressInputMax:  cfg.CompressInputMax,
		MaxSources:        cfg.MaxSources,
	}, log)

	log.Info("components ready",
		"store_backend", cfg.StoreBackend,
		"llm_provider", llmRef.Raw,
		"embed_provider", embedRef.Raw,
		"embed_dim", cfg.EmbedDim,
	)
	return a, nil
}

func (a *App) Close() {
	a.db.Close()
}
