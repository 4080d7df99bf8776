package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"paperlens/internal/analysis"
	"paperlens/internal/api"
	"paperlens/internal/app"
	"paperlens/internal/config"
	"paperlens/internal/jobs"
	"paperlens/internal/logger"
	"paperlens/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	components, err := app.Build(initCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer components.Close()

	var runner analysis.Runner
	var orch *analysis.Orchestrator
	switch cfg.JobBackend {
	case "temporal":
		tc, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: log})
		if err != nil {
			log.Fatal("temporal dial failed", "error", err)
		}
		defer tc.Close()
		runner = workflows.NewTemporalRunner(tc, cfg.TemporalTaskQueue, log)
	default:
		orch = analysis.NewOrchestrator(components.Pipeline, jobs.NewRegistry(), log)
		runner = orch
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(runner, components.Store, components.RAG, components.Pipeline, cfg.DownloadDir, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("paperlens api listening", "addr", cfg.APIAddr, "job_backend", cfg.JobBackend, "llm_providers", cfg.LLMProviders, "embed_providers", cfg.EmbedProviders)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api server failed", "error", err)
	}
	if orch != nil {
		log.Info("waiting for running analyses")
		orch.Wait()
	}
}
