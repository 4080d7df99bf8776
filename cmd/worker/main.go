package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"paperlens/internal/activities"
	"paperlens/internal/app"
	"paperlens/internal/config"
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
	if err := cfg.RequireSharedStore(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: log})
	if err != nil {
		log.Fatal("temporal dial failed", "error", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	components, err := app.Build(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer components.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(components.Pipeline, log))

	log.Info("paperlens worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "llm_providers", cfg.LLMProviders, "embed_providers", cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker stopped", "error", err)
	}
}
