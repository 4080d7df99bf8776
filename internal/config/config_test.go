package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAPERLENS_CHUNK_SIZE", "")
	t.Setenv("PAPERLENS_RAG_TOP_K", "")
	cfg := Load()
	if cfg.ChunkSize != 4000 || cfg.ChunkOverlap != 300 {
		t.Fatalf("unexpected chunk defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 10 {
		t.Fatalf("expected top k 10, got %d", cfg.RAGTopK)
	}
	if cfg.JobBackend != "local" || cfg.StoreBackend != "memory" {
		t.Fatalf("unexpected backends: %s/%s", cfg.JobBackend, cfg.StoreBackend)
	}
}

func TestLoadIgnoresBadInts(t *testing.T) {
	t.Setenv("PAPERLENS_CHUNK_BATCH", "lots")
	t.Setenv("PAPERLENS_MAX_SOURCES", "3")
	cfg := Load()
	if cfg.ChunkBatchSize != 32 {
		t.Fatalf("expected fallback batch size, got %d", cfg.ChunkBatchSize)
	}
	if cfg.MaxSources != 3 {
		t.Fatalf("expected override, got %d", cfg.MaxSources)
	}
}

func TestValidateBackends(t *testing.T) {
	cases := []struct {
		name    string
		jobs    string
		store   string
		wantErr bool
	}{
		{"local memory", "local", "memory", false},
		{"local postgres", "local", "postgres", false},
		{"temporal postgres", "temporal", "postgres", false},
		{"temporal memory", "temporal", "memory", true},
		{"temporal default store", "temporal", "", true},
		{"unknown jobs", "cron", "postgres", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Config{JobBackend: tc.jobs, StoreBackend: tc.store}.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
