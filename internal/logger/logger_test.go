package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsHashesUID(t *testing.T) {
	out := sanitizeKVs([]interface{}{"uid", "alice", "job_id", "j1", "api_key", "sk-123"})
	if len(out) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(out))
	}
	if got := out[1].(string); !strings.HasPrefix(got, "hash:") || strings.Contains(got, "alice") {
		t.Fatalf("uid not hashed: %q", got)
	}
	if out[3] != "j1" {
		t.Fatalf("job_id should pass through, got %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("api key should be redacted, got %v", out[5])
	}
}

func TestHashIDStable(t *testing.T) {
	if HashID("bob") != HashID("bob") {
		t.Fatalf("hash must be stable")
	}
	if HashID("bob") == HashID("carol") {
		t.Fatalf("distinct ids should hash differently")
	}
	if HashID("") != "" {
		t.Fatalf("empty id should hash to empty")
	}
}

func TestOddKVsKeepTrailingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"stage", "summarize", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %#v", out)
	}
}
