package storage

import (
	"context"
	"fmt"
)

func schemaStatements(dim int) []string {
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS semantic_records (
  uid        text        NOT NULL,
  id         text        NOT NULL,
  doc_id     text        NOT NULL,
  kind       text        NOT NULL,
  payload    jsonb       NOT NULL,
  embedding  vector(%d)  NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (uid, id)
)`, dim),
		`CREATE INDEX IF NOT EXISTS semantic_records_doc_idx ON semantic_records (uid, doc_id)`,
		`CREATE INDEX IF NOT EXISTS semantic_records_kind_idx ON semantic_records (uid, kind)`,
		`
CREATE TABLE IF NOT EXISTS llm_calls (
  call_id       bigserial   PRIMARY KEY,
  operation     text        NOT NULL,
  uid_hash      text,
  doc_id        text,
  job_id        text,
  provider_name text        NOT NULL,
  model         text        NOT NULL,
  status        text        NOT NULL,
  error_type    text,
  latency_ms    bigint      NOT NULL,
  created_at    timestamptz NOT NULL DEFAULT now()
)`,
	}
}

// EnsureSchema creates the tables the postgres backend needs. The embedding
// column width is fixed at creation time.
func (d *DB) EnsureSchema(ctx context.Context, dim int) error {
	for _, stmt := range schemaStatements(dim) {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
