package storage

import (
	"context"
	"fmt"

	"paperlens/internal/logger"
	"paperlens/internal/providers"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

// RecordCall stores one model call. The uid is stored hashed.
func (r *LLMAuditRepo) RecordCall(ctx context.Context, rec providers.CallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, uid_hash, doc_id, job_id, provider_name, model, status, error_type, latency_ms)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6, $7, NULLIF($8,''), $9)`,
		rec.Operation, logger.HashID(rec.UID), rec.DocID, rec.JobID, rec.Provider.Name, rec.Provider.Model, rec.Status, string(rec.ErrorType), rec.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
