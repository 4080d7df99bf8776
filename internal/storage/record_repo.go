package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperlens/internal/semantic"
)

// RecordRepo stores semantic records in one table partitioned by the uid
// column. Every statement filters on uid.
type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) Upsert(ctx context.Context, uid string, recs []semantic.Record) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(`
INSERT INTO semantic_records (uid, id, doc_id, kind, payload, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (uid, id)
DO UPDATE SET
  doc_id = EXCLUDED.doc_id,
  kind = EXCLUDED.kind,
  payload = EXCLUDED.payload,
  embedding = EXCLUDED.embedding,
  updated_at = now()`,
			uid, rec.ID, rec.DocID, string(rec.Kind), []byte(rec.Payload), pgvector.NewVector(rec.Vector))
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert records: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit records tx: %w", err)
	}
	return nil
}

// buildQuery applies the kind and doc id filters in WHERE so they are part
// of the nearest neighbour scan rather than a post-filter on LIMIT rows.
func buildQuery(uid string, vec pgvector.Vector, k int, f semantic.Filter) (string, []any) {
	args := []any{uid, vec}
	var where strings.Builder
	where.WriteString("uid = $1")
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		fmt.Fprintf(&where, " AND kind = $%d", len(args))
	}
	if len(f.DocIDs) > 0 {
		args = append(args, f.DocIDs)
		fmt.Fprintf(&where, " AND doc_id = ANY($%d)", len(args))
	}
	args = append(args, k)
	sql := fmt.Sprintf(`
SELECT id, doc_id, kind, payload, 1 - (embedding <=> $2) AS score
FROM semantic_records
WHERE %s
ORDER BY embedding <=> $2, id
LIMIT $%d`, where.String(), len(args))
	return sql, args
}

func (r *RecordRepo) Query(ctx context.Context, uid string, vector []float32, k int, f semantic.Filter) ([]semantic.Hit, error) {
	sql, args := buildQuery(uid, pgvector.NewVector(vector), k, f)
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	out := make([]semantic.Hit, 0, k)
	for rows.Next() {
		var h semantic.Hit
		var kind string
		var payload []byte
		if err := rows.Scan(&h.Record.ID, &h.Record.DocID, &kind, &payload, &h.Score); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		h.Record.Kind = semantic.Kind(kind)
		h.Record.Payload = payload
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *RecordRepo) Get(ctx context.Context, uid, id string) (semantic.Record, bool, error) {
	var rec semantic.Record
	var kind string
	var payload []byte
	var vec pgvector.Vector
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, doc_id, kind, payload, embedding
FROM semantic_records
WHERE uid = $1 AND id = $2`, uid, id).Scan(&rec.ID, &rec.DocID, &kind, &payload, &vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return semantic.Record{}, false, nil
	}
	if err != nil {
		return semantic.Record{}, false, fmt.Errorf("get record: %w", err)
	}
	rec.Kind = semantic.Kind(kind)
	rec.Payload = payload
	rec.Vector = vec.Slice()
	return rec, true, nil
}

func (r *RecordRepo) DeleteByDocID(ctx context.Context, uid, docID string) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM semantic_records WHERE uid = $1 AND doc_id = $2`, uid, docID)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
