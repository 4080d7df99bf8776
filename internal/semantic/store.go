// Package semantic is the per-user store of embedded papers and enrichment
// chunks.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

type Options struct {
	Dimension int
	BatchSize int
}

// Store scopes every operation by uid. Writes for one uid are serialized,
// reads for one uid share a lock, and different uids never contend.
type Store struct {
	backend Backend
	embed   providers.EmbeddingProvider
	opts    Options
	locks   *userLocks
	log     *logger.Logger
}

func NewStore(backend Backend, embed providers.EmbeddingProvider, opts Options, log *logger.Logger) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	return &Store{
		backend: backend,
		embed:   embed,
		opts:    opts,
		locks:   newUserLocks(),
		log:     log.With("component", "semantic_store"),
	}
}

// UpsertPaper writes the paper record and returns its doc id. A missing
// DocID gets a fresh one; an existing DocID is overwritten in place.
func (s *Store) UpsertPaper(ctx context.Context, uid string, p models.Paper) (string, error) {
	if uid == "" {
		return "", util.InvalidInput("uid is required")
	}
	if p.DocID == "" {
		p.DocID = uuid.NewString()
	}
	if p.Title == "" {
		p.Title = p.Meta.Title
	}
	p.Score = 0
	vec, err := s.embedOne(ctx, providers.OpEmbedPaper, paperSignature(p))
	if err != nil {
		return "", fmt.Errorf("embed paper: %w", err)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode paper: %w", err)
	}
	unlock := s.locks.Lock(uid)
	defer unlock()
	if err := s.backend.Upsert(ctx, uid, []Record{{ID: p.DocID, DocID: p.DocID, Kind: KindPaper, Vector: vec, Payload: payload}}); err != nil {
		return "", fmt.Errorf("store paper: %w", err)
	}
	s.log.Info("paper stored", "uid", uid, "doc_id", p.DocID)
	return p.DocID, nil
}

// paperSignature is the text embedded for a paper: the summary plus the
// findings, methods and implications lists.
func paperSignature(p models.Paper) string {
	in := p.Insights.Normalize()
	parts := []string{p.Summary.Text()}
	for _, list := range [][]string{in.Findings, in.Methods, in.Implications} {
		if len(list) > 0 {
			parts = append(parts, strings.Join(list, "\n"))
		}
	}
	sig := strings.TrimSpace(strings.Join(parts, "\n"))
	if sig == "" {
		sig = p.Title
	}
	return sig
}

// ChunkBase is the metadata every chunk of one paper inherits.
type ChunkBase struct {
	DocID string
	Title string
}

type ChunkWriteReport struct {
	Written int
	Skipped int
	Failed  int
	Errors  []error
}

func (r ChunkWriteReport) Err() error {
	return errors.Join(r.Errors...)
}

// UpsertChunks embeds and writes chunks in batches. Empty chunks are skipped.
// Every chunk gets a fresh id. A failed batch is recorded in the report and
// does not undo earlier batches. The returned error is only for bad input.
func (s *Store) UpsertChunks(ctx context.Context, uid string, base ChunkBase, chunks []models.EnrichedChunk) (ChunkWriteReport, error) {
	var rep ChunkWriteReport
	if uid == "" {
		return rep, util.InvalidInput("uid is required")
	}
	if base.DocID == "" {
		return rep, util.InvalidInput("doc_id is required for chunks")
	}
	pending := make([]models.EnrichedChunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			rep.Skipped++
			continue
		}
		c.ID = uuid.NewString()
		c.DocID = base.DocID
		if c.Title == "" {
			c.Title = base.Title
		}
		c.Score = 0
		pending = append(pending, c)
	}
	for start := 0; start < len(pending); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(pending))
		batch := pending[start:end]
		if err := s.writeChunkBatch(ctx, uid, batch); err != nil {
			rep.Failed += len(batch)
			rep.Errors = append(rep.Errors, fmt.Errorf("chunks %d-%d: %w", start, end-1, err))
			s.log.Warn("chunk batch failed", "uid", uid, "doc_id", base.DocID, "batch_start", start, "error", err)
			continue
		}
		rep.Written += len(batch)
	}
	s.log.Info("chunks stored", "uid", uid, "doc_id", base.DocID, "written", rep.Written, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, nil
}

func (s *Store) writeChunkBatch(ctx context.Context, uid string, batch []models.EnrichedChunk) error {
	inputs := make([]string, len(batch))
	for i, c := range batch {
		inputs[i] = c.Content
	}
	vecs, _, err := s.embed.Embed(ctx, providers.EmbedRequest{Operation: providers.OpEmbedChunks, Inputs: inputs, Dimension: s.opts.Dimension})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d inputs", len(vecs), len(batch))
	}
	recs := make([]Record, len(batch))
	for i, c := range batch {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
		recs[i] = Record{ID: c.ID, DocID: c.DocID, Kind: KindChunk, Vector: vecs[i], Payload: payload}
	}
	unlock := s.locks.Lock(uid)
	defer unlock()
	return s.backend.Upsert(ctx, uid, recs)
}

// QueryPapers returns paper records only, nearest first.
func (s *Store) QueryPapers(ctx context.Context, uid, query string, k int) ([]models.Paper, error) {
	hits, err := s.query(ctx, uid, query, k, Filter{Kind: KindPaper})
	if err != nil {
		return nil, err
	}
	out := make([]models.Paper, 0, len(hits))
	for _, h := range hits {
		var p models.Paper
		if err := json.Unmarshal(h.Record.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode paper %s: %w", h.Record.ID, err)
		}
		p.Score = h.Score
		out = append(out, p)
	}
	return out, nil
}

// QueryChunks returns chunks nearest first. Non-empty docIDs restrict the
// search to chunks of those papers.
func (s *Store) QueryChunks(ctx context.Context, uid, query string, k int, docIDs []string) ([]models.EnrichedChunk, error) {
	hits, err := s.query(ctx, uid, query, k, Filter{Kind: KindChunk, DocIDs: docIDs})
	if err != nil {
		return nil, err
	}
	out := make([]models.EnrichedChunk, 0, len(hits))
	for _, h := range hits {
		var c models.EnrichedChunk
		if err := json.Unmarshal(h.Record.Payload, &c); err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", h.Record.ID, err)
		}
		c.Score = h.Score
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, uid, query string, k int, f Filter) ([]Hit, error) {
	if uid == "" {
		return nil, util.InvalidInput("uid is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, util.InvalidInput("query text is required")
	}
	if k <= 0 {
		k = 10
	}
	vec, err := s.embedOne(ctx, providers.OpEmbedQuery, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	unlock := s.locks.RLock(uid)
	defer unlock()
	hits, err := s.backend.Query(ctx, uid, vec, k, f)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", f.Kind, err)
	}
	return hits, nil
}

func (s *Store) GetPaper(ctx context.Context, uid, docID string) (models.Paper, bool, error) {
	if uid == "" {
		return models.Paper{}, false, util.InvalidInput("uid is required")
	}
	unlock := s.locks.RLock(uid)
	rec, ok, err := s.backend.Get(ctx, uid, docID)
	unlock()
	if err != nil {
		return models.Paper{}, false, fmt.Errorf("get paper: %w", err)
	}
	if !ok || rec.Kind != KindPaper {
		return models.Paper{}, false, nil
	}
	var p models.Paper
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return models.Paper{}, false, fmt.Errorf("decode paper %s: %w", docID, err)
	}
	return p, true, nil
}

// DeletePaper removes the paper and all chunks carrying its doc id. The
// paper record's own doc id equals its id, so one doc_id match covers both.
func (s *Store) DeletePaper(ctx context.Context, uid, docID string) (int, error) {
	if uid == "" {
		return 0, util.InvalidInput("uid is required")
	}
	if docID == "" {
		return 0, util.InvalidInput("doc_id is required")
	}
	unlock := s.locks.Lock(uid)
	defer unlock()
	n, err := s.backend.DeleteByDocID(ctx, uid, docID)
	if err != nil {
		return 0, fmt.Errorf("delete paper: %w", err)
	}
	s.log.Info("paper deleted", "uid", uid, "doc_id", docID, "records", n)
	return n, nil
}

func (s *Store) embedOne(ctx context.Context, op, text string) ([]float32, error) {
	vecs, _, err := s.embed.Embed(ctx, providers.EmbedRequest{Operation: op, Inputs: []string{text}, Dimension: s.opts.Dimension})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("got %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}
