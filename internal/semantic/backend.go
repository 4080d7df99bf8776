package semantic

import (
	"context"
	"encoding/json"
)

type Kind string

const (
	KindPaper Kind = "paper"
	KindChunk Kind = "chunk"
)

// Record is one embedded entry in a user's collection. Payload holds the
// JSON form of the paper or chunk; backends treat it as opaque.
type Record struct {
	ID      string
	DocID   string
	Kind    Kind
	Vector  []float32
	Payload json.RawMessage
}

type Hit struct {
	Record Record
	Score  float64
}

// Filter narrows a similarity query. Backends must apply it before ranking
// so that k results come back whenever k matching records exist.
type Filter struct {
	Kind   Kind
	DocIDs []string
}

// Backend is a per-user partitioned collection. Every method takes the
// owning uid and never touches records of another uid.
type Backend interface {
	Upsert(ctx context.Context, uid string, recs []Record) error
	Query(ctx context.Context, uid string, vector []float32, k int, f Filter) ([]Hit, error)
	Get(ctx context.Context, uid, id string) (Record, bool, error)
	DeleteByDocID(ctx context.Context, uid, docID string) (int, error)
}
