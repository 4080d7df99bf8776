package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryBackend keeps every collection in process and ranks by brute-force
// cosine similarity. Each user's collection has its own lock; mu only guards
// the users map.
type MemoryBackend struct {
	mu    sync.RWMutex
	users map[string]*collection
}

type collection struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{users: map[string]*collection{}}
}

// collection returns uid's collection, creating it when create is set.
// Collections are never removed so a held pointer stays live.
func (m *MemoryBackend) collection(uid string, create bool) *collection {
	m.mu.RLock()
	c := m.users[uid]
	m.mu.RUnlock()
	if c != nil || !create {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c = m.users[uid]; c == nil {
		c = &collection{recs: map[string]Record{}}
		m.users[uid] = c
	}
	return c
}

func (m *MemoryBackend) Upsert(ctx context.Context, uid string, recs []Record) error {
	_ = ctx
	for _, r := range recs {
		if r.ID == "" {
			return fmt.Errorf("record without id")
		}
	}
	c := m.collection(uid, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range recs {
		r.Vector = append([]float32(nil), r.Vector...)
		r.Payload = append([]byte(nil), r.Payload...)
		c.recs[r.ID] = r
	}
	return nil
}

func (m *MemoryBackend) Query(ctx context.Context, uid string, vector []float32, k int, f Filter) ([]Hit, error) {
	_ = ctx
	hits := make([]Hit, 0)
	c := m.collection(uid, false)
	if c == nil {
		return hits, nil
	}
	var allowed map[string]bool
	if len(f.DocIDs) > 0 {
		allowed = make(map[string]bool, len(f.DocIDs))
		for _, id := range f.DocIDs {
			allowed[id] = true
		}
	}
	c.mu.RLock()
	for _, r := range c.recs {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if allowed != nil && !allowed[r.DocID] {
			continue
		}
		hits = append(hits, Hit{Record: r, Score: cosine(vector, r.Vector)})
	}
	c.mu.RUnlock()
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryBackend) Get(ctx context.Context, uid, id string) (Record, bool, error) {
	_ = ctx
	c := m.collection(uid, false)
	if c == nil {
		return Record{}, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.recs[id]
	return r, ok, nil
}

func (m *MemoryBackend) DeleteByDocID(ctx context.Context, uid, docID string) (int, error) {
	_ = ctx
	c := m.collection(uid, false)
	if c == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, r := range c.recs {
		if r.DocID == docID {
			delete(c.recs, id)
			n++
		}
	}
	return n, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
