package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBackendRanksByCosine(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	require.NoError(t, m.Upsert(ctx, "u", []Record{
		{ID: "a", DocID: "d1", Kind: KindChunk, Vector: []float32{1, 0}},
		{ID: "b", DocID: "d1", Kind: KindChunk, Vector: []float32{0.7, 0.7}},
		{ID: "c", DocID: "d2", Kind: KindPaper, Vector: []float32{0, 1}},
	}))
	hits, err := m.Query(ctx, "u", []float32{1, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a", hits[0].Record.ID)
	require.Equal(t, "b", hits[1].Record.ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)

	papers, err := m.Query(ctx, "u", []float32{1, 0}, 5, Filter{Kind: KindPaper})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	none, err := m.Query(ctx, "other", []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryBackendRejectsRecordWithoutID(t *testing.T) {
	m := NewMemoryBackend()
	err := m.Upsert(context.Background(), "u", []Record{{ID: "ok"}, {}})
	require.Error(t, err)
	_, ok, _ := m.Get(context.Background(), "u", "ok")
	require.False(t, ok)
}

func TestMemoryBackendWriterDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	require.NoError(t, m.Upsert(ctx, "alice", []Record{{ID: "a", DocID: "d1", Vector: []float32{1, 0}}}))
	require.NoError(t, m.Upsert(ctx, "bob", []Record{{ID: "b", DocID: "d2", Vector: []float32{1, 0}}}))

	held := m.collection("alice", false)
	held.mu.Lock()
	defer held.mu.Unlock()

	done := make(chan []Hit, 1)
	go func() {
		hits, _ := m.Query(ctx, "bob", []float32{1, 0}, 5, Filter{})
		if err := m.Upsert(ctx, "carol", []Record{{ID: "c", DocID: "d3"}}); err != nil {
			hits = nil
		}
		done <- hits
	}()
	select {
	case hits := <-done:
		require.Len(t, hits, 1)
		require.Equal(t, "b", hits[0].Record.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("other users blocked behind alice's writer")
	}
}

func TestMemoryBackendDeleteByDocID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	require.NoError(t, m.Upsert(ctx, "u", []Record{
		{ID: "d1", DocID: "d1", Kind: KindPaper},
		{ID: "c1", DocID: "d1", Kind: KindChunk},
		{ID: "c2", DocID: "d2", Kind: KindChunk},
	}))
	n, err := m.DeleteByDocID(ctx, "u", "d1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = m.DeleteByDocID(ctx, "nobody", "d1")
	require.NoError(t, err)
	require.Zero(t, n)
	_, ok, _ := m.Get(ctx, "u", "c2")
	require.True(t, ok)
}
