package storage

import (
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"paperlens/internal/semantic"
)

func TestBuildQueryScopesByUIDAndFilters(t *testing.T) {
	vec := pgvector.NewVector([]float32{1, 0})
	sql, args := buildQuery("alice", vec, 5, semantic.Filter{Kind: semantic.KindChunk, DocIDs: []string{"d1", "d2"}})
	require.Contains(t, sql, "WHERE uid = $1 AND kind = $3 AND doc_id = ANY($4)")
	require.Contains(t, sql, "LIMIT $5")
	require.Equal(t, []any{"alice", vec, "chunk", []string{"d1", "d2"}, 5}, args)
	require.Less(t, strings.Index(sql, "WHERE"), strings.Index(sql, "ORDER BY"))
}

func TestBuildQueryWithoutFilters(t *testing.T) {
	vec := pgvector.NewVector([]float32{1})
	sql, args := buildQuery("bob", vec, 3, semantic.Filter{})
	require.Contains(t, sql, "WHERE uid = $1\n")
	require.Contains(t, sql, "LIMIT $3")
	require.Len(t, args, 3)
}

func TestSchemaUsesConfiguredDimension(t *testing.T) {
	stmts := schemaStatements(768)
	require.Contains(t, stmts[0], "vector(768)")
	require.Contains(t, stmts[0], "PRIMARY KEY (uid, id)")
}
