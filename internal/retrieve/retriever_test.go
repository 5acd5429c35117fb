package retrieve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zach-hammad/repotoire-sub004/internal/embedding"
	"github.com/Zach-hammad/repotoire-sub004/internal/graphstore"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
	"github.com/Zach-hammad/repotoire-sub004/internal/retrieve/cache"
)

// fakeGraph is a scripted GraphStore double: it dispatches on whether the
// statement contains a vector-query, full-text-query, or path marker, so one
// fake can serve dense, sparse, expansion, and path-traversal calls.
type fakeGraph struct {
	dialect   graphstore.Dialect
	vectorRes []graphstore.Row
	sparseRes []graphstore.Row
	expandRes []graphstore.Row
	pathRes   []graphstore.Row
	calls     []string
}

func (f *fakeGraph) Dialect() graphstore.Dialect { return f.dialect }

func (f *fakeGraph) ExecuteQuery(_ context.Context, statement string, _ map[string]any) ([]graphstore.Row, error) {
	f.calls = append(f.calls, statement)
	switch {
	case contains(statement, "db.idx.vector") || contains(statement, "db.index.vector"):
		return f.vectorRes, nil
	case contains(statement, "fulltext"):
		return f.sparseRes, nil
	case contains(statement, "MATCH p ="):
		return f.pathRes, nil
	case contains(statement, "->(m)"):
		return f.expandRes, nil
	default:
		return nil, nil
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

type fakeEmbedder struct {
	dims int
}

func (f *fakeEmbedder) Backend() embedding.Backend { return embedding.BackendLocal }
func (f *fakeEmbedder) Dimensions() int            { return f.dims }
func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func TestRetrieve_EmptyQueryIsRejected(t *testing.T) {
	h := New(&fakeGraph{}, &fakeEmbedder{dims: 8}, cache.NewLRU(10, 0))
	_, err := h.Retrieve(context.Background(), "   ", 5, nil, false)
	require.Error(t, err)
}

func TestRetrieve_ZeroTopKReturnsEmpty(t *testing.T) {
	h := New(&fakeGraph{}, &fakeEmbedder{dims: 8}, cache.NewLRU(10, 0))
	out, err := h.Retrieve(context.Background(), "anything", 0, nil, false)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRetrieve_FusesDenseAndSparseAndCaches(t *testing.T) {
	g := &fakeGraph{
		dialect: graphstore.DialectFalkorDB,
		vectorRes: []graphstore.Row{
			{"qualifiedName": "pkg.A", "name": "A", "score": 0.9},
		},
		sparseRes: []graphstore.Row{
			{"qualifiedName": "pkg.A", "name": "A", "score": 5.0},
			{"qualifiedName": "pkg.B", "name": "B", "score": 3.0},
		},
	}
	h := New(g, &fakeEmbedder{dims: 8}, cache.NewLRU(10, time.Minute))

	out, err := h.Retrieve(context.Background(), "find A", 5, []model.NodeKind{model.KindFunction}, false)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	// pkg.A appears in both branches, so it must outrank pkg.B.
	require.Equal(t, "pkg.A", out[0].QualifiedName)

	stats := h.cache.Stats()
	require.Equal(t, 1, stats.Size)
}

func TestRetrieve_GraphExpansionPopulatesRelationships(t *testing.T) {
	g := &fakeGraph{
		dialect: graphstore.DialectFalkorDB,
		vectorRes: []graphstore.Row{
			{"qualifiedName": "pkg.A", "name": "A", "score": 0.9},
		},
		expandRes: []graphstore.Row{
			{"target": "pkg.B", "kind": "CALLS"},
		},
	}
	h := New(g, &fakeEmbedder{dims: 8}, cache.NewLRU(10, 0))

	out, err := h.Retrieve(context.Background(), "find A", 5, []model.NodeKind{model.KindFunction}, true)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.Len(t, out[0].Relationships, 1)
	require.Equal(t, model.EdgeCalls, out[0].Relationships[0].EdgeKind)
}

func TestRetrieveByPath_ScoresByInverseDistance(t *testing.T) {
	g := &fakeGraph{
		dialect: graphstore.DialectNeo4j,
		pathRes: []graphstore.Row{
			{"qualifiedName": "pkg.Near", "name": "Near", "kind": "Function", "distance": 1},
			{"qualifiedName": "pkg.Far", "name": "Far", "kind": "Function", "distance": 2},
		},
	}
	h := New(g, &fakeEmbedder{dims: 8}, nil)

	out, err := h.RetrieveByPath(context.Background(), "pkg.Start", []model.EdgeKind{model.EdgeCalls}, 2, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "pkg.Near", out[0].QualifiedName)
	require.InDelta(t, 0.5, out[0].Score, 1e-9)
	require.InDelta(t, 1.0/3.0, out[1].Score, 1e-9)
}

func TestRetrieveByPath_RequiresGraphStore(t *testing.T) {
	h := New(nil, &fakeEmbedder{dims: 8}, nil)
	_, err := h.RetrieveByPath(context.Background(), "pkg.Start", nil, 1, 10)
	require.Error(t, err)
}
