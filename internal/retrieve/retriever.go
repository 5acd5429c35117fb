// Package retrieve implements HybridRetriever: cache lookup, parallel
// dense+sparse candidate queries against GraphStore, fusion, optional
// rerank, graph-hop expansion, and snippet rendering. Grounded on
// manifold's internal/rag/retrieve/* (fusion, candidates, query, snippet,
// graph_expand, rerank shapes) and internal/rag/service/service.go's
// Logger/Metrics injection style, cross-checked against
// original_source/repotoire/ai/retrieval.py for the exact dialect split and
// snippet format.
package retrieve

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Zach-hammad/repotoire-sub004/internal/embedding"
	"github.com/Zach-hammad/repotoire-sub004/internal/errs"
	"github.com/Zach-hammad/repotoire-sub004/internal/graphstore"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
	"github.com/Zach-hammad/repotoire-sub004/internal/observability"
	"github.com/Zach-hammad/repotoire-sub004/internal/retrieve/cache"
)

// Config holds the tunables the algorithm steps in §4.4 are parameterized
// by.
type Config struct {
	DenseTopK          int
	BM25TopK           int
	FusionAlgorithm    FusionAlgorithm
	RRFK               int
	LinearAlpha        float64
	Rerank             bool
	RerankTopK         int
	RetrieveMultiplier int
	ContextLines       int
	MaxHops            int
}

func defaultConfig() Config {
	return Config{
		DenseTopK:          100,
		BM25TopK:           100,
		FusionAlgorithm:    FusionRRF,
		RRFK:               60,
		LinearAlpha:        0.7,
		RerankTopK:         10,
		RetrieveMultiplier: 3,
		ContextLines:       5,
		MaxHops:            1,
	}
}

// HybridRetriever is the heart of the core: it answers Retrieve,
// RetrieveByPath, and Ask.
type HybridRetriever struct {
	graph    graphstore.GraphStore
	embedder embedding.Provider
	cache    cache.Cache
	reranker Reranker
	cfg      Config
	log      zerolog.Logger
	tracer   *observability.Tracer
	metrics  observability.Metrics
}

// Option configures a HybridRetriever at construction time.
type Option func(*HybridRetriever)

func WithReranker(r Reranker) Option     { return func(h *HybridRetriever) { h.reranker = r } }
func WithConfig(cfg Config) Option       { return func(h *HybridRetriever) { h.cfg = cfg } }
func WithLogger(l zerolog.Logger) Option { return func(h *HybridRetriever) { h.log = l } }
func WithTracer(t *observability.Tracer) Option {
	return func(h *HybridRetriever) { h.tracer = t }
}
func WithMetrics(m observability.Metrics) Option {
	return func(h *HybridRetriever) { h.metrics = m }
}

// New constructs a HybridRetriever over the given GraphStore, embedding
// provider, and cache.
func New(graph graphstore.GraphStore, embedder embedding.Provider, c cache.Cache, opts ...Option) *HybridRetriever {
	h := &HybridRetriever{
		graph:    graph,
		embedder: embedder,
		cache:    c,
		reranker: NoopReranker{},
		cfg:      defaultConfig(),
		tracer:   observability.NewTracer("internal/retrieve"),
		metrics:  observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Retrieve implements the eight-step algorithm from §4.4: cache lookup,
// dense+sparse branches in parallel, fusion, optional rerank, graph
// expansion, snippet rendering, cache store.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topK int, entityKinds []model.NodeKind, includeRelated bool) ([]model.RetrievalResult, error) {
	ctx, endSpan := h.tracer.Start(ctx, "retrieve.Retrieve", map[string]any{"top_k": topK})
	var retErr error
	defer func() { endSpan(retErr) }()

	if topK == 0 {
		return []model.RetrievalResult{}, nil
	}
	if entityKinds == nil {
		entityKinds = defaultKinds()
	}

	normalized := normalizeQuery(query)
	if normalized == "" {
		retErr = errs.NewValidation("query", "must be non-empty")
		return nil, retErr
	}
	key := cache.Key(normalized, topK, entityKinds)

	if h.cache != nil {
		if hit, ok := h.cache.Get(ctx, key); ok {
			h.metrics.IncCounter("retrieve.cache.hits", nil)
			return hit, nil
		}
		h.metrics.IncCounter("retrieve.cache.misses", nil)
	}

	vec, err := h.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		retErr = errs.NewUpstream(h.embedder.Backend().String(), "embed_query", err)
		return nil, retErr
	}

	var dense, sparse []NodeHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, endDense := h.tracer.Start(gctx, "retrieve.dense", map[string]any{"k": h.cfg.DenseTopK})
		hits, derr := h.denseSearch(sctx, vec, entityKinds, h.cfg.DenseTopK)
		endDense(derr)
		if derr != nil {
			observability.LoggerWithTrace(gctx).Warn().Err(derr).Msg("dense branch failed, continuing with sparse only")
			return nil
		}
		dense = hits
		return nil
	})
	g.Go(func() error {
		sctx, endSparse := h.tracer.Start(gctx, "retrieve.sparse", map[string]any{"k": h.cfg.BM25TopK})
		hits, serr := h.sparseSearch(sctx, normalized, entityKinds, h.cfg.BM25TopK)
		endSparse(serr)
		if serr != nil {
			observability.LoggerWithTrace(gctx).Warn().Err(serr).Msg("sparse branch failed, continuing with dense only")
			return nil
		}
		sparse = hits
		return nil
	})
	_ = g.Wait() // branch errors are already tolerated above; never fatal here

	var fusedResults []model.RetrievalResult
	switch h.cfg.FusionAlgorithm {
	case FusionLinear:
		fusedResults = FuseLinear(dense, sparse, h.cfg.LinearAlpha)
	default:
		fusedResults = FuseRRF(dense, sparse, h.cfg.RRFK)
	}

	if h.cfg.Rerank {
		rctx, endRerank := h.tracer.Start(ctx, "retrieve.rerank", map[string]any{"top_k": h.cfg.RerankTopK})
		reranked, rerr := ApplyRerank(rctx, h.reranker, normalized, fusedResults, h.cfg.RerankTopK, h.cfg.RetrieveMultiplier)
		endRerank(rerr)
		if rerr != nil {
			observability.LoggerWithTrace(ctx).Warn().Err(rerr).Msg("rerank failed, using fused order")
		} else {
			fusedResults = reranked
		}
	}

	if len(fusedResults) > topK {
		fusedResults = fusedResults[:topK]
	}

	if includeRelated {
		fusedResults = ExpandRelationships(ctx, h.graph, fusedResults)
	}

	for i := range fusedResults {
		fp, _ := fusedResults[i].Metadata["file_path"].(string)
		lineStart, _ := fusedResults[i].Metadata["line_start"].(int)
		lineEnd, _ := fusedResults[i].Metadata["line_end"].(int)
		if fp != "" {
			fusedResults[i].Code = RenderSnippet(fp, lineStart, lineEnd, h.cfg.ContextLines)
		}
	}

	if h.cache != nil {
		h.cache.Set(ctx, key, fusedResults)
	}
	return fusedResults, nil
}

// RetrieveByPath matches all nodes reachable from startQName via any of
// edgeTypes within 1..maxHops hops, scoring each 1/(distance+1).
func (h *HybridRetriever) RetrieveByPath(ctx context.Context, startQName string, edgeTypes []model.EdgeKind, maxHops, limit int) ([]model.RetrievalResult, error) {
	if h.graph == nil {
		return nil, errs.NewValidation("graph", "GraphStore not configured")
	}
	if maxHops <= 0 {
		maxHops = h.cfg.MaxHops
	}

	edgeList := ""
	for i, e := range edgeTypes {
		if i > 0 {
			edgeList += "|"
		}
		edgeList += string(e)
	}
	statement := fmt.Sprintf(
		"MATCH p = (start {qualifiedName: $start})-[:%s*1..%d]->(target) "+
			"RETURN DISTINCT target.qualifiedName AS qualifiedName, target.name AS name, "+
			"target.kind AS kind, target.filePath AS filePath, target.lineStart AS lineStart, "+
			"target.lineEnd AS lineEnd, length(p) AS distance LIMIT $limit",
		edgeList, maxHops,
	)
	rows, err := h.graph.ExecuteQuery(ctx, statement, map[string]any{
		"start": startQName,
		"limit": limit,
	})
	if err != nil {
		return nil, errs.NewUpstream("graph", "retrieve_by_path", err)
	}

	results := make([]model.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		qname, _ := row["qualifiedName"].(string)
		distance, _ := row["distance"].(int)
		filePath, _ := row["filePath"].(string)
		lineStart, _ := row["lineStart"].(int)
		lineEnd, _ := row["lineEnd"].(int)
		name, _ := row["name"].(string)
		kind, _ := row["kind"].(string)

		code := ""
		if filePath != "" {
			code = RenderSnippet(filePath, lineStart, lineEnd, h.cfg.ContextLines)
		}
		results = append(results, model.RetrievalResult{
			Kind:          model.NodeKind(kind),
			QualifiedName: qname,
			Name:          name,
			Code:          code,
			Score:         1.0 / float64(distance+1),
		})
	}

	results = ExpandRelationships(ctx, h.graph, results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (h *HybridRetriever) denseSearch(ctx context.Context, vec []float32, kinds []model.NodeKind, k int) ([]NodeHit, error) {
	var out []NodeHit
	for _, kind := range kinds {
		rows, err := h.vectorQuery(ctx, string(kind), vec, k)
		if err != nil {
			return nil, err
		}
		out = append(out, rowsToHits(rows, kind)...)
	}
	return out, nil
}

func (h *HybridRetriever) vectorQuery(ctx context.Context, label string, vec []float32, k int) ([]graphstore.Row, error) {
	dialect := h.graph.Dialect()
	statement := fmt.Sprintf(
		"%s RETURN node.qualifiedName AS qualifiedName, node.name AS name, "+
			"node.docstring AS docstring, node.filePath AS filePath, node.lineStart AS lineStart, "+
			"node.lineEnd AS lineEnd, score",
		dialect.VectorQueryClause(label),
	)
	return h.graph.ExecuteQuery(ctx, statement, map[string]any{
		"k":         k,
		"embedding": vec,
		"indexName": dialect.VectorIndexName(label),
	})
}

func (h *HybridRetriever) sparseSearch(ctx context.Context, query string, kinds []model.NodeKind, k int) ([]NodeHit, error) {
	escaped := luceneEscape(query)
	var out []NodeHit
	for _, kind := range kinds {
		statement := fmt.Sprintf(
			"CALL db.idx.fulltext.queryNodes('%s', $query) YIELD node, score "+
				"RETURN node.qualifiedName AS qualifiedName, node.name AS name, "+
				"node.docstring AS docstring, node.filePath AS filePath, "+
				"node.lineStart AS lineStart, node.lineEnd AS lineEnd, score LIMIT $limit",
			kind,
		)
		rows, err := h.graph.ExecuteQuery(ctx, statement, map[string]any{
			"query": escaped,
			"limit": k,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rowsToHits(rows, kind)...)
	}
	return out, nil
}

func rowsToHits(rows []graphstore.Row, kind model.NodeKind) []NodeHit {
	out := make([]NodeHit, 0, len(rows))
	for _, row := range rows {
		qname, _ := row["qualifiedName"].(string)
		if qname == "" {
			continue
		}
		name, _ := row["name"].(string)
		docstring, _ := row["docstring"].(string)
		filePath, _ := row["filePath"].(string)
		lineStart, _ := row["lineStart"].(int)
		lineEnd, _ := row["lineEnd"].(int)
		score, _ := row["score"].(float64)
		out = append(out, NodeHit{
			QualifiedName: qname,
			Name:          name,
			Kind:          kind,
			Docstring:     docstring,
			FilePath:      filePath,
			LineStart:     lineStart,
			LineEnd:       lineEnd,
			Score:         score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
