package retrieve

import (
	"sort"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// NodeHit is one row from a dense or sparse branch query: the minimal
// projection of a CodeNode plus its per-branch relevance score.
type NodeHit struct {
	QualifiedName string
	Name          string
	Kind          model.NodeKind
	Docstring     string
	FilePath      string
	LineStart     int
	LineEnd       int
	Score         float64
}

// FusionAlgorithm selects how dense and sparse hit lists are combined.
type FusionAlgorithm string

const (
	FusionRRF    FusionAlgorithm = "rrf"
	FusionLinear FusionAlgorithm = "linear"
)

// fused is the per-qualifiedName result of combining both branches.
type fused struct {
	hit   NodeHit
	score float64
}

// FuseRRF combines dense and sparse hit lists via Reciprocal Rank Fusion:
// fused(id) = 1/(k+r_dense) + 1/(k+r_sparse), omitting absent terms. An id
// present in both lists receives the sum of both terms — the "overlap
// bonus" — so it strictly outranks either single-list contribution.
func FuseRRF(dense, sparse []NodeHit, k int) []model.RetrievalResult {
	if k <= 0 {
		k = 60
	}
	denseRank := rankIndex(dense)
	sparseRank := rankIndex(sparse)
	payload := mergePayload(dense, sparse)

	out := make([]fused, 0, len(payload))
	for qname, hit := range payload {
		score := 0.0
		if r, ok := denseRank[qname]; ok {
			score += 1.0 / float64(k+r)
		}
		if r, ok := sparseRank[qname]; ok {
			score += 1.0 / float64(k+r)
		}
		out = append(out, fused{hit: hit, score: score})
	}
	return toResults(sortFused(out))
}

// FuseLinear min-max normalizes each branch's scores to [0,1], then
// combines as alpha*dense_norm + (1-alpha)*sparse_norm. A qualifiedName
// missing from a list contributes 0 for that list's term.
func FuseLinear(dense, sparse []NodeHit, alpha float64) []model.RetrievalResult {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	denseNorm := minMaxNormalize(dense)
	sparseNorm := minMaxNormalize(sparse)
	payload := mergePayload(dense, sparse)

	out := make([]fused, 0, len(payload))
	for qname, hit := range payload {
		score := alpha*denseNorm[qname] + (1-alpha)*sparseNorm[qname]
		out = append(out, fused{hit: hit, score: score})
	}
	return toResults(sortFused(out))
}

func rankIndex(hits []NodeHit) map[string]int {
	m := make(map[string]int, len(hits))
	for i, h := range hits {
		m[h.QualifiedName] = i + 1 // 1-based rank
	}
	return m
}

func minMaxNormalize(hits []NodeHit) map[string]float64 {
	m := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return m
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	span := max - min
	for _, h := range hits {
		if span == 0 {
			m[h.QualifiedName] = 1
			continue
		}
		m[h.QualifiedName] = (h.Score - min) / span
	}
	return m
}

func mergePayload(dense, sparse []NodeHit) map[string]NodeHit {
	m := make(map[string]NodeHit, len(dense)+len(sparse))
	for _, h := range dense {
		m[h.QualifiedName] = h
	}
	for _, h := range sparse {
		if _, exists := m[h.QualifiedName]; !exists {
			m[h.QualifiedName] = h
		}
	}
	return m
}

func sortFused(in []fused) []fused {
	sort.Slice(in, func(i, j int) bool {
		if in[i].score != in[j].score {
			return in[i].score > in[j].score
		}
		return in[i].hit.QualifiedName < in[j].hit.QualifiedName
	})
	return in
}

func toResults(in []fused) []model.RetrievalResult {
	out := make([]model.RetrievalResult, len(in))
	for i, f := range in {
		score := f.score
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		out[i] = model.RetrievalResult{
			Kind:          f.hit.Kind,
			QualifiedName: f.hit.QualifiedName,
			Name:          f.hit.Name,
			Score:         score,
			Metadata: map[string]any{
				"file_path":  f.hit.FilePath,
				"line_start": f.hit.LineStart,
				"line_end":   f.hit.LineEnd,
				"docstring":  f.hit.Docstring,
			},
		}
	}
	return out
}
