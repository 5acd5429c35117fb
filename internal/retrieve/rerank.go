package retrieve

import (
	"context"
	"sort"
	"strings"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

const renderedTextTruncateChars = 500

// Reranker optionally reorders fused candidates (e.g. via a cross-encoder).
// Implementations must not drop items.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []model.RetrievalResult) ([]model.RetrievalResult, error)
}

// NoopReranker leaves ordering unchanged — the default when reranking is
// disabled or no Reranker was configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, items []model.RetrievalResult) ([]model.RetrievalResult, error) {
	return items, nil
}

// renderForRerank builds the (query, text) pair text a cross-encoder scores:
// name + docstring + source code truncated to 500 chars.
func renderForRerank(r model.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(r.Name)
	if ds, ok := r.Metadata["docstring"].(string); ok && ds != "" {
		b.WriteString(" ")
		b.WriteString(ds)
	}
	code := r.Code
	if len(code) > renderedTextTruncateChars {
		code = code[:renderedTextTruncateChars]
	}
	b.WriteString(" ")
	b.WriteString(code)
	return b.String()
}

// ApplyRerank takes the top rerankTopK*retrieveMultiplier fused results,
// scores them against the reranker, sorts by rerank score, and truncates to
// rerankTopK regardless of how many the Reranker implementation returns —
// the over-return truncation is always enforced here, not left to the
// Reranker.
func ApplyRerank(ctx context.Context, rr Reranker, query string, fused []model.RetrievalResult, rerankTopK, retrieveMultiplier int) ([]model.RetrievalResult, error) {
	if rr == nil {
		rr = NoopReranker{}
	}
	window := rerankTopK * retrieveMultiplier
	if window <= 0 || window > len(fused) {
		window = len(fused)
	}
	candidates := fused[:window]

	for i := range candidates {
		candidates[i].Metadata = withOriginalScore(candidates[i])
	}

	reranked, err := rr.Rerank(ctx, query, candidates)
	if err != nil {
		return fused, err
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if rerankTopK > 0 && len(reranked) > rerankTopK {
		reranked = reranked[:rerankTopK]
	}
	return reranked, nil
}

func withOriginalScore(r model.RetrievalResult) map[string]any {
	md := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	md["originalScore"] = r.Score
	return md
}
