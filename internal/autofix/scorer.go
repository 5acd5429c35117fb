package autofix

import (
	"sort"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// Weights are the six scoring dimensions' default weights (spec.md §4.6),
// summing to 1.0.
type Weights struct {
	TestPassRate     float64
	Validation       float64
	EvidenceStrength float64
	Quality          float64
	ModelConfidence  float64
	ChangeSize       float64
}

// DefaultWeights matches the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{
		TestPassRate:     0.35,
		Validation:       0.20,
		EvidenceStrength: 0.10,
		Quality:          0.10,
		ModelConfidence:  0.15,
		ChangeSize:       0.10,
	}
}

// ScoredCandidate pairs a candidate with its computed total and dimension
// scores, for diagnostics and deterministic tie-breaking.
type ScoredCandidate struct {
	Candidate  *candidate
	Total      float64
	Dimensions map[string]float64
}

// Scorer ranks verified candidates along the six weighted dimensions and
// selects the winner with spec.md's deterministic tie-break chain.
type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) Scorer { return Scorer{weights: w} }

// Score computes a candidate's six dimension scores and weighted total.
func (s Scorer) Score(c *candidate) ScoredCandidate {
	testPassRate := c.verification.TestPassRate()
	validation := c.verification.ValidationScore()
	evidence := evidenceStrength(c.proposal.Evidence)
	quality := qualityScore(c)
	confidence := confidenceScore(c.proposal.Confidence)
	changeSize := changeSizeScore(c.totalLinesChanged)

	total := s.weights.TestPassRate*testPassRate +
		s.weights.Validation*validation +
		s.weights.EvidenceStrength*evidence +
		s.weights.Quality*quality +
		s.weights.ModelConfidence*confidence +
		s.weights.ChangeSize*changeSize

	return ScoredCandidate{
		Candidate: c,
		Total:     total,
		Dimensions: map[string]float64{
			"testPassRate":     testPassRate,
			"validationScore":  validation,
			"evidenceStrength": evidence,
			"quality":          quality,
			"modelConfidence":  confidence,
			"changeSize":       changeSize,
		},
	}
}

// Rank scores every candidate and sorts descending by total, breaking ties
// by higher test pass rate, then lower change size, then fixId — the exact
// chain spec.md §4.6 names.
func (s Scorer) Rank(candidates []*candidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = s.Score(c)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Dimensions["testPassRate"] != b.Dimensions["testPassRate"] {
			return a.Dimensions["testPassRate"] > b.Dimensions["testPassRate"]
		}
		if a.Candidate.totalLinesChanged != b.Candidate.totalLinesChanged {
			return a.Candidate.totalLinesChanged < b.Candidate.totalLinesChanged
		}
		return a.Candidate.proposal.ID < b.Candidate.proposal.ID
	})
	return scored
}

func evidenceStrength(e model.Evidence) float64 {
	n := len(e.DocumentationRefs) + len(e.BestPractices) + len(e.SimilarPatterns)
	v := float64(n) / 6.0
	if v > 1 {
		v = 1
	}
	return v
}

// qualityScore is a deterministic function of change size (smaller is
// better), whether the candidate ships tests, and rationale readability
// (a non-trivial, non-trivially-short rationale scores higher).
func qualityScore(c *candidate) float64 {
	score := 0.0
	if c.totalLinesChanged > 0 && c.totalLinesChanged <= 20 {
		score += 0.4
	}
	if c.hasTests {
		score += 0.3
	}
	if len(c.proposal.Rationale) > 100 {
		score += 0.3
	} else if len(c.proposal.Rationale) > 20 {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}

func confidenceScore(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 1.0
	case model.ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

func changeSizeScore(totalLinesChanged int) float64 {
	ratio := float64(totalLinesChanged) / 50.0
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}
