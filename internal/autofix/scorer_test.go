package autofix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

func mkCandidate(id string, testPassRate float64, confidence model.Confidence, linesChanged int) *candidate {
	passed := int(testPassRate * 10)
	return &candidate{
		proposal: model.FixProposal{ID: id, Confidence: confidence, Rationale: "short"},
		verification: model.VerificationResult{
			FixID: id, SyntaxValid: true, TestsPassed: passed, TestsTotal: 10,
		},
		totalLinesChanged: linesChanged,
	}
}

func TestScorer_RanksHigherTestPassRateFirst(t *testing.T) {
	s := NewScorer(DefaultWeights())
	a := mkCandidate("a", 1.0, model.ConfidenceHigh, 5)
	b := mkCandidate("b", 0.5, model.ConfidenceHigh, 5)

	ranked := s.Rank([]*candidate{b, a})
	require.Equal(t, "a", ranked[0].Candidate.proposal.ID)
}

func TestScorer_SmallerChangeSizeRanksFirst(t *testing.T) {
	s := NewScorer(DefaultWeights())
	a := mkCandidate("a", 1.0, model.ConfidenceHigh, 10)
	b := mkCandidate("b", 1.0, model.ConfidenceHigh, 2)

	ranked := s.Rank([]*candidate{a, b})
	require.Equal(t, "b", ranked[0].Candidate.proposal.ID, "smaller change size should rank first")
}

func TestScorer_DeterministicTieBreakOnFixID(t *testing.T) {
	s := NewScorer(DefaultWeights())
	a := mkCandidate("aaa", 1.0, model.ConfidenceHigh, 5)
	b := mkCandidate("bbb", 1.0, model.ConfidenceHigh, 5)

	ranked := s.Rank([]*candidate{b, a})
	require.Equal(t, "aaa", ranked[0].Candidate.proposal.ID)
}

func TestChangeSizeScore_ClampsAtFiftyLines(t *testing.T) {
	require.InDelta(t, 0.0, changeSizeScore(100), 1e-9)
	require.InDelta(t, 1.0, changeSizeScore(0), 1e-9)
	require.InDelta(t, 0.5, changeSizeScore(25), 1e-9)
}

func TestEvidenceStrength_ClampsAtOne(t *testing.T) {
	e := model.Evidence{
		DocumentationRefs: []string{"a", "b", "c"},
		BestPractices:     []string{"d", "e", "f"},
		SimilarPatterns:   []string{"g", "h", "i"},
	}
	require.Equal(t, 1.0, evidenceStrength(e))
}

func TestConfidenceScore_MapsThreeLevels(t *testing.T) {
	require.Equal(t, 1.0, confidenceScore(model.ConfidenceHigh))
	require.Equal(t, 0.7, confidenceScore(model.ConfidenceMedium))
	require.Equal(t, 0.4, confidenceScore(model.ConfidenceLow))
}
