package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// Thresholds from spec.md §4.7: the minimum sample size before trusting an
// approval rate, and the two rates that trigger a confidence step.
const (
	MinDecisionsForLearning = 10
	LowApprovalThreshold    = 0.3
	HighApprovalThreshold   = 0.9
	RejectionRateThreshold  = 0.5
	SkipAutoApproveRate     = 0.5
)

// Trend summarizes whether a fix type's approval rate is improving,
// declining, or stable, by comparing the first and second halves of its
// time-sorted decisions.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// AdaptiveConfidence reads DecisionStore aggregates and adjusts proposal
// confidence, prompt content, and auto-approval eligibility accordingly.
type AdaptiveConfidence struct {
	store *DecisionStore
}

// NewAdaptiveConfidence wraps a DecisionStore.
func NewAdaptiveConfidence(store *DecisionStore) *AdaptiveConfidence {
	return &AdaptiveConfidence{store: store}
}

// AdjustConfidence steps base confidence down one level if the matching
// approval rate is at or below LowApprovalThreshold, or steps Low up to
// Medium (never Medium to High) if it is at or above HighApprovalThreshold.
// Below MinDecisionsForLearning matching decisions, base is returned
// unchanged — there isn't enough signal to trust yet.
func (a *AdaptiveConfidence) AdjustConfidence(base model.Confidence, fixType model.FixType, repository string) (model.Confidence, error) {
	decisions, err := a.store.Filter(fixType, repository, time.Time{})
	if err != nil {
		return base, err
	}
	if len(decisions) < MinDecisionsForLearning {
		return base, nil
	}

	rate := approvalRate(decisions)
	switch {
	case rate <= LowApprovalThreshold:
		return stepDown(base), nil
	case rate >= HighApprovalThreshold:
		return stepUpFromLowOnly(base), nil
	default:
		return base, nil
	}
}

func stepDown(c model.Confidence) model.Confidence {
	switch c {
	case model.ConfidenceHigh:
		return model.ConfidenceMedium
	case model.ConfidenceMedium:
		return model.ConfidenceLow
	default:
		return model.ConfidenceLow
	}
}

// stepUpFromLowOnly upgrades Low to Medium but never auto-promotes Medium
// to High — the safety policy spec.md §4.7 names explicitly.
func stepUpFromLowOnly(c model.Confidence) model.Confidence {
	if c == model.ConfidenceLow {
		return model.ConfidenceMedium
	}
	return c
}

func approvalRate(decisions []model.FixDecision) float64 {
	if len(decisions) == 0 {
		return 0
	}
	approved := 0
	for _, d := range decisions {
		if d.Decision == model.DecisionApproved || d.Decision == model.DecisionModified {
			approved++
		}
	}
	return float64(approved) / float64(len(decisions))
}

// ShouldSkipAutoApprove reports whether fixType's approval rate across
// repository is below SkipAutoApproveRate, in which case a reviewer should
// not auto-approve even a High-confidence fix of this type.
func (a *AdaptiveConfidence) ShouldSkipAutoApprove(fixType model.FixType, repository string) (bool, error) {
	decisions, err := a.store.Filter(fixType, repository, time.Time{})
	if err != nil {
		return false, err
	}
	if len(decisions) < MinDecisionsForLearning {
		return false, nil
	}
	return approvalRate(decisions) < SkipAutoApproveRate, nil
}

// PromptAdjustment returns a "Historical Feedback" block to append to the
// generation system prompt when any rejection pattern's rate is at or above
// RejectionRateThreshold over at least MinDecisionsForLearning decisions.
// Returns "" when no adjustment is warranted.
func (a *AdaptiveConfidence) PromptAdjustment(repository string) (string, error) {
	decisions, err := a.store.Filter("", repository, time.Time{})
	if err != nil {
		return "", err
	}
	if len(decisions) < MinDecisionsForLearning {
		return "", nil
	}

	rejections := make([]model.FixDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.Decision == model.DecisionRejected {
			rejections = append(rejections, d)
		}
	}
	rejectionRate := float64(len(rejections)) / float64(len(decisions))
	if rejectionRate < RejectionRateThreshold {
		return "", nil
	}

	reasonCounts := map[model.RejectionReason]int{}
	lowApprovalTypes := map[model.FixType]struct{}{}
	byType := map[model.FixType][]model.FixDecision{}
	for _, d := range decisions {
		byType[d.FixType] = append(byType[d.FixType], d)
		if d.RejectionReason != nil {
			reasonCounts[*d.RejectionReason]++
		}
	}
	for ft, ds := range byType {
		if len(ds) >= MinDecisionsForLearning && approvalRate(ds) < SkipAutoApproveRate {
			lowApprovalTypes[ft] = struct{}{}
		}
	}

	comments := topComments(rejections, 3, 200)

	var b strings.Builder
	b.WriteString("## Historical Feedback\n\n")
	b.WriteString("Frequent rejection reasons:\n")
	for reason, count := range reasonCounts {
		fmt.Fprintf(&b, "- %s (%d)\n", reason, count)
	}
	if len(comments) > 0 {
		b.WriteString("\nRecent rejection comments:\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %q\n", c)
		}
	}
	if len(lowApprovalTypes) > 0 {
		b.WriteString("\nFix types with low approval:\n")
		for ft := range lowApprovalTypes {
			fmt.Fprintf(&b, "- %s\n", ft)
		}
	}
	return b.String(), nil
}

// topComments returns up to n non-empty rejection comments, most recent
// first, each truncated to maxChars.
func topComments(rejections []model.FixDecision, n, maxChars int) []string {
	out := make([]string, 0, n)
	for i := len(rejections) - 1; i >= 0 && len(out) < n; i-- {
		c := rejections[i].RejectionComment
		if c == "" {
			continue
		}
		if len(c) > maxChars {
			c = c[:maxChars]
		}
		out = append(out, c)
	}
	return out
}

// ComputeTrend compares first- and second-half approval rates of decisions
// (assumed time-sorted ascending) to classify the trajectory.
func ComputeTrend(decisions []model.FixDecision) Trend {
	if len(decisions) < 2 {
		return TrendStable
	}
	mid := len(decisions) / 2
	firstHalf := approvalRate(decisions[:mid])
	secondHalf := approvalRate(decisions[mid:])
	diff := secondHalf - firstHalf
	switch {
	case diff > 0.1:
		return TrendImproving
	case diff < -0.1:
		return TrendDeclining
	default:
		return TrendStable
	}
}
