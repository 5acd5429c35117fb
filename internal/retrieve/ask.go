package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Zach-hammad/repotoire-sub004/internal/llmprovider"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

const askSystemPrompt = "You are an expert code historian. Answer the question using only the " +
	"supplied sources, citing entities and commits by name. Be concise and factual."

// stockNoMatchesAnswer is returned verbatim when Retrieve finds nothing.
const stockNoMatchesAnswer = "No matching entities or commits were found for this question."

// Ask answers a natural-language question over the graph: it retrieves
// topK candidates, formats them as a structured context block, and asks
// llm to synthesize a grounded answer. Degrades to a plain source listing
// if the LLM call fails, and to a stock "no matches" answer if Retrieve
// finds nothing.
func (h *HybridRetriever) Ask(ctx context.Context, query string, topK int, llm llmprovider.LLM) (model.Answer, error) {
	start := time.Now()
	results, err := h.Retrieve(ctx, query, topK, nil, true)
	if err != nil {
		return model.Answer{}, err
	}
	if len(results) == 0 {
		return model.Answer{
			Answer:     stockNoMatchesAnswer,
			Sources:    nil,
			Confidence: 0,
			FollowUps:  nil,
			ElapsedMs:  time.Since(start).Milliseconds(),
		}, nil
	}

	top10 := results
	if len(top10) > 10 {
		top10 = top10[:10]
	}
	contextBlock := formatContextBlock(top10)
	confidence := meanTopN(results, 3)

	var answerText string
	if llm != nil {
		reply, genErr := llm.Generate(ctx, llmprovider.Request{
			System: askSystemPrompt,
			Messages: []llmprovider.Message{
				{Role: llmprovider.RoleUser, Content: fmt.Sprintf("Question: %s\n\nSources:\n%s", query, contextBlock)},
			},
			MaxTokens:   800,
			Temperature: 0.2,
		})
		if genErr != nil {
			log.Warn().Err(genErr).Msg("ask: LLM generation failed, degrading to source listing")
			answerText = degradedListing(results)
			confidence = 0.3
		} else {
			answerText = reply
		}
	} else {
		answerText = degradedListing(results)
		confidence = 0.3
	}

	return model.Answer{
		Answer:     answerText,
		Sources:    top10,
		Confidence: confidence,
		FollowUps:  followUps(results[0]),
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

// formatContextBlock renders the "{i}. Commit/Entity ... (...)\n   Author/Module ...\n   Summary: ..."
// block Ask mode seeds the LLM with.
func formatContextBlock(results []model.RetrievalResult) string {
	var b strings.Builder
	for i, r := range results {
		label := "Entity"
		locator := r.QualifiedName
		moduleLine := fmt.Sprintf("   Module: %s", filePathOf(r))
		fmt.Fprintf(&b, "%d. %s %s (%s)\n%s\n   Summary: %s\n",
			i+1, label, locator, locationOf(r), moduleLine, summaryOf(r))
	}
	return b.String()
}

func filePathOf(r model.RetrievalResult) string {
	fp, _ := r.Metadata["file_path"].(string)
	return fp
}

func locationOf(r model.RetrievalResult) string {
	fp, _ := r.Metadata["file_path"].(string)
	ls, _ := r.Metadata["line_start"].(int)
	if fp == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", fp, ls)
}

func summaryOf(r model.RetrievalResult) string {
	ds, _ := r.Metadata["docstring"].(string)
	if ds != "" {
		return ds
	}
	return "(no docstring)"
}

// degradedListing renders a plain top-5 source listing used when the LLM
// call fails or no LLM is configured.
func degradedListing(results []model.RetrievalResult) string {
	top5 := results
	if len(top5) > 5 {
		top5 = top5[:5]
	}
	var b strings.Builder
	b.WriteString("Could not generate a synthesized answer. Closest matches:\n")
	b.WriteString(formatContextBlock(top5))
	return b.String()
}

func meanTopN(results []model.RetrievalResult, n int) float64 {
	if len(results) < n {
		n = len(results)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results[:n] {
		sum += r.Score
	}
	return sum / float64(n)
}

// followUps generates up to three heuristic follow-up questions scoped to
// the top result's author/commit, file, and time dimensions.
func followUps(top model.RetrievalResult) []string {
	var out []string
	if fp := filePathOf(top); fp != "" {
		out = append(out, fmt.Sprintf("What else changed in %s?", fp))
	}
	out = append(out, fmt.Sprintf("Who else works on %s?", top.QualifiedName))
	out = append(out, fmt.Sprintf("What changed in %s recently?", top.QualifiedName))
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
