// Package autofix implements BestOfNGenerator: the entitlements-gated,
// N-parallel-candidate, sandbox-verified, six-dimension-scored fix
// generator. Grounded on internal/evolve/evolve.go's parallel-candidate
// generation and diff-parsing shape, generalized from its single-parent
// generational loop to a single-generation N-candidates-then-select shape,
// and on original_source/repotoire/autofix/engine.py for the fix-prompt
// shape, JSON parsing with code-fence stripping, and literal-substring
// apply semantics (spec.md Open Question 1).
package autofix

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Zach-hammad/repotoire-sub004/internal/entitlements"
	"github.com/Zach-hammad/repotoire-sub004/internal/llmprovider"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
	"github.com/Zach-hammad/repotoire-sub004/internal/observability"
	"github.com/Zach-hammad/repotoire-sub004/internal/sandbox"
)

// GenerateConfig tunes one Generate call.
type GenerateConfig struct {
	N                      int
	Temperature            float64
	TestTimeout            time.Duration
	MaxConcurrentSandboxes int
	MinTestPassRate        float64
	RequireAllTestsPass    bool
	MinScore               float64
	TestCommand            []string
	ImportCheckCommand     []string
}

func (c GenerateConfig) withDefaults() GenerateConfig {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.TestTimeout == 0 {
		c.TestTimeout = 120 * time.Second
	}
	if c.MaxConcurrentSandboxes == 0 {
		c.MaxConcurrentSandboxes = 5
	}
	return c
}

// rawChange is one entry of the LLM's JSON "changes" array.
type rawChange struct {
	FilePath     string `json:"file_path"`
	OriginalCode string `json:"original_code"`
	FixedCode    string `json:"fixed_code"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	Description  string `json:"description"`
}

type rawEvidence struct {
	DocumentationRefs []string `json:"documentation_refs"`
	BestPractices     []string `json:"best_practices"`
	SimilarPatterns   []string `json:"similar_patterns"`
}

// parsedFix is the LLM's JSON response, decoded.
type parsedFix struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Rationale   string      `json:"rationale"`
	Evidence    rawEvidence `json:"evidence"`
	Changes     []rawChange `json:"changes"`
}

// candidateChange is the fully-materialized per-file change a candidate
// produces: the whole new file content, ready for Sandbox.Verify to write.
type candidateChange struct {
	FilePath     string
	OriginalCode string
	FixedCode    string
}

// candidate is one of the N generated fixes as it moves through parsing,
// syntax-checking, sandboxing, and scoring.
type candidate struct {
	proposal          model.FixProposal
	parsed            parsedFix
	changes           []candidateChange
	totalLinesChanged int
	hasTests          bool
	syntaxErr         error
	verification      model.VerificationResult
}

// BestOfNGenerator generates N candidate fixes for a finding, verifies each
// in an isolated sandbox, and selects the highest-scoring survivor.
type BestOfNGenerator struct {
	llm           llmprovider.LLM
	sandboxRoot   string
	blockedBins   map[string]struct{}
	scorer        Scorer
	syntaxChecker SyntaxChecker
	accountant    entitlements.UsageAccountant
	tracer        *observability.Tracer
	metrics       observability.Metrics
}

// Option configures a BestOfNGenerator at construction time.
type Option func(*BestOfNGenerator)

func WithScorer(s Scorer) Option              { return func(g *BestOfNGenerator) { g.scorer = s } }
func WithSyntaxChecker(c SyntaxChecker) Option { return func(g *BestOfNGenerator) { g.syntaxChecker = c } }
func WithUsageAccountant(a entitlements.UsageAccountant) Option {
	return func(g *BestOfNGenerator) { g.accountant = a }
}
func WithBlockedBinaries(b map[string]struct{}) Option {
	return func(g *BestOfNGenerator) { g.blockedBins = b }
}
func WithTracer(t *observability.Tracer) Option {
	return func(g *BestOfNGenerator) { g.tracer = t }
}
func WithMetrics(m observability.Metrics) Option {
	return func(g *BestOfNGenerator) { g.metrics = m }
}

// New constructs a BestOfNGenerator. sandboxRoot is the parent directory
// Sandbox copies isolated verification runs under.
func New(llm llmprovider.LLM, sandboxRoot string, opts ...Option) *BestOfNGenerator {
	g := &BestOfNGenerator{
		llm:           llm,
		sandboxRoot:   sandboxRoot,
		scorer:        NewScorer(DefaultWeights()),
		syntaxChecker: GoSyntaxChecker{},
		tracer:        observability.NewTracer("internal/autofix"),
		metrics:       observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the full best-of-N pipeline: entitlements gate, N parallel
// candidate generations (bounded by cfg.MaxConcurrentSandboxes), filtering,
// scoring, selection, and usage accounting.
func (g *BestOfNGenerator) Generate(
	ctx context.Context,
	finding model.Finding,
	repoPath string,
	cfg GenerateConfig,
	customerID string,
	entitlement model.Entitlement,
	promptAdjustment string,
) (model.FixProposal, error) {
	cfg = cfg.withDefaults()

	n, err := entitlements.Check(entitlement, cfg.N)
	if err != nil {
		return model.FixProposal{}, err
	}

	candidates := g.generateCandidates(ctx, finding, repoPath, cfg, n, promptAdjustment)

	survivors := filterSurvivors(candidates, cfg.MinTestPassRate)
	if len(survivors) == 0 {
		return model.FixProposal{}, fmt.Errorf("no verified candidates")
	}

	if cfg.RequireAllTestsPass {
		survivors = filterAllTestsPass(survivors)
		if len(survivors) == 0 {
			return model.FixProposal{}, fmt.Errorf("no verified candidates")
		}
	}

	ranked := g.scorer.Rank(survivors)
	if cfg.MinScore > 0 && ranked[0].Total < cfg.MinScore {
		return model.FixProposal{}, fmt.Errorf("top candidate score %.3f below minimum %.3f", ranked[0].Total, cfg.MinScore)
	}

	winner := ranked[0].Candidate
	winner.proposal.Status = model.FixApproved
	winner.proposal.SyntaxValid = model.TriTrue

	if err := entitlements.RecordUsage(g.accountant, customerID, entitlement); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("usage accounting failed after successful generation")
	}

	return winner.proposal, nil
}

// generateCandidates launches n candidate generations concurrently, bounded
// by cfg.MaxConcurrentSandboxes via a weighted semaphore — generalized from
// the teacher's goroutine+channel idiom to per-candidate LLM-call-then-verify.
func (g *BestOfNGenerator) generateCandidates(ctx context.Context, finding model.Finding, repoPath string, cfg GenerateConfig, n int, promptAdjustment string) []*candidate {
	ctx, endSpan := g.tracer.Start(ctx, "autofix.generateCandidates", map[string]any{"n": n, "finding_id": finding.ID})
	defer endSpan(nil)

	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrentSandboxes))
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make([]*candidate, 0, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				out = append(out, &candidate{
					proposal:  model.FixProposal{Finding: finding, Status: model.FixRejected},
					syntaxErr: fmt.Errorf("acquire sandbox slot: %w", err),
				})
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			c := g.runOneCandidate(ctx, finding, repoPath, cfg, idx, promptAdjustment)
			status := "failed"
			if c.syntaxErr == nil && c.verification.Error == nil && c.verification.SyntaxValid {
				status = "verified"
			}
			g.metrics.IncCounter("autofix.candidate.outcome", map[string]string{"status": status})
			mu.Lock()
			out = append(out, c)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return out
}

func (g *BestOfNGenerator) runOneCandidate(ctx context.Context, finding model.Finding, repoPath string, cfg GenerateConfig, idx int, promptAdjustment string) *candidate {
	fixID := uuid.NewString()
	c := &candidate{
		proposal: model.FixProposal{
			ID:        fixID,
			Finding:   finding,
			CreatedAt: time.Now(),
			Status:    model.FixPending,
		},
	}

	prompt := buildPrompt(finding, promptAdjustment)
	reply, err := g.llm.Generate(ctx, llmprovider.Request{
		System: systemPrompt(promptAdjustment),
		Messages: []llmprovider.Message{
			{Role: llmprovider.RoleUser, Content: prompt},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		c.syntaxErr = fmt.Errorf("generation failed: %w", err)
		c.verification = model.VerificationResult{FixID: fixID, SyntaxValid: false, Error: strPtr(c.syntaxErr.Error())}
		return c
	}
	replyJSON := []byte(reply)
	if m := jsonFenceRe.FindStringSubmatch(reply); len(m) == 2 {
		replyJSON = []byte(m[1])
	}
	if !json.Valid(replyJSON) {
		replyJSON, _ = json.Marshal(reply)
	}
	log.Debug().
		Str("fix_id", fixID).
		RawJSON("llm_reply_redacted", observability.RedactJSON(replyJSON)).
		Msg("received fix candidate response")

	c.parsed = parseFixResponse(reply)
	c.proposal.Title = c.parsed.Title
	c.proposal.Description = c.parsed.Description
	c.proposal.Rationale = c.parsed.Rationale
	c.proposal.FixType = classifyFixType(finding)
	c.proposal.Evidence = model.Evidence{
		DocumentationRefs: c.parsed.Evidence.DocumentationRefs,
		BestPractices:     c.parsed.Evidence.BestPractices,
		SimilarPatterns:   c.parsed.Evidence.SimilarPatterns,
	}
	c.proposal.Confidence = heuristicConfidence(c.parsed)

	if len(c.parsed.Changes) == 0 {
		c.syntaxErr = fmt.Errorf("candidate produced no changes; unverifiable")
		c.verification = model.VerificationResult{FixID: fixID, SyntaxValid: false, Error: strPtr(c.syntaxErr.Error())}
		return c
	}

	materialized, changeRecords, linesChanged, hasTests, applyErr := materializeChanges(repoPath, c.parsed.Changes)
	c.proposal.Changes = changeRecords
	c.totalLinesChanged = linesChanged
	c.hasTests = hasTests
	if applyErr != nil {
		c.syntaxErr = applyErr
		c.verification = model.VerificationResult{FixID: fixID, SyntaxValid: false, Error: strPtr(applyErr.Error())}
		return c
	}
	c.changes = materialized

	if err := checkAll(g.syntaxChecker, materialized); err != nil {
		c.syntaxErr = err
		c.verification = model.VerificationResult{FixID: fixID, SyntaxValid: false, Error: strPtr(err.Error())}
		return c
	}

	sb := sandbox.New(sandbox.Config{
		RootDir:            g.sandboxRoot,
		TestTimeout:        cfg.TestTimeout,
		TestCommand:        cfg.TestCommand,
		ImportCheckCommand: cfg.ImportCheckCommand,
		BlockedBinaries:    g.blockedBins,
	})
	sandboxChanges := make([]sandbox.FileChange, len(materialized))
	for i, ch := range materialized {
		sandboxChanges[i] = sandbox.FileChange{FilePath: ch.FilePath, OriginalCode: ch.OriginalCode, FixedCode: ch.FixedCode}
	}
	c.verification = sb.Verify(ctx, fixID, repoPath, sandboxChanges)
	return c
}

// materializeChanges reads each change's file from repoPath, applies the
// literal-substring replacement, and returns both the whole-file
// candidateChanges (for Sandbox.Verify) and the snippet-level model.Change
// records (for human review in the proposal).
func materializeChanges(repoPath string, raw []rawChange) ([]candidateChange, []model.Change, int, bool, error) {
	materialized := make([]candidateChange, 0, len(raw))
	records := make([]model.Change, 0, len(raw))
	totalLines := 0
	hasTests := false

	for _, rc := range raw {
		fullPath := filepath.Join(repoPath, rc.FilePath)
		original, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, nil, 0, false, fmt.Errorf("read %q: %w", rc.FilePath, err)
		}
		newContent, err := ApplyChange(string(original), rc.OriginalCode, rc.FixedCode)
		if err != nil {
			return nil, nil, 0, false, fmt.Errorf("apply change to %q: %w", rc.FilePath, err)
		}
		materialized = append(materialized, candidateChange{
			FilePath:     rc.FilePath,
			OriginalCode: string(original),
			FixedCode:    newContent,
		})
		records = append(records, model.Change{
			FilePath:     rc.FilePath,
			OriginalCode: rc.OriginalCode,
			FixedCode:    rc.FixedCode,
			StartLine:    rc.StartLine,
			EndLine:      rc.EndLine,
			Description:  rc.Description,
		})
		totalLines += strings.Count(rc.FixedCode, "\n") + 1
		if strings.HasSuffix(rc.FilePath, "_test.go") {
			hasTests = true
		}
	}
	return materialized, records, totalLines, hasTests, nil
}

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// parseFixResponse extracts and decodes the LLM's JSON payload, tolerating
// a wrapping ```json fence. On parse failure it falls back to a minimal
// title/description-only result with empty changes, per spec.md §4.5 step
// 2 — the candidate survives as unverifiable rather than erroring the
// whole generation.
func parseFixResponse(raw string) parsedFix {
	text := raw
	if m := jsonFenceRe.FindStringSubmatch(raw); len(m) == 2 {
		text = m[1]
	}

	var p parsedFix
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		desc := raw
		if len(desc) > 500 {
			desc = desc[:500]
		}
		return parsedFix{
			Title:       "Auto-generated fix",
			Description: desc,
			Rationale:   "Fix suggested by AI",
		}
	}
	return p
}

func heuristicConfidence(p parsedFix) model.Confidence {
	score := 0.5
	if len(p.Changes) == 1 {
		score += 0.1
	}
	if len(p.Rationale) > 100 {
		score += 0.1
	}
	if len(p.Evidence.DocumentationRefs)+len(p.Evidence.BestPractices)+len(p.Evidence.SimilarPatterns) >= 2 {
		score += 0.15
	}
	switch {
	case score >= 0.9:
		return model.ConfidenceHigh
	case score >= 0.7:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func classifyFixType(f model.Finding) model.FixType {
	switch strings.ToLower(f.FindingType) {
	case "security":
		return model.FixSecurity
	case "dead_code", "unused":
		return model.FixRemove
	case "complexity", "duplication":
		return model.FixSimplify
	case "missing_docs":
		return model.FixDocumentation
	case "long_function":
		return model.FixExtract
	case "missing_type_hint":
		return model.FixTypeHint
	default:
		return model.FixRefactor
	}
}

func buildPrompt(finding model.Finding, promptAdjustment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finding: %s\nDescription: %s\nSeverity: %s\nAffected files: %s\n\n",
		finding.Title, finding.Description, finding.Severity, strings.Join(finding.AffectedFiles, ", "))
	b.WriteString("Respond with a JSON object: {title, description, rationale, evidence:{documentation_refs,best_practices,similar_patterns}, changes:[{file_path,original_code,fixed_code,start_line,end_line,description}]}.\n")
	b.WriteString("Only fix the specific issue mentioned. Preserve existing functionality. Keep changes minimal and focused.\n")
	if promptAdjustment != "" {
		b.WriteString("\n")
		b.WriteString(promptAdjustment)
	}
	return b.String()
}

func systemPrompt(promptAdjustment string) string {
	base := "You are an expert software engineer generating a minimal, correct fix for the described issue."
	if promptAdjustment == "" {
		return base
	}
	return base + "\n\n" + promptAdjustment
}

func filterSurvivors(candidates []*candidate, minTestPassRate float64) []*candidate {
	out := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.syntaxErr != nil {
			continue
		}
		if c.verification.Error != nil {
			continue
		}
		if !c.verification.SyntaxValid {
			continue
		}
		if c.verification.TestPassRate() < minTestPassRate {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterAllTestsPass(candidates []*candidate) []*candidate {
	out := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.verification.TestPassRate() == 1.0 {
			out = append(out, c)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
