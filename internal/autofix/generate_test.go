package autofix

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zach-hammad/repotoire-sub004/internal/llmprovider"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Generate(_ context.Context, _ llmprovider.Request) (string, error) {
	reply := s.replies[s.calls%len(s.replies)]
	s.calls++
	return reply, nil
}
func (s *scriptedLLM) Backend() string { return "scripted" }

const validFixJSON = `{
  "title": "Bump return value",
  "description": "Returns 2 instead of 1",
  "rationale": "The finding asked for an updated constant and this change is minimal and focused on exactly that line.",
  "evidence": {"documentation_refs": ["style-guide"], "best_practices": ["small diffs"]},
  "changes": [{
    "file_path": "sample.go",
    "original_code": "func Old() int {\n\treturn 1\n}",
    "fixed_code": "func Old() int {\n\treturn 2\n}",
    "start_line": 3,
    "end_line": 5,
    "description": "bump constant"
  }]
}`

func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "package pkg\n\nfunc Old() int {\n\treturn 1\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(content), 0o644))
	return dir
}

func includedEntitlement() model.Entitlement {
	return model.Entitlement{
		Tier: model.TierPro, Access: model.AccessIncluded,
		MaxN: 3, MonthlyRunsLimit: -1,
	}
}

func TestGenerate_SelectsVerifiedCandidate(t *testing.T) {
	repo := setupRepo(t)
	llm := &scriptedLLM{replies: []string{validFixJSON}}
	g := New(llm, t.TempDir())

	finding := model.Finding{ID: "f1", Title: "stale constant", FindingType: "complexity", AffectedFiles: []string{"sample.go"}}
	cfg := GenerateConfig{N: 1, MinTestPassRate: 0, TestCommand: []string{"true"}, MaxConcurrentSandboxes: 1}

	proposal, err := g.Generate(context.Background(), finding, repo, cfg, "cust-1", includedEntitlement(), "")
	require.NoError(t, err)
	require.Equal(t, model.FixApproved, proposal.Status)
	require.Len(t, proposal.Changes, 1)
	require.Contains(t, proposal.Changes[0].FixedCode, "return 2")
}

func TestGenerate_EntitlementGateBlocksUnavailableTier(t *testing.T) {
	repo := setupRepo(t)
	llm := &scriptedLLM{replies: []string{validFixJSON}}
	g := New(llm, t.TempDir())

	finding := model.Finding{ID: "f1", Title: "x"}
	cfg := GenerateConfig{N: 1}
	e := model.Entitlement{Tier: model.TierFree, Access: model.AccessUnavailable}

	_, err := g.Generate(context.Background(), finding, repo, cfg, "cust-1", e, "")
	require.Error(t, err)
}

func TestGenerate_NoSurvivorsWhenOriginalCodeMissing(t *testing.T) {
	repo := setupRepo(t)
	badJSON := `{"title":"x","description":"y","rationale":"z","changes":[{"file_path":"sample.go","original_code":"func DoesNotExist() {}","fixed_code":"x"}]}`
	llm := &scriptedLLM{replies: []string{badJSON}}
	g := New(llm, t.TempDir())

	finding := model.Finding{ID: "f1", Title: "x"}
	cfg := GenerateConfig{N: 1, TestCommand: []string{"true"}, MaxConcurrentSandboxes: 1}

	_, err := g.Generate(context.Background(), finding, repo, cfg, "cust-1", includedEntitlement(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no verified candidates")
}

func TestGenerate_MalformedJSONFallsBackToUnverifiable(t *testing.T) {
	repo := setupRepo(t)
	llm := &scriptedLLM{replies: []string{"not json at all"}}
	g := New(llm, t.TempDir())

	finding := model.Finding{ID: "f1", Title: "x"}
	cfg := GenerateConfig{N: 1, TestCommand: []string{"true"}, MaxConcurrentSandboxes: 1}

	_, err := g.Generate(context.Background(), finding, repo, cfg, "cust-1", includedEntitlement(), "")
	require.Error(t, err)
}

func TestGenerate_ClampsNToEntitlementMaxN(t *testing.T) {
	repo := setupRepo(t)
	llm := &scriptedLLM{replies: []string{validFixJSON}}
	g := New(llm, t.TempDir())

	finding := model.Finding{ID: "f1", Title: "x", FindingType: "complexity"}
	e := includedEntitlement()
	e.MaxN = 1
	cfg := GenerateConfig{N: 10, TestCommand: []string{"true"}, MaxConcurrentSandboxes: 2}

	proposal, err := g.Generate(context.Background(), finding, repo, cfg, "cust-1", e, "")
	require.NoError(t, err)
	require.NotEmpty(t, proposal.ID)
	require.Equal(t, 1, llm.calls)
}
