package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// Config controls how Verify isolates and bounds a candidate run.
type Config struct {
	// RootDir is the parent directory new verification copies are made
	// under; each run gets its own subdirectory.
	RootDir string
	// TestTimeout bounds a single verification run; on expiry the process
	// is killed and the candidate is recorded as failed, per spec.
	TestTimeout time.Duration
	// TestCommand is the project's test command, e.g. []string{"go", "test", "./..."}.
	TestCommand []string
	// ImportCheckCommand optionally validates that the changed files still
	// import cleanly, independent of the full test suite.
	ImportCheckCommand []string
	BlockedBinaries    map[string]struct{}
}

// FileChange is the minimal shape Verify needs from a candidate's changes;
// it mirrors model.Change without importing the autofix package, keeping
// sandbox free of a dependency on the generator it serves.
type FileChange struct {
	FilePath     string
	OriginalCode string
	FixedCode    string
}

// Sandbox runs candidate fixes in an isolated filesystem copy, enforcing a
// timeout and a jailed working directory via the path-policy helpers in
// pathpolicy.go.
type Sandbox struct {
	cfg Config
}

// New constructs a Sandbox with the given configuration.
func New(cfg Config) *Sandbox {
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 120 * time.Second
	}
	return &Sandbox{cfg: cfg}
}

// Verify applies changes to a fresh copy of repoPath, then runs the import
// check (if configured) and the test command, returning a
// model.VerificationResult. Each invocation is isolated: concurrent Verify
// calls share no mutable state beyond the filesystem they are individually
// rooted under.
func (s *Sandbox) Verify(ctx context.Context, fixID, repoPath string, changes []FileChange) model.VerificationResult {
	start := time.Now()
	result := model.VerificationResult{FixID: fixID}

	workdir, cleanup, err := s.copyRepo(repoPath)
	if err != nil {
		errStr := fmt.Sprintf("sandbox setup failed: %v", err)
		result.Error = &errStr
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	defer cleanup()

	if err := s.applyChanges(workdir, changes); err != nil {
		errStr := fmt.Sprintf("apply changes failed: %v", err)
		result.Error = &errStr
		result.SyntaxValid = false
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	result.SyntaxValid = true

	cctx, cancel := context.WithTimeout(ctx, s.cfg.TestTimeout)
	defer cancel()

	if len(s.cfg.ImportCheckCommand) > 0 {
		ok := s.runCommand(cctx, workdir, s.cfg.ImportCheckCommand)
		result.ImportValid = &ok
	}

	if len(s.cfg.TestCommand) > 0 {
		passed, failed, total, runErr := s.runTests(cctx, workdir)
		result.TestsPassed = passed
		result.TestsFailed = failed
		result.TestsTotal = total
		if runErr != nil {
			errStr := runErr.Error()
			result.Error = &errStr
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (s *Sandbox) copyRepo(repoPath string) (workdir string, cleanup func(), err error) {
	root := s.cfg.RootDir
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, "verify-*")
	if err != nil {
		return "", nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	if err := copyTree(repoPath, dir); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("copy repo into sandbox: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// applyChanges writes each FileChange's FixedCode over the original content
// at FilePath within workdir. Changes are applied via literal file
// overwrite here; the literal-substring ApplyChange semantics used by
// internal/autofix run earlier, against the original repo, before handing
// the already-patched copy to Verify — Verify's job is purely to validate
// what was produced, not to re-derive it.
func (s *Sandbox) applyChanges(workdir string, changes []FileChange) error {
	for _, c := range changes {
		rel, err := SanitizeArg(workdir, c.FilePath)
		if err != nil {
			return fmt.Errorf("change path %q: %w", c.FilePath, err)
		}
		target := filepath.Join(workdir, rel)
		if err := os.WriteFile(target, []byte(c.FixedCode), 0o644); err != nil {
			return fmt.Errorf("write %q: %w", target, err)
		}
	}
	return nil
}

func (s *Sandbox) runCommand(ctx context.Context, workdir string, argv []string) bool {
	if len(argv) == 0 {
		return true
	}
	if IsBinaryBlocked(argv[0], s.cfg.BlockedBinaries) {
		log.Warn().Str("binary", argv[0]).Msg("blocked binary rejected in sandbox")
		return false
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	return cmd.Run() == nil
}

// runTests runs the configured test command and returns a best-effort
// passed/failed/total triple. Exact per-test accounting is language/tool
// specific and out of this module's scope; a non-zero exit is treated as
// "all configured tests failed" and a zero exit as "all passed," which a
// real test-runner adapter can refine by parsing structured output.
func (s *Sandbox) runTests(ctx context.Context, workdir string) (passed, failed, total int, err error) {
	argv := s.cfg.TestCommand
	if len(argv) == 0 {
		return 0, 0, 0, nil
	}
	if IsBinaryBlocked(argv[0], s.cfg.BlockedBinaries) {
		return 0, 1, 1, fmt.Errorf("blocked binary: %s", argv[0])
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, 1, 1, fmt.Errorf("test command timed out after %s", s.cfg.TestTimeout)
	}
	if runErr != nil {
		return 0, 1, 1, fmt.Errorf("test command failed: %w", runErr)
	}
	return 1, 0, 1, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if strings.HasPrefix(rel, ".git") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
