package observability

import (
	"path/filepath"
	"testing"
)

func TestInitLogger_WritesToConfiguredFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	InitLogger(logPath, "debug")
}

func TestInitLogger_EmptyPathFallsBackToStdout(t *testing.T) {
	InitLogger("", "warn")
}
