package autofix

import (
	"fmt"
	"strings"
)

// ApplyChange replaces the first literal occurrence of change.OriginalCode
// (trimmed of leading/trailing whitespace) with change.FixedCode within
// content. This preserves the original implementation's literal-substring
// semantics (spec.md Open Question 1) rather than line-anchored diffing:
// the trimmed original must appear verbatim in content, or the change is
// rejected as non-applicable.
func ApplyChange(content, originalCode, fixedCode string) (string, error) {
	trimmed := strings.TrimSpace(originalCode)
	if trimmed == "" {
		return "", fmt.Errorf("original code is empty after trimming")
	}
	if !strings.Contains(content, trimmed) {
		return "", fmt.Errorf("original code not found in file content")
	}
	return strings.Replace(content, trimmed, fixedCode, 1), nil
}
