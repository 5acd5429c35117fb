package autofix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoSyntaxChecker_AcceptsValidSource(t *testing.T) {
	err := GoSyntaxChecker{}.CheckSyntax("sample.go", "package main\n\nfunc main() {}\n")
	require.NoError(t, err)
}

func TestGoSyntaxChecker_RejectsInvalidSource(t *testing.T) {
	err := GoSyntaxChecker{}.CheckSyntax("sample.go", "package main\n\nfunc main( {\n")
	require.Error(t, err)
}

func TestGoSyntaxChecker_SkipsNonGoFiles(t *testing.T) {
	err := GoSyntaxChecker{}.CheckSyntax("sample.py", "def broken(:\n")
	require.NoError(t, err)
}

func TestCheckAll_ReturnsFirstError(t *testing.T) {
	changes := []candidateChange{
		{FilePath: "a.go", FixedCode: "package main\n\nfunc A() {}\n"},
		{FilePath: "b.go", FixedCode: "package main\n\nfunc B( {\n"},
	}
	err := checkAll(GoSyntaxChecker{}, changes)
	require.Error(t, err)
}
