package autofix

import (
	"go/parser"
	"go/token"
	"strings"
)

// SyntaxChecker validates that a single file's fixed source is well-formed.
// A real deployment registers one per language; this module ships the Go
// checker it can exercise directly and treats any other extension as
// unchecked (syntaxValid defaults true, deferring to Sandbox.Verify's
// import/test run to catch real breakage).
type SyntaxChecker interface {
	CheckSyntax(filePath, code string) error
}

// GoSyntaxChecker parses .go sources with go/parser, mirroring the
// original engine's ast.parse-after-dedent check for Python.
type GoSyntaxChecker struct{}

func (GoSyntaxChecker) CheckSyntax(filePath, code string) error {
	if !strings.HasSuffix(filePath, ".go") {
		return nil
	}
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, filePath, code, parser.AllErrors)
	return err
}

// checkAll runs checker against every change's FixedCode, returning the
// first error encountered (syntax-invalid candidates are rejected before
// sandboxing per spec.md §4.5 step 3).
func checkAll(checker SyntaxChecker, changes []candidateChange) error {
	if checker == nil {
		checker = GoSyntaxChecker{}
	}
	for _, c := range changes {
		if err := checker.CheckSyntax(c.FilePath, c.FixedCode); err != nil {
			return err
		}
	}
	return nil
}
