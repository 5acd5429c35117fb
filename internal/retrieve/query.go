package retrieve

import (
	"strings"

	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

// normalizeQuery lowercases, trims, and collapses internal whitespace —
// the cache key's normalized query component.
func normalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	var b strings.Builder
	prevSpace := false
	for _, r := range q {
		if r == '\n' || r == '\t' || r == '\r' {
			r = ' '
		}
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// luceneReserved holds the 19 characters Lucene-style full-text queries
// treat as operators and that must be backslash-escaped in the sparse
// branch's query string.
var luceneReserved = []rune{'+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/'}

func isLuceneReserved(r rune) bool {
	for _, c := range luceneReserved {
		if r == c {
			return true
		}
	}
	return false
}

// luceneEscape escapes all 19 reserved characters with a backslash. It is
// idempotent on plain words (no reserved characters present).
func luceneEscape(q string) string {
	var b strings.Builder
	for _, r := range q {
		if isLuceneReserved(r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func defaultKinds() []model.NodeKind {
	return []model.NodeKind{model.KindFunction, model.KindClass, model.KindFile}
}
