package retrieve

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RenderSnippet opens filePath and returns lines
// [lineStart-contextLines, lineEnd+contextLines] (1-based, clamped to the
// file's extent), each prefixed with a 4-char line-number column and a
// ">>> " marker on the entity's own range (four spaces elsewhere). Read
// failures degrade to a diagnostic string rather than propagating an error.
func RenderSnippet(filePath string, lineStart, lineEnd, contextLines int) string {
	lines, err := readLines(filePath)
	if err != nil {
		return fmt.Sprintf("# Could not fetch: %v", err)
	}

	from := lineStart - contextLines
	if from < 1 {
		from = 1
	}
	to := lineEnd + contextLines
	if to > len(lines) {
		to = len(lines)
	}

	var b strings.Builder
	for i := from; i <= to; i++ {
		prefix := "    "
		if i >= lineStart && i <= lineEnd {
			prefix = ">>> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", prefix, i, lines[i-1])
	}
	return b.String()
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
