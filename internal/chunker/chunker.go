// Package chunker splits narrative text into the ordered sections the
// narration controller plays one at a time.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PreviewLength is the rune count used when listing sections.
const PreviewLength = 70

// blankLines matches a paragraph boundary: a newline, any whitespace-only
// lines, and at least one more newline.
var blankLines = regexp.MustCompile(`\n\s*\n`)

// Split breaks text on blank-line boundaries, trims every section and drops
// the empty ones. Document order is preserved. Empty or whitespace-only input
// yields an empty (non-nil) slice.
func Split(text string) []string {
	chunks := make([]string, 0)
	for _, part := range blankLines.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, part)
	}
	return chunks
}

// Preview returns the first n runes of chunk, followed by "..." when the
// chunk is longer than that.
func Preview(chunk string, n int) string {
	if n <= 0 || utf8.RuneCountInString(chunk) <= n {
		return chunk
	}
	runes := []rune(chunk)
	return string(runes[:n]) + "..."
}
