package pipeline

import (
	"regexp"
	"strings"
)

// Private Use Area runes stand in for <mark> while goldmark runs, so
// ==highlight== survives escaping without relying on raw HTML.
const (
	markOpen  = "\uE000"
	markClose = "\uE001"
)

var (
	lineBreaks = regexp.MustCompile(`\r\n?`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	highlight  = regexp.MustCompile(`==(.*?)==`)
)

// normalizeMarkdown unifies line endings, caps blank runs at one empty line
// and swaps ==text== for mark placeholders.
func normalizeMarkdown(content string) string {
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = highlight.ReplaceAllString(content, markOpen+"$1"+markClose)
	return blankRuns.ReplaceAllString(content, "\n\n")
}

// restoreMarks turns placeholders left in rendered HTML into <mark> tags.
func restoreMarks(html string) string {
	return strings.NewReplacer(markOpen, "<mark>", markClose, "</mark>").Replace(html)
}
