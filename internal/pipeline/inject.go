package pipeline

import "strings"

// InjectStyle inserts css as a <style> block into an HTML document.
// It tries, in order: right after the opening <head> tag, a synthetic
// <head> right after the opening <html> tag, then prepending. It never fails.
func InjectStyle(htmlContent, css string) string {
	if css == "" {
		return htmlContent
	}

	styleBlock := "<style>" + SanitizeCSS(css) + "</style>"
	lowerHTML := asciiLower(htmlContent)

	if pos := afterOpeningTag(htmlContent, lowerHTML, "head"); pos != -1 {
		return htmlContent[:pos] + styleBlock + htmlContent[pos:]
	}

	if pos := afterOpeningTag(htmlContent, lowerHTML, "html"); pos != -1 {
		return htmlContent[:pos] + "<head>" + styleBlock + "</head>" + htmlContent[pos:]
	}

	return styleBlock + htmlContent
}

// afterOpeningTag returns the index just past the first <name ...> tag, or -1.
// "<head" only matches when followed by '>', '/' or whitespace, so <header>
// is not mistaken for <head>.
func afterOpeningTag(htmlContent, lowerHTML, name string) int {
	open := "<" + name
	offset := 0
	for {
		idx := strings.Index(lowerHTML[offset:], open)
		if idx == -1 {
			return -1
		}
		start := offset + idx
		next := start + len(open)
		if next >= len(lowerHTML) {
			return -1
		}
		switch lowerHTML[next] {
		case '>', '/', ' ', '\t', '\n', '\r', '\f':
			closeIdx := strings.IndexByte(htmlContent[next:], '>')
			if closeIdx == -1 {
				return -1
			}
			return next + closeIdx + 1
		}
		offset = next
	}
}

// SanitizeCSS escapes "</" so the CSS cannot close the <style> element early.
func SanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// asciiLower lower-cases ASCII letters only, keeping byte offsets aligned
// with the original string (strings.ToLower may change lengths).
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
