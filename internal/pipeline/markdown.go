package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrMarkdownConversion indicates a Markdown page could not be converted.
var ErrMarkdownConversion = errors.New("markdown conversion failed")

// markdownTemplate wraps goldmark's fragment output in a complete HTML5
// document so style injection finds a <head>.
const markdownTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
</head>
<body>
%s
</body>
</html>`

// MarkdownConverter renders Markdown pages to HTML with goldmark.
type MarkdownConverter struct {
	md goldmark.Markdown
}

// NewMarkdownConverter enables GFM, footnotes and chroma highlighting.
// Highlighting uses inline styles: pages carry no external stylesheet.
func NewMarkdownConverter() *MarkdownConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(false),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			// Raw HTML inside Markdown pages is passed through, as HTML pages are.
			html.WithUnsafe(),
		),
	)
	return &MarkdownConverter{md: md}
}

// ToHTML converts one Markdown page into a standalone HTML document.
// ==text== renders as <mark>text</mark>.
func (c *MarkdownConverter) ToHTML(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(normalizeMarkdown(content)), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMarkdownConversion, err)
	}
	return fmt.Sprintf(markdownTemplate, restoreMarks(buf.String())), nil
}
