package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMarkdownConverter_ToHTML(t *testing.T) {
	t.Parallel()

	conv := NewMarkdownConverter()

	tests := []struct {
		name  string
		input string
		wants []string
	}{
		{
			name:  "heading gets an id",
			input: "# PAGE-1",
			wants: []string{`<h1 id="page-1">PAGE-1</h1>`},
		},
		{
			name:  "GFM table",
			input: "| a | b |\n|---|---|\n| 1 | 2 |",
			wants: []string{"<table>", "<td>1</td>"},
		},
		{
			name:  "code block is highlighted inline",
			input: "```go\nfunc main() {}\n```",
			wants: []string{"<pre", "style="},
		},
		{
			name:  "highlight syntax",
			input: "a ==marked== word",
			wants: []string{"<p>a <mark>marked</mark> word</p>"},
		},
		{
			name:  "CRLF line endings",
			input: "# Title\r\n\r\nbody",
			wants: []string{`<h1 id="title">Title</h1>`, "<p>body</p>"},
		},
		{
			name:  "raw HTML passes through",
			input: "<div class=\"x\">kept</div>",
			wants: []string{`<div class="x">kept</div>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := conv.ToHTML(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("ToHTML() error = %v", err)
			}
			if !strings.HasPrefix(got, "<!DOCTYPE html>") || !strings.Contains(got, "<head>") {
				t.Errorf("ToHTML() is not a full document: %q", got)
			}
			for _, want := range tt.wants {
				if !strings.Contains(got, want) {
					t.Errorf("ToHTML() missing %q in %q", want, got)
				}
			}
		})
	}
}

func TestMarkdownConverter_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMarkdownConverter().ToHTML(ctx, "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ToHTML() error = %v, want context.Canceled", err)
	}
}

func TestMarkdownThenInject(t *testing.T) {
	t.Parallel()

	html, err := NewMarkdownConverter().ToHTML(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	got := InjectStyle(html, "p{}")
	if !strings.Contains(got, "<head>\n<style>p{}</style>") && !strings.Contains(got, "<head><style>p{}</style>") {
		t.Errorf("style not placed right after <head>: %q", got)
	}
}

func TestNormalizeMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"CR and CRLF", "a\r\nb\rc", "a\nb\nc"},
		{"blank runs capped", "a\n\n\n\n\nb", "a\n\nb"},
		{"highlight", "x ==y== z", "x " + markOpen + "y" + markClose + " z"},
		{"unpaired marker kept", "a == b", "a == b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeMarkdown(tt.input); got != tt.want {
				t.Errorf("normalizeMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
