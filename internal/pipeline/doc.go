// Package pipeline prepares page HTML before rendering.
//
// It covers the steps that only touch document text:
//   - Markdown pages to HTML via goldmark (GFM, footnotes, chroma highlighting,
//     ==highlight== as <mark>)
//   - style injection (embedded web fonts) with a head/html/prepend fallback chain
//
// Rendering and merging live in the root html2pdf package.
package pipeline
