// Package html2pdf renders ordered HTML pages with headless Chrome and merges
// them into a single PDF.
//
// # Quick Start
//
//	gen := html2pdf.NewGenerator(
//	    html2pdf.WithEngine(html2pdf.NewRodEngine()),
//	    html2pdf.WithLimits(html2pdf.ResolveLimits(true, 0, 0)),
//	)
//
//	res, err := gen.Generate(ctx, &html2pdf.Request{
//	    Pages:    []string{"<h1>One</h1>", "<h1>Two</h1>"},
//	    Filename: "report",
//	})
//	if err != nil {
//	    var e *html2pdf.Error
//	    errors.As(err, &e) // e.Kind, e.Message, e.Details
//	}
//	os.WriteFile(res.Filename, res.PDF, 0o644)
//
// # Pipeline
//
// Generate runs these stages for every request:
//
//  1. Validation: every field violation is collected into one ValidationError
//  2. Preparation: Markdown pages are converted, the optional web font is
//     fetched once and inlined into every page
//  3. Rendering: one browser per request, pages rendered in windows of
//     Limits.Concurrency; a window finishes before the next starts
//  4. Assembly: page PDFs are merged with pdfcpu in input order
//
// The browser is closed on every exit path.
//
// # Errors
//
// Every failure surfaces as *Error with one of five kinds: ValidationError,
// RenderError, TimeoutError, ResourceError and UnknownError. Message is
// user-facing and names the failing page; Details carries engine text and
// operator hints.
//
// # Browser Requirements
//
// Rendering requires Chrome/Chromium. Set ROD_BROWSER_BIN to choose a binary
// and ROD_NO_SANDBOX=1 in containers and CI. RodEngine may download a managed
// Chromium when WithBrowserDownload(true) is set.
package html2pdf
