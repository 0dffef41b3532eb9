package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-html2pdf/internal/fonts"
	"github.com/alnah/go-html2pdf/internal/hints"
	"github.com/alnah/go-html2pdf/internal/pipeline"
)

// Compile-time interface implementation checks.
var (
	_ FontResolver      = (*fonts.Resolver)(nil)
	_ markdownConverter = (*pipeline.MarkdownConverter)(nil)
)

// FontResolver turns a font descriptor into an inline @font-face rule.
// An empty result means the font could not be embedded.
type FontResolver interface {
	Resolve(ctx context.Context, d *fonts.Descriptor) string
}

// markdownConverter turns a Markdown page into a standalone HTML document.
type markdownConverter interface {
	ToHTML(ctx context.Context, content string) (string, error)
}

// Generator runs the whole pipeline for a request: validate, prepare pages,
// render them in windows, merge.
// A Generator is safe for concurrent use; each call launches its own browser.
type Generator struct {
	engine    Engine
	limits    Limits
	logger    *zap.Logger
	fonts     FontResolver
	markdown  markdownConverter
	renderer  *PageRenderer
	assembler *Assembler
}

// Option configures a Generator.
type Option func(*Generator)

// WithEngine sets the rendering engine. A nil engine makes every request
// fail with an UnknownError after validation.
func WithEngine(e Engine) Option {
	return func(g *Generator) { g.engine = e }
}

// WithLimits sets the concurrency and page-count limits.
func WithLimits(l Limits) Option {
	return func(g *Generator) { g.limits = l }
}

// WithLogger sets the logger shared by all pipeline stages.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithFontResolver replaces the HTTP font resolver.
func WithFontResolver(r FontResolver) Option {
	return func(g *Generator) { g.fonts = r }
}

// WithRenderer replaces the page renderer (viewport, admission, grace period).
func WithRenderer(r *PageRenderer) Option {
	return func(g *Generator) { g.renderer = r }
}

// NewGenerator creates a Generator. Without options it uses the
// development limits and no engine.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		limits: ResolveLimits(false, 0, 0),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.fonts == nil {
		g.fonts = fonts.NewResolver(fonts.WithLogger(g.logger))
	}
	if g.markdown == nil {
		g.markdown = pipeline.NewMarkdownConverter()
	}
	if g.renderer == nil {
		g.renderer = NewPageRenderer(g.logger)
	}
	if g.assembler == nil {
		g.assembler = NewAssembler(g.logger)
	}
	return g
}

// Limits returns the active limits.
func (g *Generator) Limits() Limits {
	return g.limits
}

// RendererAvailable reports whether an engine is configured and, when the
// engine can tell, whether it finds a browser.
func (g *Generator) RendererAvailable() bool {
	if g.engine == nil {
		return false
	}
	if a, ok := g.engine.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// Generate validates req, renders every page and merges them in input order.
// Every failure is returned as a classified *Error.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (g *Generator) Generate(ctx context.Context, req *Request) (result *Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
		if err != nil {
			err = Classify(err)
		}
	}()

	valid, err := Validate(req, g.limits)
	if err != nil {
		return nil, err
	}

	if g.engine == nil {
		return nil, unavailable(ErrRendererUnavailable)
	}

	jobs, err := g.prepare(ctx, valid)
	if err != nil {
		return nil, err
	}

	browser, err := g.engine.Launch(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			g.logger.Warn("closing browser", zap.Error(cerr))
		}
	}()

	sched := NewScheduler(g.limits.Concurrency)
	buffers, err := RunWindows(ctx, sched, len(jobs), func(ctx context.Context, i int) ([]byte, error) {
		return g.renderer.Render(ctx, browser, jobs[i])
	})
	if err != nil {
		return nil, withTimeoutHint(err, valid.Options.Timeout)
	}

	doc, err := g.assembler.Merge(ctx, buffers)
	if err != nil {
		return nil, err
	}

	result = &Result{
		PDF:        doc.PDF,
		Filename:   valid.Filename,
		PageCount:  doc.PageCount,
		InputPages: len(valid.Pages),
		Duration:   time.Since(start),
	}
	g.logger.Info("document generated",
		zap.Int("inputPages", result.InputPages),
		zap.Int("pageCount", result.PageCount),
		zap.Int("bytes", len(result.PDF)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// prepare converts Markdown pages, resolves the font once and injects it
// into every page.
func (g *Generator) prepare(ctx context.Context, req *Request) ([]RenderJob, error) {
	pages := req.Pages
	if req.ContentType == ContentTypeMarkdown {
		pages = make([]string, len(req.Pages))
		for i, md := range req.Pages {
			html, err := g.markdown.ToHTML(ctx, md)
			if err != nil {
				return nil, &Error{
					Kind:    KindRender,
					Message: fmt.Sprintf("Page %d could not be converted from Markdown", i+1),
					Details: err.Error(),
					Err:     err,
				}
			}
			pages[i] = html
		}
	}

	var css string
	if req.Font != nil {
		css = g.fonts.Resolve(ctx, &fonts.Descriptor{
			Family: req.Font.Family,
			URL:    req.Font.URL,
			Format: req.Font.Format,
			Weight: string(req.Font.Weight),
			Style:  req.Font.Style,
		})
	}

	jobs := make([]RenderJob, len(pages))
	for i, page := range pages {
		if css != "" {
			page = pipeline.InjectStyle(page, css)
		}
		jobs[i] = RenderJob{Index: i, HTML: page, Options: req.Options}
	}
	return jobs, nil
}

// unavailable reports a renderer that could not be started.
func unavailable(err error) *Error {
	hint := hints.ForBrowserLaunch()
	if errors.Is(err, ErrRendererUnavailable) {
		hint = hints.ForRendererUnavailable()
	}
	return &Error{
		Kind:    KindUnknown,
		Message: ErrRendererUnavailable.Error(),
		Details: hints.Append(err.Error(), hint),
		Err:     err,
	}
}

// withTimeoutHint adds a remediation hint to timeout failures.
func withTimeoutHint(err error, timeoutMillis int) error {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTimeout {
		return err
	}
	hinted := *e
	hinted.Details = hints.Append(e.Details, hints.ForTimeout(timeoutMillis, MaxTimeoutMillis))
	return &hinted
}
