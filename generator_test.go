package html2pdf

// Notes:
// - Generate is exercised end to end over fakeEngine: real validation,
//   scheduling and pdfcpu merging, fake browser.
// - Merged output is read back with ledongthuc/pdf to check page order.
// - Timeout tests use the minimum request timeout (1s) on a hanging page.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"
)

func pages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("PAGE-%d", i+1)
	}
	return out
}

// ---------------------------------------------------------------------------
// TestGenerate_PageOrder - Output Order Matches Input Order
// ---------------------------------------------------------------------------

func TestGenerate_PageOrder(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{
		// The first page of the first window finishes last within it.
		delays: map[string]time.Duration{"PAGE-1": 80 * time.Millisecond},
	}
	gen := newTestGenerator(engine, Limits{Concurrency: 3, MaxPages: 20})

	res, err := gen.Generate(context.Background(), &Request{Pages: pages(7)})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if res.PageCount != 7 || res.InputPages != 7 {
		t.Errorf("PageCount = %d, InputPages = %d, want 7 and 7", res.PageCount, res.InputPages)
	}
	if res.Filename != defaultFilename {
		t.Errorf("Filename = %q, want %q", res.Filename, defaultFilename)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", res.Duration)
	}

	texts := pageTexts(t, res.PDF)
	if len(texts) != 7 {
		t.Fatalf("merged PDF has %d pages, want 7", len(texts))
	}
	for i, text := range texts {
		want := fmt.Sprintf("PAGE-%d", i+1)
		if !strings.Contains(text, want) {
			t.Errorf("page %d text = %q, want %q", i+1, text, want)
		}
	}

	order := engine.finishOrder()
	if slices.Index(order, "PAGE-2") > slices.Index(order, "PAGE-1") {
		t.Errorf("finish order %v: PAGE-2 should finish before the delayed PAGE-1", order)
	}
	// Windows {1-3}, {4-6}, {7}: no page of a later window finishes first.
	for _, early := range []string{"PAGE-1", "PAGE-2", "PAGE-3"} {
		for _, late := range []string{"PAGE-4", "PAGE-5", "PAGE-6", "PAGE-7"} {
			if slices.Index(order, early) > slices.Index(order, late) {
				t.Errorf("finish order %v: %s finished after %s", order, early, late)
			}
		}
	}

	if got := engine.maxActive.Load(); got > 3 {
		t.Errorf("max concurrent sessions = %d, want <= 3", got)
	}
	if got := engine.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
	if opened, closed := engine.sessionsOpened.Load(), engine.sessionsClosed.Load(); opened != 7 || closed != 7 {
		t.Errorf("sessions opened/closed = %d/%d, want 7/7", opened, closed)
	}
	if got := engine.browserClosed.Load(); got != 1 {
		t.Errorf("browser closed %d times, want 1", got)
	}
}

func TestGenerate_SinglePage(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})

	res, err := gen.Generate(context.Background(), &Request{Pages: []string{"PAGE-1"}, Filename: "report"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.PageCount)
	}
	if res.Filename != "report.pdf" {
		t.Errorf("Filename = %q, want report.pdf", res.Filename)
	}
}

// ---------------------------------------------------------------------------
// TestGenerate_Validation - Invalid Requests Never Touch the Engine
// ---------------------------------------------------------------------------

func TestGenerate_Validation(t *testing.T) {
	t.Parallel()

	width := Length{Inches: 8}
	tests := []struct {
		name    string
		req     *Request
		wantMsg string
	}{
		{
			name:    "no pages",
			req:     &Request{Pages: nil},
			wantMsg: "pages: must contain at least 1 page",
		},
		{
			name:    "too many pages",
			req:     &Request{Pages: pages(21)},
			wantMsg: "must contain at most 20 pages (got 21)",
		},
		{
			name:    "format with explicit size",
			req:     &Request{Pages: pages(1), Options: RenderOptions{Format: "A4", Width: &width, Height: &width}},
			wantMsg: "options.format: cannot be combined with width and height",
		},
		{
			name:    "font family without url",
			req:     &Request{Pages: pages(1), Font: &Font{Family: "Inter"}},
			wantMsg: "font: family and url must be provided together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &fakeEngine{}
			gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})

			_, err := gen.Generate(context.Background(), tt.req)
			e := asError(t, err, KindValidation)
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", e.Message, tt.wantMsg)
			}
			if e.Status() != http.StatusBadRequest {
				t.Errorf("Status() = %d, want 400", e.Status())
			}
			if got := engine.launches.Load(); got != 0 {
				t.Errorf("launches = %d, want 0", got)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestGenerate_Failures - Classified Engine Failures
// ---------------------------------------------------------------------------

func TestGenerate_Timeout(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{hang: map[string]bool{"PAGE-2": true}}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})

	req := &Request{Pages: pages(3), Options: RenderOptions{Timeout: MinTimeoutMillis}}
	_, err := gen.Generate(context.Background(), req)

	e := asError(t, err, KindTimeout)
	if e.Message != "Page 2 did not finish rendering within 1000 ms" {
		t.Errorf("message = %q", e.Message)
	}
	if !strings.Contains(e.Details, "hint:") {
		t.Errorf("details = %q, want a timeout hint", e.Details)
	}
	if opened, closed := engine.sessionsOpened.Load(), engine.sessionsClosed.Load(); opened != closed {
		t.Errorf("sessions opened/closed = %d/%d, want all closed", opened, closed)
	}
	if got := engine.browserClosed.Load(); got != 1 {
		t.Errorf("browser closed %d times, want 1", got)
	}
	// The third page belongs to the next window and never starts.
	if got := engine.sessionsOpened.Load(); got != 2 {
		t.Errorf("sessions opened = %d, want 2", got)
	}
}

func TestGenerate_ResourceAndRenderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		loadErr  error
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "network failure",
			loadErr:  errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED"),
			wantKind: KindResource,
			wantMsg:  "Page 1 failed to load an external resource",
		},
		{
			name:     "engine failure",
			loadErr:  errors.New("target crashed"),
			wantKind: KindRender,
			wantMsg:  "Page 1 could not be rendered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := &fakeEngine{loadErrs: map[string]error{"PAGE-1": tt.loadErr}}
			gen := newTestGenerator(engine, Limits{Concurrency: 1, MaxPages: 20})

			_, err := gen.Generate(context.Background(), &Request{Pages: pages(2)})
			e := asError(t, err, tt.wantKind)
			if e.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", e.Message, tt.wantMsg)
			}
			if e.Details != tt.loadErr.Error() {
				t.Errorf("details = %q, want %q", e.Details, tt.loadErr.Error())
			}
			if engine.sessionsOpened.Load() != engine.sessionsClosed.Load() {
				t.Error("sessions left open")
			}
			if engine.browserClosed.Load() != 1 {
				t.Error("browser not closed")
			}
		})
	}
}

func TestGenerate_RendererUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("no engine", func(t *testing.T) {
		t.Parallel()

		gen := NewGenerator(WithLimits(Limits{Concurrency: 1, MaxPages: 5}))
		_, err := gen.Generate(context.Background(), &Request{Pages: pages(1)})
		e := asError(t, err, KindUnknown)
		if e.Message != ErrRendererUnavailable.Error() {
			t.Errorf("message = %q", e.Message)
		}
		if gen.RendererAvailable() {
			t.Error("RendererAvailable() = true without engine")
		}
	})

	t.Run("launch failure", func(t *testing.T) {
		t.Parallel()

		engine := &fakeEngine{launchErr: fmt.Errorf("%w: exec: no such file", ErrBrowserConnect)}
		gen := newTestGenerator(engine, Limits{Concurrency: 1, MaxPages: 5})

		_, err := gen.Generate(context.Background(), &Request{Pages: pages(1)})
		e := asError(t, err, KindUnknown)
		if !errors.Is(e, ErrBrowserConnect) {
			t.Errorf("error %v does not wrap ErrBrowserConnect", e)
		}
		if engine.sessionsOpened.Load() != 0 {
			t.Error("sessions opened after failed launch")
		}
	})
}

func TestGenerate_CanceledContext(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, &Request{Pages: pages(3)})
	if err == nil {
		t.Fatal("Generate() error = nil, want error")
	}
	if engine.sessionsOpened.Load() != engine.sessionsClosed.Load() {
		t.Error("sessions left open")
	}
}

// ---------------------------------------------------------------------------
// TestGenerate_Fonts - Font Embedding
// ---------------------------------------------------------------------------

func TestGenerate_FontInjectedIntoEveryPage(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	fonts := &stubFonts{css: `@font-face{font-family:"Inter";}`}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20}, WithFontResolver(fonts))

	req := &Request{
		Pages: pages(3),
		Font:  &Font{Family: "Inter", URL: "https://fonts.example.com/inter.woff2"},
	}
	if _, err := gen.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got := fonts.calls.Load(); got != 1 {
		t.Errorf("font resolved %d times, want once per request", got)
	}
	for _, html := range engine.loadedHTML() {
		if !strings.Contains(html, `<style>@font-face{font-family:"Inter";}</style>`) {
			t.Errorf("page %q lacks the font rule", html)
		}
	}
}

func TestGenerate_FontFailureStillRenders(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20}, WithFontResolver(&stubFonts{}))

	req := &Request{
		Pages: pages(2),
		Font:  &Font{Family: "Missing", URL: "https://fonts.example.com/missing.woff2"},
	}
	res, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}
	for _, html := range engine.loadedHTML() {
		if strings.Contains(html, "<style>") {
			t.Errorf("page %q has a style block after font failure", html)
		}
	}
}

// ---------------------------------------------------------------------------
// TestGenerate_Markdown - Markdown Pages
// ---------------------------------------------------------------------------

func TestGenerate_MarkdownPages(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})

	req := &Request{Pages: []string{"# Title", "*body*"}, ContentType: ContentTypeMarkdown}
	res, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}

	loaded := engine.loadedHTML()
	joined := strings.Join(loaded, "\n")
	for _, want := range []string{`<h1 id="title">Title</h1>`, "<em>body</em>"} {
		if !strings.Contains(joined, want) {
			t.Errorf("loaded HTML lacks %q", want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestGenerate_Idempotent - Same Request, Same Shape
// ---------------------------------------------------------------------------

func TestGenerate_Idempotent(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	gen := newTestGenerator(engine, Limits{Concurrency: 2, MaxPages: 20})
	req := &Request{Pages: pages(4)}

	for run := range 2 {
		res, err := gen.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("run %d: Generate() error = %v", run, err)
		}
		texts := pageTexts(t, res.PDF)
		if len(texts) != 4 {
			t.Fatalf("run %d: %d pages, want 4", run, len(texts))
		}
		for i, text := range texts {
			if want := fmt.Sprintf("PAGE-%d", i+1); !strings.Contains(text, want) {
				t.Errorf("run %d: page %d text = %q, want %q", run, i+1, text, want)
			}
		}
	}
	if got := engine.launches.Load(); got != 2 {
		t.Errorf("launches = %d, want one per request", got)
	}
	if len(req.Pages) != 4 || req.Filename != "" {
		t.Error("request was mutated")
	}
}

func TestGenerator_Limits(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	want := Limits{Concurrency: DevelopmentConcurrency, MaxPages: DevelopmentMaxPages}
	if got := gen.Limits(); got != want {
		t.Errorf("Limits() = %+v, want %+v", got, want)
	}

	gen = newTestGenerator(&fakeEngine{}, Limits{Concurrency: 1, MaxPages: 1})
	if !gen.RendererAvailable() {
		t.Error("RendererAvailable() = false with an engine")
	}
}
