package html2pdf

// Notes:
// - fakeEngine stands in for headless Chrome: sessions "print" the loaded
//   HTML as a one-page PDF built with gofpdf, so merged output can be read
//   back with ledongthuc/pdf and checked for page order.
// - Per-page behavior (delay, load error, hang) is scripted by the HTML text.
// - Counters are atomic: sessions run concurrently inside a window.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/alnah/go-html2pdf/internal/fonts"
)

// ---------------------------------------------------------------------------
// Fake engine
// ---------------------------------------------------------------------------

var (
	_ Engine  = (*fakeEngine)(nil)
	_ Browser = (*fakeBrowser)(nil)
	_ Session = (*fakeSession)(nil)
)

type fakeEngine struct {
	launchErr error

	// delays holds per-HTML load latency.
	delays map[string]time.Duration
	// loadErrs holds per-HTML load failures.
	loadErrs map[string]error
	// hang lists HTML that never settles until the context ends.
	hang map[string]bool

	launches       atomic.Int32
	sessionsOpened atomic.Int32
	sessionsClosed atomic.Int32
	active         atomic.Int32
	maxActive      atomic.Int32
	browserClosed  atomic.Int32

	mu       sync.Mutex
	loaded   []string
	finished []string
}

func (e *fakeEngine) Launch(ctx context.Context) (Browser, error) {
	e.launches.Add(1)
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	return &fakeBrowser{engine: e}, nil
}

// finishOrder returns the HTML of sessions in the order they printed.
func (e *fakeEngine) finishOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.finished...)
}

// loadedHTML returns every document handed to Load.
func (e *fakeEngine) loadedHTML() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loaded...)
}

type fakeBrowser struct {
	engine *fakeEngine
	once   sync.Once
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	e := b.engine
	e.sessionsOpened.Add(1)
	n := e.active.Add(1)
	for {
		peak := e.maxActive.Load()
		if n <= peak || e.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	return &fakeSession{engine: e}, nil
}

func (b *fakeBrowser) Close() error {
	b.once.Do(func() { b.engine.browserClosed.Add(1) })
	return nil
}

type fakeSession struct {
	engine    *fakeEngine
	html      string
	viewport  Viewport
	admission AdmissionPolicy
	closed    bool
}

func (s *fakeSession) SetViewport(v Viewport) error {
	s.viewport = v
	return nil
}

func (s *fakeSession) SetAdmission(policy AdmissionPolicy) error {
	s.admission = policy
	return nil
}

func (s *fakeSession) Load(ctx context.Context, html string, wait string) error {
	e := s.engine
	s.html = html

	e.mu.Lock()
	e.loaded = append(e.loaded, html)
	e.mu.Unlock()

	key := pageKey(html)
	if err := e.loadErrs[key]; err != nil {
		return err
	}
	if e.hang[key] {
		<-ctx.Done()
		return ctx.Err()
	}
	if d := e.delays[key]; d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return nil
}

func (s *fakeSession) PrintPDF(ctx context.Context, params PrintParams) ([]byte, error) {
	key := pageKey(s.html)
	data, err := makePDF(label(key))
	if err != nil {
		return nil, err
	}
	s.engine.mu.Lock()
	s.engine.finished = append(s.engine.finished, key)
	s.engine.mu.Unlock()
	return data, nil
}

func (s *fakeSession) Close() error {
	if !s.closed {
		s.closed = true
		s.engine.sessionsClosed.Add(1)
		s.engine.active.Add(-1)
	}
	return nil
}

// pageKey strips injected styles so scripts can key on the page text.
func pageKey(html string) string {
	if i := strings.LastIndex(html, "</style>"); i != -1 {
		html = html[i+len("</style>"):]
	}
	return strings.TrimSpace(html)
}

// label keeps the printed text short and on one line.
func label(key string) string {
	if i := strings.IndexAny(key, "\r\n"); i != -1 {
		key = key[:i]
	}
	if len(key) > 40 {
		key = key[:40]
	}
	return key
}

// ---------------------------------------------------------------------------
// PDF helpers
// ---------------------------------------------------------------------------

// makePDF builds an uncompressed PDF with one page per text.
func makePDF(texts ...string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 16)
	for _, text := range texts {
		doc.AddPage()
		doc.Text(20, 30, text)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("building test PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// mustPDF is makePDF that fails the test on error.
func mustPDF(t *testing.T, texts ...string) []byte {
	t.Helper()
	data, err := makePDF(texts...)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// pageTexts extracts the plain text of every page, in order.
func pageTexts(t *testing.T, data []byte) []string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading merged PDF: %v", err)
	}
	texts := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			t.Fatalf("page %d is missing", i)
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			t.Fatalf("extracting text of page %d: %v", i, err)
		}
		texts = append(texts, text)
	}
	return texts
}

// ---------------------------------------------------------------------------
// Generator helpers
// ---------------------------------------------------------------------------

// stubFonts returns a fixed CSS fragment and counts calls.
type stubFonts struct {
	css   string
	calls atomic.Int32
}

func (f *stubFonts) Resolve(context.Context, *fonts.Descriptor) string {
	f.calls.Add(1)
	return f.css
}

// fastRenderer skips the font grace period.
func fastRenderer() *PageRenderer {
	r := NewPageRenderer(zap.NewNop())
	r.Grace = 0
	return r
}

// newTestGenerator builds a Generator over e with the given limits.
func newTestGenerator(e Engine, limits Limits, opts ...Option) *Generator {
	base := []Option{
		WithEngine(e),
		WithLimits(limits),
		WithRenderer(fastRenderer()),
	}
	return NewGenerator(append(base, opts...)...)
}

// asError asserts err is a classified *Error of kind.
func asError(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v (%T) is not *Error", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("kind = %s, want %s (message %q, details %q)", e.Kind, kind, e.Message, e.Details)
	}
	return e
}
