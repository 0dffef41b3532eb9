package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/alnah/go-html2pdf/internal/process"
)

// networkQuietWindow is how long no request may be in flight before a
// page counts as network idle.
const networkQuietWindow = 500 * time.Millisecond

// domReadyJS resolves once the document has been parsed.
const domReadyJS = `() => new Promise((resolve) => {
	if (document.readyState !== "loading") { resolve(true); return; }
	document.addEventListener("DOMContentLoaded", () => resolve(true), { once: true });
})`

// Compile-time interface checks.
var (
	_ Engine  = (*RodEngine)(nil)
	_ Browser = (*rodBrowser)(nil)
	_ Session = (*rodSession)(nil)
)

// RodEngine launches headless Chrome through go-rod.
// Each Launch starts a dedicated browser process.
type RodEngine struct {
	bin           string
	noSandbox     bool
	allowDownload bool
	logger        *zap.Logger
}

// RodOption configures a RodEngine.
type RodOption func(*RodEngine)

// WithBrowserBin uses a pre-installed Chrome binary (containers).
func WithBrowserBin(path string) RodOption {
	return func(e *RodEngine) { e.bin = path }
}

// WithNoSandbox disables the Chrome sandbox, required in most containers and CI.
func WithNoSandbox(disabled bool) RodOption {
	return func(e *RodEngine) { e.noSandbox = disabled }
}

// WithBrowserDownload lets rod fetch a managed Chromium when none is installed.
func WithBrowserDownload(allowed bool) RodOption {
	return func(e *RodEngine) { e.allowDownload = allowed }
}

// WithEngineLogger sets the logger for browser lifecycle events.
func WithEngineLogger(l *zap.Logger) RodOption {
	return func(e *RodEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewRodEngine creates a RodEngine. Nothing is launched until Launch.
func NewRodEngine(opts ...RodOption) *RodEngine {
	e := &RodEngine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether Launch can find a browser.
func (e *RodEngine) Available() bool {
	_, err := e.resolveBin()
	return err == nil
}

// resolveBin returns the browser binary to launch. An empty path with a nil
// error means rod may download its managed browser.
func (e *RodEngine) resolveBin() (string, error) {
	if e.bin != "" {
		if _, err := os.Stat(e.bin); err != nil {
			return "", fmt.Errorf("%w: browser binary %s: %v", ErrRendererUnavailable, e.bin, err)
		}
		return e.bin, nil
	}
	if path, found := launcher.LookPath(); found {
		return path, nil
	}
	if e.allowDownload {
		return "", nil
	}
	return "", fmt.Errorf("%w: no Chrome/Chromium installation found", ErrRendererUnavailable)
}

// Launch starts a browser owned by the caller.
func (e *RodEngine) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bin, err := e.resolveBin()
	if err != nil {
		return nil, err
	}

	l := launcher.New().Headless(true)
	if bin != "" {
		l = l.Bin(bin)
	}
	if e.noSandbox {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	e.logger.Debug("browser launched", zap.Int("pid", l.PID()))
	return &rodBrowser{browser: browser, launcher: l, logger: e.logger}, nil
}

// rodBrowser is one Chrome process.
type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *zap.Logger
	once     sync.Once
	closeErr error
}

// NewSession opens a blank tab. Target creation is bounded by ctx; the
// returned tab is detached from it so Close still works after a timeout.
func (b *rodBrowser) NewSession(ctx context.Context) (Session, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}
	return &rodSession{page: page.Context(context.Background())}, nil
}

// Close shuts the browser down and kills its process group. Safe to call twice.
func (b *rodBrowser) Close() error {
	b.once.Do(func() {
		b.closeErr = b.browser.Close()
		pid := b.launcher.PID()
		if pid > 0 {
			process.KillProcessGroup(pid)
		}
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.logger.Debug("browser closed", zap.Int("pid", pid))
	})
	return b.closeErr
}

// rodSession is one tab.
type rodSession struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (s *rodSession) SetViewport(v Viewport) error {
	return s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             v.Width,
		Height:            v.Height,
		DeviceScaleFactor: v.ScaleFactor,
	})
}

// SetAdmission routes every subresource request through policy.
func (s *rodSession) SetAdmission(policy AdmissionPolicy) error {
	router := s.page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if policy(ResourceClass(h.Request.Type()), h.Request.URL()) == Allow {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	})
	if err != nil {
		return fmt.Errorf("installing request router: %w", err)
	}
	go router.Run()
	s.router = router
	return nil
}

// Load sets the document content and waits for the wait condition.
func (s *rodSession) Load(ctx context.Context, html string, wait string) error {
	p := s.page.Context(ctx)

	if wait == WaitDOMContentLoaded {
		if err := p.SetDocumentContent(html); err != nil {
			return fmt.Errorf("%w: %w", ErrPageLoad, err)
		}
		if _, err := p.Eval(domReadyJS); err != nil {
			return fmt.Errorf("%w: %w", ErrPageLoad, err)
		}
		return ctx.Err()
	}

	idle := p.WaitRequestIdle(networkQuietWindow, nil, nil, nil)
	if err := p.SetDocumentContent(html); err != nil {
		return fmt.Errorf("%w: %w", ErrPageLoad, err)
	}
	idle()
	return ctx.Err()
}

func (s *rodSession) PrintPDF(ctx context.Context, params PrintParams) ([]byte, error) {
	reader, err := s.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		Landscape:           params.Landscape,
		DisplayHeaderFooter: params.DisplayHeaderFooter,
		PrintBackground:     params.PrintBackground,
		Scale:               floatPtr(params.Scale),
		PaperWidth:          floatPtr(params.PaperWidth),
		PaperHeight:         floatPtr(params.PaperHeight),
		MarginTop:           floatPtr(params.MarginTop),
		MarginBottom:        floatPtr(params.MarginBottom),
		MarginLeft:          floatPtr(params.MarginLeft),
		MarginRight:         floatPtr(params.MarginRight),
		HeaderTemplate:      params.HeaderTemplate,
		FooterTemplate:      params.FooterTemplate,
		PreferCSSPageSize:   params.PreferCSSPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPDFGeneration, err)
	}

	buf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %w", ErrPDFGeneration, err)
	}
	return buf, nil
}

func (s *rodSession) Close() error {
	var stopErr error
	if s.router != nil {
		stopErr = s.router.Stop()
	}
	return errors.Join(stopErr, s.page.Close())
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
