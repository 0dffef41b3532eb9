package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Page renderer defaults.
const (
	// fontGracePeriod lets async @font-face activation finish after the
	// content settles.
	fontGracePeriod = 300 * time.Millisecond

	viewportWidth  = 1280
	viewportHeight = 800
)

// DefaultViewport is the window size every session renders with.
var DefaultViewport = Viewport{Width: viewportWidth, Height: viewportHeight, ScaleFactor: 1}

// netErrorMarker prefixes Chrome's network-layer failure messages.
const netErrorMarker = "net::ERR_"

// PageRenderer turns one RenderJob into a PDF buffer in its own session.
type PageRenderer struct {
	Viewport  Viewport
	Admission AdmissionPolicy
	Grace     time.Duration
	Logger    *zap.Logger
}

// NewPageRenderer returns a renderer with the default viewport, admission
// policy and grace period.
func NewPageRenderer(logger *zap.Logger) *PageRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageRenderer{
		Viewport:  DefaultViewport,
		Admission: DefaultAdmission,
		Grace:     fontGracePeriod,
		Logger:    logger,
	}
}

// effectiveTimeout bounds the requested timeout by MaxRenderTimeout.
func effectiveTimeout(millis int) time.Duration {
	d := time.Duration(millis) * time.Millisecond
	if d <= 0 || d > MaxRenderTimeout {
		return MaxRenderTimeout
	}
	return d
}

// Render produces the PDF for job. The session is closed on every path.
// Failures are returned as classified *Error values.
func (r *PageRenderer) Render(ctx context.Context, browser Browser, job RenderJob) (pdf []byte, err error) {
	timeout := effectiveTimeout(job.Options.Timeout)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if err != nil {
			err = classifyRenderError(job.Index, timeout, err)
		}
	}()

	session, err := browser.NewSession(jobCtx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.Logger.Debug("closing session", zap.Int("page", job.Index+1), zap.Error(cerr))
		}
	}()

	if err := session.SetViewport(r.Viewport); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	admission := r.Admission
	if admission == nil {
		admission = DefaultAdmission
	}
	if err := session.SetAdmission(admission); err != nil {
		return nil, err
	}

	if err := session.Load(jobCtx, job.HTML, job.Options.WaitUntil); err != nil {
		return nil, err
	}

	if r.Grace > 0 {
		select {
		case <-jobCtx.Done():
			return nil, jobCtx.Err()
		case <-time.After(r.Grace):
		}
	}

	pdf, err = session.PrintPDF(jobCtx, printParams(job.Options))
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrPDFGeneration)
	}
	return pdf, nil
}

// classifyRenderError maps a page failure to exactly one kind.
// First match wins: timeout, then network-layer load failure, then render.
func classifyRenderError(index int, timeout time.Duration, err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	page := index + 1
	switch {
	case isTimeout(err):
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("Page %d did not finish rendering within %d ms", page, timeout.Milliseconds()),
			Details: err.Error(),
			Err:     err,
		}
	case strings.Contains(err.Error(), netErrorMarker):
		return &Error{
			Kind:    KindResource,
			Message: fmt.Sprintf("Page %d failed to load an external resource", page),
			Details: err.Error(),
			Err:     err,
		}
	default:
		return &Error{
			Kind:    KindRender,
			Message: fmt.Sprintf("Page %d could not be rendered", page),
			Details: err.Error(),
			Err:     err,
		}
	}
}

// isTimeout matches context deadlines and engine errors reporting a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
