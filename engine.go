package html2pdf

import (
	"context"
	"strings"
)

// Engine is the rendering capability. Launch starts one browser that is
// owned by a single request and must be closed by it.
type Engine interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser hands out isolated rendering sessions (tabs).
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is one isolated page. Close must be safe to call after any failure.
type Session interface {
	SetViewport(v Viewport) error
	SetAdmission(policy AdmissionPolicy) error
	Load(ctx context.Context, html string, wait string) error
	PrintPDF(ctx context.Context, params PrintParams) ([]byte, error)
	Close() error
}

// Viewport is the emulated window size in CSS pixels.
type Viewport struct {
	Width       int
	Height      int
	ScaleFactor float64
}

// PrintParams are the resolved print settings sent to the engine.
// Lengths are in inches.
type PrintParams struct {
	PaperWidth          float64
	PaperHeight         float64
	MarginTop           float64
	MarginRight         float64
	MarginBottom        float64
	MarginLeft          float64
	Landscape           bool
	Scale               float64
	PrintBackground     bool
	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string
	PreferCSSPageSize   bool
}

// Default margins in inches, used when a side is not given.
const defaultMarginInches = 0.4

// printParams resolves validated options into engine settings.
func printParams(o RenderOptions) PrintParams {
	p := PrintParams{
		MarginTop:           o.Margin.Top.inches(defaultMarginInches),
		MarginRight:         o.Margin.Right.inches(defaultMarginInches),
		MarginBottom:        o.Margin.Bottom.inches(defaultMarginInches),
		MarginLeft:          o.Margin.Left.inches(defaultMarginInches),
		Landscape:           o.Landscape,
		Scale:               o.Scale,
		PrintBackground:     o.PrintBackground == nil || *o.PrintBackground,
		DisplayHeaderFooter: o.DisplayHeaderFooter,
		PreferCSSPageSize:   o.PreferCSSPageSize,
	}
	if p.Scale == 0 {
		p.Scale = defaultScale
	}

	if o.Width != nil && o.Height != nil {
		p.PaperWidth, p.PaperHeight = o.Width.Inches, o.Height.Inches
	} else {
		size, ok := paperSizes[strings.ToLower(o.Format)]
		if !ok {
			size = paperSizes[strings.ToLower(defaultPageFormat)]
		}
		p.PaperWidth, p.PaperHeight = size.width, size.height
	}

	if o.DisplayHeaderFooter {
		// Chrome prints its own default header/footer when a template is empty.
		p.HeaderTemplate = orEmptySpan(o.HeaderTemplate)
		p.FooterTemplate = orEmptySpan(o.FooterTemplate)
	}
	return p
}

func orEmptySpan(tmpl string) string {
	if tmpl == "" {
		return "<span></span>"
	}
	return tmpl
}
