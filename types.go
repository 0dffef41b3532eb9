package html2pdf

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Content types accepted for pages.
const (
	ContentTypeHTML     = "html"
	ContentTypeMarkdown = "markdown"
)

// Wait conditions deciding when a page is settled enough to print.
const (
	WaitNetworkIdle      = "networkidle"
	WaitDOMContentLoaded = "domcontentloaded"
)

// Request defaults and size limits.
const (
	defaultWaitCondition   = WaitNetworkIdle
	defaultPageFormat      = "A4"
	defaultFilename        = "document.pdf"
	maxFilenameLength      = 200
	maxTemplateLength      = 100_000
	maxPageContentLength   = 10 << 20
	pixelsPerInch          = 96.0
	defaultTimeoutMillis   = 30_000
	defaultScale           = 1.0
	defaultPrintBackground = true
)

// Bounds on render options.
const (
	MinScale         = 0.1
	MaxScale         = 2.0
	MinTimeoutMillis = 1_000
	MaxTimeoutMillis = 60_000
)

// MaxRenderTimeout caps the effective per-page timeout.
const MaxRenderTimeout = MaxTimeoutMillis * time.Millisecond

// Font formats.
const (
	FontWOFF  = "woff"
	FontWOFF2 = "woff2"
	FontTTF   = "ttf"
	FontOTF   = "otf"
)

// paperSize is a named format in inches (portrait).
type paperSize struct {
	width, height float64
}

// paperSizes lists the named formats, keyed by lower-case name.
var paperSizes = map[string]paperSize{
	"letter":  {8.5, 11},
	"legal":   {8.5, 14},
	"tabloid": {11, 17},
	"ledger":  {17, 11},
	"a0":      {33.1, 46.8},
	"a1":      {23.4, 33.1},
	"a2":      {16.54, 23.4},
	"a3":      {11.7, 16.54},
	"a4":      {8.27, 11.7},
	"a5":      {5.83, 8.27},
	"a6":      {4.13, 5.83},
}

// Request is the inbound PDF generation request.
type Request struct {
	Pages       []string      `json:"pages"`
	Filename    string        `json:"filename,omitempty"`
	Options     RenderOptions `json:"options"`
	Font        *Font         `json:"font,omitempty"`
	ContentType string        `json:"contentType,omitempty"` // "html" (default) or "markdown"
}

// RenderOptions controls how every page is printed.
// Exactly one of Format or Width+Height is active after validation.
type RenderOptions struct {
	Format              string  `json:"format,omitempty"`
	Width               *Length `json:"width,omitempty"`
	Height              *Length `json:"height,omitempty"`
	Landscape           bool    `json:"landscape,omitempty"`
	Scale               float64 `json:"scale,omitempty"`
	PrintBackground     *bool   `json:"printBackground,omitempty"`
	DisplayHeaderFooter bool    `json:"displayHeaderFooter,omitempty"`
	HeaderTemplate      string  `json:"headerTemplate,omitempty"`
	FooterTemplate      string  `json:"footerTemplate,omitempty"`
	Margin              Margin  `json:"margin"`
	PreferCSSPageSize   bool    `json:"preferCSSPageSize,omitempty"`
	Timeout             int     `json:"timeout,omitempty"`   // milliseconds
	WaitUntil           string  `json:"waitUntil,omitempty"` // "networkidle" or "domcontentloaded"
}

// Margin holds the four page margins.
type Margin struct {
	Top    *Length `json:"top,omitempty"`
	Right  *Length `json:"right,omitempty"`
	Bottom *Length `json:"bottom,omitempty"`
	Left   *Length `json:"left,omitempty"`
}

// Font describes an optional web font embedded into every page.
type Font struct {
	Family string     `json:"family,omitempty"`
	URL    string     `json:"url,omitempty"`
	Format string     `json:"format,omitempty"`
	Weight FontWeight `json:"weight,omitempty"`
	Style  string     `json:"style,omitempty"`
}

// FontWeight accepts a JSON number (400) or string ("bold").
type FontWeight string

// UnmarshalJSON implements json.Unmarshaler.
func (w *FontWeight) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*w = FontWeight(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("font weight must be a number or string")
	}
	*w = FontWeight(s)
	return nil
}

// Length is a physical length kept in inches.
// It decodes from a JSON number (CSS pixels) or a string with a unit.
type Length struct {
	Inches float64
	raw    string
}

// Units accepted in length strings, with their size in inches.
var lengthUnits = map[string]float64{
	"px": 1 / pixelsPerInch,
	"in": 1,
	"cm": 1 / 2.54,
	"mm": 1 / 25.4,
	"pt": 1 / 72.0,
}

// ParseLength parses "10mm", "0.5in", "12" (pixels) and similar values.
func ParseLength(s string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return Length{}, fmt.Errorf("empty length")
	}

	factor := lengthUnits["px"]
	if len(v) > 2 {
		if f, ok := lengthUnits[v[len(v)-2:]]; ok {
			factor = f
			v = strings.TrimSpace(v[:len(v)-2])
		}
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return Length{}, fmt.Errorf("invalid length %q (use px, in, cm, mm or pt)", s)
	}
	if n < 0 {
		return Length{}, fmt.Errorf("length %q must not be negative", s)
	}
	return Length{Inches: n * factor, raw: s}, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Length) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("length %v must not be negative", n)
		}
		*l = Length{Inches: n / pixelsPerInch, raw: strconv.FormatFloat(n, 'f', -1, 64)}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("length must be a number or a string with a unit")
	}
	parsed, err := ParseLength(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Length) MarshalJSON() ([]byte, error) {
	if l.raw != "" {
		return json.Marshal(l.raw)
	}
	return json.Marshal(strconv.FormatFloat(l.Inches, 'f', -1, 64) + "in")
}

// finite reports whether l is absent or a usable length.
func (l *Length) finite() bool {
	return l == nil || (!math.IsNaN(l.Inches) && !math.IsInf(l.Inches, 0) && l.Inches >= 0)
}

// inches returns the length in inches or def when l is nil.
func (l *Length) inches(def float64) float64 {
	if l == nil {
		return def
	}
	return l.Inches
}

// RenderJob is one page of work handed to the scheduler.
type RenderJob struct {
	Index   int
	HTML    string
	Options RenderOptions
}

// Result is the assembled document returned by Generate.
type Result struct {
	PDF        []byte
	Filename   string
	PageCount  int
	InputPages int
	Duration   time.Duration
}
