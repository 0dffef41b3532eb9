// Package fonts fetches web fonts and turns them into self-contained
// @font-face rules so pages never fetch fonts while rendering.
//
// Font failures are never fatal: Resolve returns "" and the page falls back
// to system fonts.
package fonts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fetch limits.
const (
	FetchTimeout = 5 * time.Second
	MaxFontBytes = 2 << 20
)

// Sentinel errors for font fetching.
var (
	ErrFontTooLarge = errors.New("font exceeds size limit")
	ErrFontStatus   = errors.New("font request failed")
)

// Descriptor identifies the font to embed.
type Descriptor struct {
	Family string
	URL    string
	Format string // woff, woff2, ttf, otf
	Weight string
	Style  string
}

// complete reports whether both family and URL are set.
func (d *Descriptor) complete() bool {
	return d != nil && strings.TrimSpace(d.Family) != "" && strings.TrimSpace(d.URL) != ""
}

// formats maps a font format to its MIME type and CSS format() hint.
var formats = map[string]struct{ mime, css string }{
	"woff":  {"font/woff", "woff"},
	"woff2": {"font/woff2", "woff2"},
	"ttf":   {"font/ttf", "truetype"},
	"otf":   {"font/otf", "opentype"},
}

// Resolver downloads fonts over HTTP.
type Resolver struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client (tests, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the logger used for degraded fetches.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver with the fixed timeout and size ceiling.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: FetchTimeout},
		maxBytes: MaxFontBytes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a <style>-ready CSS fragment embedding the font, or "" when
// the descriptor is missing, incomplete, or the font cannot be fetched.
func (r *Resolver) Resolve(ctx context.Context, d *Descriptor) string {
	if !d.complete() {
		return ""
	}

	data, err := r.fetch(ctx, d.URL)
	if err != nil {
		r.logger.Warn("font unavailable, falling back to system fonts",
			zap.String("family", d.Family),
			zap.String("url", d.URL),
			zap.Error(err),
		)
		return ""
	}
	return FontFace(d, data)
}

// fetch downloads url with a hard deadline and size ceiling.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building font request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFontStatus, resp.StatusCode)
	}
	if resp.ContentLength > r.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFontTooLarge, resp.ContentLength, r.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFontTooLarge, r.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrFontStatus)
	}
	return data, nil
}

// FontFace builds the @font-face rule with data inlined as base64, plus a
// body rule applying the family.
func FontFace(d *Descriptor, data []byte) string {
	f, ok := formats[strings.ToLower(d.Format)]
	if !ok {
		f = formats["woff2"]
	}
	family := sanitizeValue(d.Family)
	weight := sanitizeValue(orDefault(d.Weight, "normal"))
	style := sanitizeValue(orDefault(d.Style, "normal"))

	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)) + 256)
	fmt.Fprintf(&b, `@font-face{font-family:"%s";src:url(data:%s;base64,`, family, f.mime)
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	fmt.Fprintf(&b, `) format("%s");font-weight:%s;font-style:%s;font-display:block;}`, f.css, weight, style)
	fmt.Fprintf(&b, `body{font-family:"%s",sans-serif;}`, family)
	return b.String()
}

// sanitizeValue strips characters that could escape a CSS string or declaration.
func sanitizeValue(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '<', '>', '\n', '\r', ';', '{', '}':
			return -1
		}
		return r
	}, strings.TrimSpace(name))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
