package html2pdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// DecodeRequest reads a JSON request body.
// Unknown keys and malformed JSON are reported as *ValidationError.
func DecodeRequest(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		verr := &ValidationError{}
		verr.add(decodeErrorField(err), "%s", decodeErrorReason(err))
		return nil, verr
	}
	if dec.More() {
		verr := &ValidationError{}
		verr.add("body", "must contain a single JSON object")
		return nil, verr
	}
	return &req, nil
}

// decodeErrorField extracts the offending field from a json error when possible.
func decodeErrorField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field
	}
	return "body"
}

func decodeErrorReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("must be of type %s", typeErr.Type)
	}
	if errors.Is(err, io.EOF) {
		return "must not be empty"
	}
	msg := strings.TrimPrefix(err.Error(), "json: ")
	return msg
}

// Validate checks req against limits and returns a normalized copy.
// Every violation is collected; the input is never mutated.
func Validate(req *Request, limits Limits) (*Request, error) {
	verr := &ValidationError{}
	if req == nil {
		verr.add("body", "is required")
		return nil, verr
	}

	out := *req
	out.Pages = append([]string(nil), req.Pages...)

	validatePages(verr, out.Pages, limits.MaxPages)

	switch strings.ToLower(out.ContentType) {
	case "", ContentTypeHTML:
		out.ContentType = ContentTypeHTML
	case ContentTypeMarkdown:
		out.ContentType = ContentTypeMarkdown
	default:
		verr.add("contentType", "must be %q or %q", ContentTypeHTML, ContentTypeMarkdown)
	}

	out.Filename = normalizeFilename(verr, out.Filename)
	out.Options = normalizeOptions(verr, out.Options)
	out.Font = normalizeFont(verr, out.Font)

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return &out, nil
}

func validatePages(verr *ValidationError, pages []string, maxPages int) {
	if len(pages) == 0 {
		verr.add("pages", "must contain at least 1 page")
		return
	}
	if maxPages > 0 && len(pages) > maxPages {
		verr.add("pages", "must contain at most %d pages (got %d)", maxPages, len(pages))
	}
	for i, p := range pages {
		if strings.TrimSpace(p) == "" {
			verr.add(fmt.Sprintf("pages[%d]", i), "must not be empty")
		}
		if len(p) > maxPageContentLength {
			verr.add(fmt.Sprintf("pages[%d]", i), "exceeds %d bytes", maxPageContentLength)
		}
	}
}

// normalizeFilename ensures a safe attachment name ending in .pdf.
func normalizeFilename(verr *ValidationError, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultFilename
	}
	if len(name) > maxFilenameLength {
		verr.add("filename", "must be at most %d characters", maxFilenameLength)
		return name
	}
	if strings.ContainsAny(name, "/\\\x00\"\r\n") {
		verr.add("filename", "must not contain path separators, quotes or control characters")
		return name
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func normalizeOptions(verr *ValidationError, o RenderOptions) RenderOptions {
	hasFormat := strings.TrimSpace(o.Format) != ""
	hasWidth, hasHeight := o.Width != nil, o.Height != nil

	switch {
	case hasWidth != hasHeight:
		verr.add("options.width", "width and height must be provided together")
	case hasFormat && hasWidth:
		verr.add("options.format", "cannot be combined with width and height")
	case hasFormat:
		if _, ok := paperSizes[strings.ToLower(o.Format)]; !ok {
			verr.add("options.format", "unknown format %q (use %s)", o.Format, knownFormats())
		}
	case hasWidth:
		if !o.Width.finite() || !o.Height.finite() {
			verr.add("options.width", "width and height must be finite, non-negative lengths")
		} else if o.Width.Inches == 0 || o.Height.Inches == 0 {
			verr.add("options.width", "width and height must be greater than zero")
		}
	default:
		o.Format = defaultPageFormat
	}

	margins := []struct {
		side string
		l    *Length
	}{{"top", o.Margin.Top}, {"right", o.Margin.Right}, {"bottom", o.Margin.Bottom}, {"left", o.Margin.Left}}
	for _, m := range margins {
		if !m.l.finite() {
			verr.add("options.margin."+m.side, "must be a finite, non-negative length")
		}
	}

	if o.Scale == 0 {
		o.Scale = defaultScale
	}
	if !(o.Scale >= MinScale && o.Scale <= MaxScale) {
		verr.add("options.scale", "must be between %.1f and %.1f (got %v)", MinScale, MaxScale, o.Scale)
	}

	if o.PrintBackground == nil {
		v := defaultPrintBackground
		o.PrintBackground = &v
	}

	if o.Timeout == 0 {
		o.Timeout = defaultTimeoutMillis
	}
	if o.Timeout < MinTimeoutMillis || o.Timeout > MaxTimeoutMillis {
		verr.add("options.timeout", "must be between %d and %d milliseconds (got %d)", MinTimeoutMillis, MaxTimeoutMillis, o.Timeout)
	}

	switch strings.ToLower(o.WaitUntil) {
	case "":
		o.WaitUntil = defaultWaitCondition
	case WaitNetworkIdle, WaitDOMContentLoaded:
		o.WaitUntil = strings.ToLower(o.WaitUntil)
	default:
		verr.add("options.waitUntil", "must be %q or %q", WaitNetworkIdle, WaitDOMContentLoaded)
	}

	if len(o.HeaderTemplate) > maxTemplateLength {
		verr.add("options.headerTemplate", "exceeds %d bytes", maxTemplateLength)
	}
	if len(o.FooterTemplate) > maxTemplateLength {
		verr.add("options.footerTemplate", "exceeds %d bytes", maxTemplateLength)
	}

	return o
}

func knownFormats() string {
	return "Letter, Legal, Tabloid, Ledger, A0-A6"
}

var fontWeights = map[string]bool{"normal": true, "bold": true, "bolder": true, "lighter": true}

func normalizeFont(verr *ValidationError, f *Font) *Font {
	if f == nil {
		return nil
	}
	out := *f

	hasFamily := strings.TrimSpace(out.Family) != ""
	hasURL := strings.TrimSpace(out.URL) != ""
	if hasFamily != hasURL {
		verr.add("font", "family and url must be provided together")
		return &out
	}
	if !hasFamily {
		// An empty descriptor means "no font".
		return nil
	}

	u, err := url.Parse(out.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verr.add("font.url", "must be an absolute http or https URL")
	}

	out.Format = strings.ToLower(strings.TrimSpace(out.Format))
	if out.Format == "" && u != nil {
		out.Format = formatFromPath(u.Path)
	}
	switch out.Format {
	case FontWOFF, FontWOFF2, FontTTF, FontOTF:
	default:
		verr.add("font.format", "must be one of woff, woff2, ttf, otf")
	}

	w := strings.ToLower(strings.TrimSpace(string(out.Weight)))
	switch {
	case w == "":
		out.Weight = "normal"
	case fontWeights[w]:
		out.Weight = FontWeight(w)
	default:
		n, err := strconv.Atoi(w)
		if err != nil || n < 100 || n > 900 || n%100 != 0 {
			verr.add("font.weight", "must be normal, bold or a multiple of 100 between 100 and 900")
		}
		out.Weight = FontWeight(w)
	}

	out.Style = strings.ToLower(strings.TrimSpace(out.Style))
	switch out.Style {
	case "":
		out.Style = "normal"
	case "normal", "italic", "oblique":
	default:
		verr.add("font.style", "must be normal, italic or oblique")
	}

	return &out
}

// formatFromPath infers the font format from a URL path extension.
func formatFromPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".woff":
		return FontWOFF
	case ".ttf":
		return FontTTF
	case ".otf":
		return FontOTF
	default:
		return FontWOFF2
	}
}
