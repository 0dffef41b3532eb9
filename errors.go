package html2pdf

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies the class of a pipeline failure.
type Kind string

// Failure kinds reported in the error envelope.
const (
	KindValidation Kind = "ValidationError"
	KindRender     Kind = "RenderError"
	KindTimeout    Kind = "TimeoutError"
	KindResource   Kind = "ResourceError"
	KindUnknown    Kind = "UnknownError"
)

// Sentinel errors for engine and pipeline operations.
var (
	ErrRendererUnavailable = errors.New("PDF renderer is not available")
	ErrBrowserConnect      = errors.New("failed to connect to browser")
	ErrSessionCreate       = errors.New("failed to create browser page")
	ErrPageLoad            = errors.New("failed to load page")
	ErrPDFGeneration       = errors.New("PDF generation failed")
	ErrInvalidPDF          = errors.New("invalid PDF buffer")
	ErrNoPages             = errors.New("no pages to assemble")
)

// Error is the single classified failure type surfaced to clients.
// Message is safe to show to users; engine text goes to Details.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to the HTTP status code of the response.
func (e *Error) Status() int {
	if e.Kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// FieldError is one violated field of a request.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// ValidationError collects every field violation found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// add records a violation.
func (v *ValidationError) add(field, format string, args ...any) {
	v.Fields = append(v.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// orNil returns nil when no violation was recorded.
func (v *ValidationError) orNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

// Classify turns any error into exactly one classified *Error.
// Precedence: validation failures, then already classified errors, then unknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return &Error{Kind: KindValidation, Message: verr.Error(), Err: err}
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, ErrRendererUnavailable) {
		return &Error{Kind: KindUnknown, Message: ErrRendererUnavailable.Error(), Details: err.Error(), Err: err}
	}

	return &Error{Kind: KindUnknown, Message: "An unexpected error occurred", Details: err.Error(), Err: err}
}
