package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	html2pdf "github.com/alnah/go-html2pdf"
)

// handleError writes every failure as the {kind, message, details} envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, envelope := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("requestId", requestID(c)),
			zap.String("kind", string(envelope.Kind)),
			zap.String("message", envelope.Message),
			zap.String("details", envelope.Details),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, envelope)
	}
	if werr != nil {
		s.logger.Warn("writing error response", zap.Error(werr))
	}
}

// classify maps pipeline errors through html2pdf.Classify and router errors
// (404, 405, 413, 429) to an envelope carrying their own status.
func classify(err error) (int, *html2pdf.Error) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := html2pdf.KindValidation
		if he.Code >= http.StatusInternalServerError {
			kind = html2pdf.KindUnknown
		}
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		e := &html2pdf.Error{Kind: kind, Message: msg, Err: err}
		if he.Internal != nil {
			e.Details = he.Internal.Error()
		}
		return he.Code, e
	}

	e := html2pdf.Classify(err)
	return e.Status(), e
}
