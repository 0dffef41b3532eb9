package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	html2pdf "github.com/alnah/go-html2pdf"
)

const (
	serviceName        = "html2pdf"
	serviceDescription = "Renders ordered HTML pages with headless Chrome and merges them into one PDF"
)

func (s *Server) generatePDF(c echo.Context) error {
	// Read first so the body limit surfaces as 413, not as malformed JSON.
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	req, err := html2pdf.DecodeRequest(bytes.NewReader(body))
	if err != nil {
		return err
	}

	res, err := s.gen.Generate(c.Request().Context(), req)
	if err != nil {
		return err
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, contentDisposition(res.Filename))
	h.Set(HeaderProcessingTime, strconv.FormatInt(res.Duration.Milliseconds(), 10))
	h.Set(HeaderPageCount, strconv.Itoa(res.PageCount))
	h.Set(HeaderInputPages, strconv.Itoa(res.InputPages))
	return c.Blob(http.StatusOK, "application/pdf", res.PDF)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Environment       string `json:"environment"`
	ConcurrencyLimit  int    `json:"concurrencyLimit"`
	MaxPages          int    `json:"maxPages"`
	RendererAvailable bool   `json:"rendererAvailable"`
	UptimeSeconds     int64  `json:"uptimeSeconds"`
	Version           string `json:"version"`
}

func (s *Server) health(c echo.Context) error {
	limits := s.gen.Limits()
	available := s.gen.RendererAvailable()
	status := "ok"
	if !available {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:            status,
		Environment:       s.opts.Environment,
		ConcurrencyLimit:  limits.Concurrency,
		MaxPages:          limits.MaxPages,
		RendererAvailable: available,
		UptimeSeconds:     int64(time.Since(s.started).Seconds()),
		Version:           s.opts.Version,
	})
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
	Limits      html2pdf.Limits   `json:"limits"`
}

func (s *Server) index(c echo.Context) error {
	return c.JSON(http.StatusOK, IndexResponse{
		Name:        serviceName,
		Version:     s.opts.Version,
		Description: serviceDescription,
		Endpoints: map[string]string{
			"POST /generate-pdf": "Render pages into one PDF",
			"GET /health":        "Service health and limits",
			"GET /":              "This document",
		},
		Limits: s.gen.Limits(),
	})
}
