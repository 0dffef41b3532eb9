// Package server exposes the PDF generator over HTTP with echo.
//
// Routes:
//
//	POST /generate-pdf  merged PDF or a JSON error envelope
//	GET  /health        liveness and limits
//	GET  /              service description
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	html2pdf "github.com/alnah/go-html2pdf"
)

// Response headers set on generated documents.
const (
	HeaderProcessingTime = "X-Processing-Time-Ms"
	HeaderPageCount      = "X-Page-Count"
	HeaderInputPages     = "X-Input-Pages"
)

// rateLimiterExpiry drops idle per-client limiters.
const rateLimiterExpiry = 3 * time.Minute

// Generator is the pipeline behind the routes.
type Generator interface {
	Generate(ctx context.Context, req *html2pdf.Request) (*html2pdf.Result, error)
	Limits() html2pdf.Limits
	RendererAvailable() bool
}

var _ Generator = (*html2pdf.Generator)(nil)

// Options configures the HTTP surface.
type Options struct {
	Environment string
	Version     string
	RateLimit   float64 // requests per second per client IP, 0 disables
	RateBurst   int
	BodyLimit   string // echo size string, e.g. "10M"
	CORSOrigins []string
}

// Server is the HTTP front of a Generator.
type Server struct {
	echo    *echo.Echo
	gen     Generator
	opts    Options
	logger  *zap.Logger
	started time.Time
}

// New builds the echo instance, middleware chain and routes.
func New(gen Generator, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, gen: gen, opts: opts, logger: logger, started: time.Now()}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error("panic recovered",
				zap.String("requestId", requestID(c)),
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{
			echo.HeaderContentDisposition,
			echo.HeaderXRequestID,
			HeaderProcessingTime,
			HeaderPageCount,
			HeaderInputPages,
		},
	}))

	generate := []echo.MiddlewareFunc{}
	if opts.BodyLimit != "" {
		generate = append(generate, middleware.BodyLimit(opts.BodyLimit))
	}
	if opts.RateLimit > 0 {
		generate = append(generate, s.rateLimiter())
	}

	e.POST("/generate-pdf", s.generatePDF, generate...)
	e.GET("/health", s.health)
	e.GET("/", s.index)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.opts.RateLimit),
			Burst:     s.opts.RateBurst,
			ExpiresIn: rateLimiterExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.logger.Warn("rate limited", zap.String("client", identifier))
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, retry later")
		},
	})
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	fields := []zap.Field{
		zap.String("method", v.Method),
		zap.String("uri", v.URI),
		zap.Int("status", v.Status),
		zap.Duration("latency", v.Latency),
		zap.String("requestId", v.RequestID),
	}
	switch {
	case v.Status >= http.StatusInternalServerError:
		s.logger.Error("request", append(fields, zap.Error(v.Error))...)
	case v.Error != nil:
		s.logger.Warn("request", append(fields, zap.Error(v.Error))...)
	default:
		s.logger.Info("request", fields...)
	}
	return nil
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// contentDisposition returns the attachment header for a validated filename.
func contentDisposition(filename string) string {
	return `attachment; filename="` + filename + `"`
}
