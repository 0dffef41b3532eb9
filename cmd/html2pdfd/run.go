package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/internal/hints"
	"github.com/alnah/go-html2pdf/internal/logging"
	"github.com/alnah/go-html2pdf/internal/server"
)

// shutdownTimeout lets an in-flight request at the maximum page timeout finish.
const shutdownTimeout = html2pdf.MaxRenderTimeout + 5*time.Second

// run dispatches the command and returns the process exit code.
func run(ctx context.Context, args []string, deps *Dependencies) int {
	if len(args) > 1 && args[1] == "doctor" {
		return runDoctorCmd(args[2:], deps)
	}

	flags, err := parseServeFlags(args[1:])
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		printUsage(deps.Stderr)
		return exitCodeFor(err)
	}
	if flags.help {
		printUsage(deps.Stdout)
		return ExitSuccess
	}
	if flags.version {
		fmt.Fprintf(deps.Stdout, "html2pdfd %s\n", Version)
		return ExitSuccess
	}

	cfg, err := loadConfig(flags, deps)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return exitCodeFor(err)
	}
	if flags.printConfig {
		out, err := cfg.Encode()
		if err != nil {
			fmt.Fprintln(deps.Stderr, err)
			return ExitGeneral
		}
		_, _ = deps.Stdout.Write(out)
		return ExitSuccess
	}

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return exitCodeFor(err)
	}
	defer func() { _ = logger.Sync() }()

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// loadConfig reads config sources, applies flags and reports warnings.
func loadConfig(flags *serveFlags, deps *Dependencies) (*config.Config, error) {
	cfg, warnings, err := config.Load(config.LoadOptions{
		ConfigFile: flags.config,
		EnvFile:    flags.envFile,
		Lookup:     deps.Lookup,
		Environ:    deps.Environ,
	})
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintln(deps.Stderr, "warning:", w)
	}

	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serve runs the HTTP server until ctx is canceled, then drains it.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	engine := html2pdf.NewRodEngine(
		html2pdf.WithBrowserBin(cfg.Browser.Bin),
		html2pdf.WithNoSandbox(cfg.Browser.NoSandbox),
		html2pdf.WithBrowserDownload(cfg.Browser.Download),
		html2pdf.WithEngineLogger(logger),
	)
	limits := cfg.Limits()
	gen := html2pdf.NewGenerator(
		html2pdf.WithEngine(engine),
		html2pdf.WithLimits(limits),
		html2pdf.WithLogger(logger),
	)
	if !gen.RendererAvailable() {
		logger.Warn("no browser found, PDF generation will fail until one is installed",
			zap.String("hint", hints.ForRendererUnavailable()))
	}

	srv := server.New(gen, server.Options{
		Environment: cfg.Environment,
		Version:     Version,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		BodyLimit:   cfg.BodyLimit,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	logger.Info("starting html2pdfd",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.Int("concurrencyLimit", limits.Concurrency),
		zap.Int("maxPages", limits.MaxPages),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Addr()) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}
