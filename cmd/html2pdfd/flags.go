package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-html2pdf/internal/config"
)

// ErrUsage marks invalid command-line arguments.
var ErrUsage = errors.New("invalid usage")

// serveFlags holds the flags of the server command.
type serveFlags struct {
	config      string
	envFile     string
	port        int
	env         string
	logLevel    string
	concurrency int
	maxPages    int
	verbose     bool
	version     bool
	printConfig bool
	help        bool

	// changed records which flags were set explicitly.
	changed map[string]bool
}

func newServeFlagSet(f *serveFlags, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("html2pdfd", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&f.config, "config", "c", "", "YAML config file (default $"+config.EnvVarConfigFile+")")
	fs.StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	fs.IntVarP(&f.port, "port", "p", config.DefaultPort, "listen port")
	fs.StringVar(&f.env, "env", "", "deployment environment: production or development")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.IntVar(&f.concurrency, "concurrency", 0, "pages rendered at once (0 = environment default)")
	fs.IntVar(&f.maxPages, "max-pages", 0, "pages accepted per request (0 = environment default)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging and GOMAXPROCS report")
	fs.BoolVar(&f.version, "version", false, "print the version and exit")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	fs.BoolVarP(&f.help, "help", "h", false, "show this help")
	return fs
}

// parseServeFlags parses args (without the program name).
// Errors are returned, not printed; the caller prints usage.
func parseServeFlags(args []string) (*serveFlags, error) {
	f := &serveFlags{changed: map[string]bool{}}
	fs := newServeFlagSet(f, io.Discard)
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			f.help = true
			return f, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	fs.Visit(func(fl *flag.Flag) { f.changed[fl.Name] = true })
	return f, nil
}

// apply layers explicitly set flags over cfg.
func (f *serveFlags) apply(cfg *config.Config) {
	if f.changed["port"] {
		cfg.Port = f.port
	}
	if f.changed["env"] {
		cfg.Environment = f.env
	}
	if f.changed["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.changed["concurrency"] {
		cfg.Concurrency = f.concurrency
	}
	if f.changed["max-pages"] {
		cfg.MaxPages = f.maxPages
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: html2pdfd [flags]")
	fmt.Fprintln(w, "       html2pdfd doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs := newServeFlagSet(&serveFlags{}, w)
	fs.PrintDefaults()
}
