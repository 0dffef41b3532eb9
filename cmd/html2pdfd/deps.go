package main

import (
	"io"
	"os"

	"github.com/alnah/go-html2pdf/internal/config"
)

// Dependencies holds injectable dependencies for testability.
type Dependencies struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Lookup  config.LookupFunc
	Environ func() []string
}

// DefaultDeps returns production dependencies.
func DefaultDeps() *Dependencies {
	return &Dependencies{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Lookup:  os.LookupEnv,
		Environ: os.Environ,
	}
}
