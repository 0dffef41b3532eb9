// Command html2pdfd serves the HTML-to-PDF API.
//
//	html2pdfd [flags]          run the server
//	html2pdfd doctor [--json]  check the browser and environment
package main

import (
	"context"
	"os"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := notifyContext(context.Background())
	code := run(ctx, os.Args, DefaultDeps())
	stop()
	os.Exit(code)
}
