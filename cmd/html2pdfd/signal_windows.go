//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// notifyContext is canceled on Ctrl+C, which starts the graceful shutdown
// of the server. syscall.SIGTERM is not delivered on Windows.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
