package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var quitSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGHUP,
	syscall.SIGQUIT,
}

// NewSignalContext is cancelled by the first quit signal. A second SIGINT in
// a row exits the process immediately.
func NewSignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, quitSignals...)

	go func() {
		wasSIGINT := false

		for sig := range quitCh {
			if wasSIGINT && sig == syscall.SIGINT {
				slog.Warn("interrupted twice, exiting")
				os.Exit(1)
			}

			slog.Info("shutting down", "signal", sig)
			wasSIGINT = sig == syscall.SIGINT
			cancel()
		}
	}()

	return ctx, cancel
}
