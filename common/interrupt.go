package common

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func Interrupted() chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
	return interrupt
}

// InterruptContext returns a context canceled on the first interrupt.
// A second interrupt exits the process.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	interrupt := Interrupted()
	go func() {
		select {
		case <-ctx.Done():
			signal.Stop(interrupt)
			return
		case sig := <-interrupt:
			slog.Warn("Received signal, finishing in-flight work", "signal", sig)
			cancel()
		}
		sig := <-interrupt
		slog.Error("Force exit", "signal", sig)
		os.Exit(1)
	}()
	return ctx, cancel
}
