package runtime

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext is cancelled on the first SIGINT or SIGTERM. A second signal
// while shutdown is in progress exits immediately.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	return notifyContext(logger, func(code int) { os.Exit(code) }, syscall.SIGINT, syscall.SIGTERM)
}

func notifyContext(logger *slog.Logger, exit func(int), sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
			cancel()
		})
	}

	go func() {
		select {
		case sig := <-ch:
			logger.Info("shutdown requested", "signal", sig.String())
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-ch:
			logger.Error("forced exit", "signal", sig.String())
			exit(1)
		case <-done:
		}
	}()
	return ctx, stop
}
