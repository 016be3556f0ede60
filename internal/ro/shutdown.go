// Package ro provides reactive helpers for coordinating process shutdown.
package ro

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/ro"
)

// ShutdownSignals are the OS signals that trigger graceful shutdown.
var ShutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// GracefulShutdown returns an Observable that emits the first shutdown
// signal received and then completes. Subscribing from several goroutines
// lets each coordinate its own teardown off the same event.
func GracefulShutdown(ctx context.Context) ro.Observable[os.Signal] {
	return GracefulShutdownWithSignals(ctx, ShutdownSignals...)
}

// GracefulShutdownWithSignals is GracefulShutdown for a caller-chosen
// signal set.
func GracefulShutdownWithSignals(parentCtx context.Context, signals ...os.Signal) ro.Observable[os.Signal] {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	return ro.NewObservableWithContext(func(ctx context.Context, observer ro.Observer[os.Signal]) ro.Teardown {
		_ = parentCtx
		go func() {
			select {
			case sig := <-ch:
				observer.NextWithContext(ctx, sig)
				observer.CompleteWithContext(ctx)
			case <-ctx.Done():
				observer.ErrorWithContext(ctx, ctx.Err())
			}
		}()

		return func() {
			signal.Stop(ch)
			close(ch)
		}
	})
}

// WaitForShutdown blocks until a shutdown signal arrives or the context is
// canceled. Returns the signal, or the context error on cancellation.
func WaitForShutdown(ctx context.Context) (os.Signal, error) {
	results, _, err := ro.CollectWithContext(ctx, GracefulShutdown(ctx))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ctx.Err()
	}
	return results[0], nil
}
