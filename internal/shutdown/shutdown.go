package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel delivers SIGTERM and SIGINT.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// WithShutdownSignal returns a context that is cancelled on the first SIGTERM or
// SIGINT. Any open database transaction bound to it is rolled back.
func WithShutdownSignal(parent context.Context, l *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	signals := CreateGracefulShutdownChannel()

	go func() {
		defer signal.Stop(signals)
		select {
		case sig := <-signals:
			l.Sugar().Infow("Caught signal, cancelling", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
