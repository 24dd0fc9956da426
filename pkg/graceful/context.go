package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/quietmap/pkg/logger"
)

// Context creates a context that is canceled when SIGINT or SIGTERM is
// received, so the caller can start a clean shutdown.
func Context(ctx context.Context, log *logger.Logger) (context.Context, context.CancelFunc) {
	if log == nil {
		log = logger.NewDefault("graceful")
	}
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Info("received termination signal, starting graceful shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
