// Package orchestrator runs long-lived processes until a shutdown signal.
package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// SignalHandler cancels a context on SIGINT or SIGTERM.
type SignalHandler struct {
	sigChan chan os.Signal
}

func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// HandleSignals calls cancel on the first signal, or stops listening once ctx
// is done.
func (sh *SignalHandler) HandleSignals(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		defer signal.Stop(sh.sigChan)
		select {
		case sig := <-sh.sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
}

// WithShutdown returns a context that ends on SIGINT/SIGTERM or when parent
// ends.
func WithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	NewSignalHandler().HandleSignals(ctx, cancel)
	return ctx, cancel
}
