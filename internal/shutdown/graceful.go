package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals は SIGINT / SIGTERM で cancel される ctx を返す。
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
