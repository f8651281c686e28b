package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"launch-watch/internal/solana"
)

// LogWake turns logs notifications mentioning the tracked account into
// coalesced wake signals for the Scheduler.
type LogWake struct {
	client  solana.WSClient
	account string
	ch      chan struct{}
	logger  *zap.Logger
}

// NewLogWake creates a wake source. Call Run to start forwarding.
func NewLogWake(client solana.WSClient, account string, logger *zap.Logger) *LogWake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogWake{
		client:  client,
		account: account,
		ch:      make(chan struct{}, 1),
		logger:  logger.Named("wake"),
	}
}

// C returns the wake channel. At most one signal is pending at a time.
func (w *LogWake) C() <-chan struct{} {
	return w.ch
}

// Run subscribes and forwards notifications until ctx is done or the subscription ends.
func (w *LogWake) Run(ctx context.Context) error {
	notifs, err := w.client.SubscribeLogs(ctx, solana.LogsFilter{Mention: w.account})
	if err != nil {
		return fmt.Errorf("subscribe logs for %s: %w", w.account, err)
	}
	w.logger.Info("subscribed to account logs", zap.String("account", w.account))

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifs:
			if !ok {
				w.logger.Info("logs subscription closed")
				return nil
			}
			if n.Failed() {
				continue
			}
			w.logger.Debug("activity observed", zap.String("signature", n.Signature), zap.Int64("slot", n.Slot))
			w.signal()
		}
	}
}

func (w *LogWake) signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}
