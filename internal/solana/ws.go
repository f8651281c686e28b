package solana

import "context"

// WSClient is the WebSocket subscription surface used for wake signals.
type WSClient interface {
	// SubscribeLogs streams confirmed log notifications matching filter.
	// The channel is closed when the client closes.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	Close() error
}

// LogsFilter selects which transactions produce notifications.
type LogsFilter struct {
	// Mention restricts notifications to transactions that reference this
	// address. Empty subscribes to all transactions.
	Mention string
}

// params returns the first logsSubscribe parameter.
func (f LogsFilter) params() interface{} {
	if f.Mention == "" {
		return "all"
	}
	return map[string][]string{"mentions": {f.Mention}}
}

// LogNotification is one logsNotification payload.
type LogNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}

// Failed reports whether the notified transaction failed on chain.
func (n LogNotification) Failed() bool {
	return n.Err != nil
}
