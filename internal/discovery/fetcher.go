package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"launch-watch/internal/observability"
	"launch-watch/internal/solana"
)

// Outcome classifies the result of fetching one signature.
type Outcome int

const (
	// OutcomeFound means the transaction was retrieved.
	OutcomeFound Outcome = iota
	// OutcomeAbsent means the node answered but has no usable transaction.
	// It is terminal for the signature.
	OutcomeAbsent
	// OutcomeFailed means the fetch did not complete and should be retried in a later cycle.
	OutcomeFailed
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeAbsent:
		return "absent"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Default retry settings.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second
)

// FetcherOptions configures Fetcher retry behavior.
type FetcherOptions struct {
	// MaxRetries is the number of retries after a rate-limited call.
	MaxRetries int
	// BaseDelay is multiplied by the retry number to get the delay before it.
	BaseDelay time.Duration
	Logger    *zap.Logger
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultFetcherOptions returns the default retry policy.
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// Fetcher retrieves transactions with bounded linear backoff on rate limiting.
type Fetcher struct {
	client solana.RPCClient
	opts   FetcherOptions
	logger *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(client solana.RPCClient, opts FetcherOptions) *Fetcher {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		logger: logger.Named("fetcher"),
	}
}

// Fetch retrieves the transaction for signature.
// The error is non-nil only for OutcomeFailed.
func (f *Fetcher) Fetch(ctx context.Context, signature string) (*solana.Transaction, Outcome, error) {
	tx, outcome, err := f.fetch(ctx, signature)
	observability.RecordFetchOutcome(outcome.String())
	return tx, outcome, err
}

func (f *Fetcher) fetch(ctx context.Context, signature string) (*solana.Transaction, Outcome, error) {
	for attempt := 0; ; attempt++ {
		tx, err := f.client.GetTransaction(ctx, signature)
		if err == nil {
			if tx == nil {
				f.logger.Debug("transaction not available", zap.String("signature", signature))
				return nil, OutcomeAbsent, nil
			}
			return tx, OutcomeFound, nil
		}

		var rpcErr *solana.RPCError
		switch {
		case solana.IsRateLimited(err):
			if attempt >= f.opts.MaxRetries {
				f.logger.Warn("rate limit retries exhausted",
					zap.String("signature", signature),
					zap.Int("attempts", attempt+1))
				return nil, OutcomeFailed, fmt.Errorf("get transaction %s: %w after %d attempts: %w",
					signature, ErrRetriesExhausted, attempt+1, err)
			}

			delay := f.opts.BaseDelay * time.Duration(attempt+1)
			f.logger.Debug("rate limited, backing off",
				zap.String("signature", signature),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			observability.RecordRateLimitRetry()

			if err := f.opts.Sleep(ctx, delay); err != nil {
				return nil, OutcomeFailed, fmt.Errorf("get transaction %s: backoff: %w", signature, err)
			}

		case errors.As(err, &rpcErr):
			f.logger.Debug("transaction lookup returned rpc error",
				zap.String("signature", signature),
				zap.Error(err))
			return nil, OutcomeAbsent, nil

		default:
			f.logger.Warn("transaction fetch failed",
				zap.String("signature", signature),
				zap.Error(err))
			return nil, OutcomeFailed, fmt.Errorf("get transaction %s: %w", signature, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
