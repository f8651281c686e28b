package discovery

import (
	"context"
	"fmt"

	"launch-watch/internal/observability"
	"launch-watch/internal/solana"
)

// Lister returns the most recent signatures of the tracked account.
type Lister struct {
	client  solana.RPCClient
	account string
}

// NewLister creates a lister for account.
func NewLister(client solana.RPCClient, account string) *Lister {
	return &Lister{client: client, account: account}
}

// Account returns the tracked account address.
func (l *Lister) Account() string {
	return l.account
}

// List returns up to limit signatures, newest first.
// Any RPC failure yields an empty slice and an error wrapping ErrListingFailed.
func (l *Lister) List(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, fmt.Errorf("list %d: %w", limit, ErrInvalidLimit)
	}

	infos, err := l.client.GetSignaturesForAddress(ctx, l.account, &solana.SignaturesOpts{Limit: limit})
	if err != nil {
		return []string{}, fmt.Errorf("%w: %s: %w", ErrListingFailed, l.account, err)
	}

	sigs := make([]string, 0, len(infos))
	for _, info := range infos {
		sigs = append(sigs, info.Signature)
	}
	observability.RecordSignaturesListed(len(sigs))
	return sigs, nil
}
