// Package metadata resolves token display metadata from on-chain and HTTP sources.
package metadata

import (
	"context"

	"launch-watch/internal/domain"
)

// Source provides token metadata for a mint.
type Source interface {
	// Name identifies the source in logs, metrics and resolved metadata.
	Name() string
	// Fetch returns metadata for mint, or nil, nil when the source has none.
	Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}
