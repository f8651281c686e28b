package metadata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"launch-watch/internal/domain"
	"launch-watch/internal/observability"
)

// Lookup results recorded in metrics.
const (
	lookupFound  = "found"
	lookupAbsent = "absent"
	lookupError  = "error"
)

// Enricher resolves metadata through sources tried in order.
type Enricher struct {
	sources []Source
	timeout time.Duration
	logger  *zap.Logger
}

// NewEnricher creates an enricher. A non-positive timeout leaves source calls
// bounded only by ctx.
func NewEnricher(sources []Source, timeout time.Duration, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		sources: sources,
		timeout: timeout,
		logger:  logger.Named("metadata"),
	}
}

// Enrich returns metadata for mint. It never returns nil: when mint is nil or no
// source resolves it, the Unknown sentinel is returned.
func (e *Enricher) Enrich(ctx context.Context, mint *string) *domain.TokenMetadata {
	if mint == nil || *mint == "" {
		return domain.UnknownTokenMetadata("")
	}

	for _, src := range e.sources {
		md, err := e.fetch(ctx, src, *mint)
		switch {
		case err != nil:
			observability.RecordMetadataLookup(src.Name(), lookupError)
			e.logger.Warn("metadata lookup failed",
				zap.String("source", src.Name()),
				zap.String("mint", *mint),
				zap.Error(err))
		case md == nil:
			observability.RecordMetadataLookup(src.Name(), lookupAbsent)
		default:
			observability.RecordMetadataLookup(src.Name(), lookupFound)
			md.Mint = *mint
			if md.Source == "" {
				md.Source = src.Name()
			}
			md.Resolved = true
			return md
		}
	}

	return domain.UnknownTokenMetadata(*mint)
}

func (e *Enricher) fetch(ctx context.Context, src Source, mint string) (*domain.TokenMetadata, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return src.Fetch(ctx, mint)
}
