package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"launch-watch/internal/discovery"
	"launch-watch/internal/domain"
	"launch-watch/internal/observability"
	"launch-watch/internal/solana"
	"launch-watch/internal/tracker"
)

// SignatureLister lists recent signatures, newest first.
type SignatureLister interface {
	List(ctx context.Context, limit int) ([]string, error)
}

// TransactionFetcher retrieves one transaction.
type TransactionFetcher interface {
	Fetch(ctx context.Context, signature string) (*solana.Transaction, discovery.Outcome, error)
}

// MetadataEnricher resolves token metadata, never returning nil.
type MetadataEnricher interface {
	Enrich(ctx context.Context, mint *string) *domain.TokenMetadata
}

// SnapshotPublisher receives the snapshot after a cycle changed the result list.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *tracker.Snapshot) error
}

// PipelineOptions contains the components of one poll cycle.
type PipelineOptions struct {
	Lister     SignatureLister
	Fetcher    TransactionFetcher
	Classifier *discovery.Classifier
	Enricher   MetadataEnricher
	Aggregator *tracker.Aggregator
	Publishers []SnapshotPublisher
	Logger     *zap.Logger
	// Now returns the discovery time of matches. Default: time.Now.
	Now func() time.Time
}

// Pipeline runs a single list, fetch, classify, enrich and aggregate pass.
type Pipeline struct {
	lister     SignatureLister
	fetcher    TransactionFetcher
	classifier *discovery.Classifier
	enricher   MetadataEnricher
	aggregator *tracker.Aggregator
	publishers []SnapshotPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		lister:     opts.Lister,
		fetcher:    opts.Fetcher,
		classifier: opts.Classifier,
		enricher:   opts.Enricher,
		aggregator: opts.Aggregator,
		publishers: opts.Publishers,
		logger:     logger.Named("cycle"),
		now:        now,
	}
}

// RunCycle performs one poll cycle with the given listing limit.
// The state update is always applied; a listing failure is returned after an empty update.
// Once ctx is done no further signatures are fetched; the unfetched ones count as
// failed so the watermark stays behind them. The scheduler detaches its cycles from
// cancellation, other callers may bound a cycle with ctx.
func (p *Pipeline) RunCycle(ctx context.Context, id string, limit int) (tracker.CycleSummary, error) {
	log := p.logger.With(zap.String("cycle", id))

	listed, listErr := p.lister.List(ctx, limit)
	if listErr != nil {
		observability.RecordListingFailure()
		log.Warn("listing failed", zap.Error(listErr))
		listed = nil
	}

	fresh := newerThan(listed, p.aggregator.Watermark())

	in := tracker.CycleInput{ID: id, Listed: fresh}
	batch := newBatchSeen()
	for i, sig := range fresh {
		if ctx.Err() != nil {
			break
		}
		in.Processed++

		tx, outcome, err := p.fetcher.Fetch(ctx, sig)
		switch outcome {
		case discovery.OutcomeFailed:
			in.FailedIndexes = append(in.FailedIndexes, i)
			log.Warn("fetch failed, signature will be retried",
				zap.String("signature", sig),
				zap.Error(err))
			continue
		case discovery.OutcomeAbsent:
			continue
		}

		if !p.classifier.Matches(tx) {
			continue
		}

		token, pair := p.classifier.Extract(tx)
		match := domain.MatchResult{
			Transaction:          tx,
			TokenAddress:         token,
			LiquidityPairAddress: pair,
			DiscoveredAt:         p.now(),
		}
		if batch.duplicate(p.aggregator, match.Signature(), token) {
			// Apply drops it; it is still passed on so it is counted and its signature recorded.
			log.Debug("duplicate launch, skipping metadata lookup",
				zap.String("signature", sig),
				zap.Stringp("token", token))
			in.Matches = append(in.Matches, match)
			continue
		}

		match.Metadata = p.enricher.Enrich(ctx, token)
		in.Matches = append(in.Matches, match)
		log.Info("launch matched",
			zap.String("signature", sig),
			zap.Stringp("token", token),
			zap.Stringp("pair", pair))
	}
	observability.RecordMatches(len(in.Matches))

	summary := p.aggregator.Apply(in)
	if summary.WatermarkHeld {
		log.Warn("watermark held by failed fetches",
			zap.Int("failed", summary.Failed),
			zap.String("watermark", summary.Watermark))
	}

	if summary.Changed {
		p.publish(ctx, log)
	}

	log.Info("cycle complete",
		zap.Int("listed", len(listed)),
		zap.Int("new", len(fresh)),
		zap.Int("matches", len(in.Matches)),
		zap.Int("accepted", summary.Accepted),
		zap.String("watermark", summary.Watermark))

	return summary, listErr
}

func (p *Pipeline) publish(ctx context.Context, log *zap.Logger) {
	snap := p.aggregator.Snapshot()
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, snap); err != nil {
			observability.RecordPublishError()
			log.Warn("snapshot publish failed", zap.Error(err))
		}
	}
}

// batchSeen tracks matches seen earlier in the same cycle, which the
// aggregator's emitted sets do not know about yet.
type batchSeen struct {
	sigs   map[string]struct{}
	tokens map[string]struct{}
}

func newBatchSeen() *batchSeen {
	return &batchSeen{
		sigs:   make(map[string]struct{}),
		tokens: make(map[string]struct{}),
	}
}

// duplicate reports whether the aggregator will drop a match with sig and token,
// and marks both as seen.
func (b *batchSeen) duplicate(agg *tracker.Aggregator, sig string, token *string) bool {
	if _, ok := b.sigs[sig]; ok || agg.Emitted(sig) {
		return true
	}
	b.sigs[sig] = struct{}{}

	if token == nil || !agg.TokenDedup() {
		return false
	}
	if _, ok := b.tokens[*token]; ok || agg.TokenEmitted(*token) {
		return true
	}
	b.tokens[*token] = struct{}{}
	return false
}

// newerThan returns the prefix of listed before watermark.
// If watermark is absent from listed, all of listed is new.
func newerThan(listed []string, watermark string) []string {
	if watermark == "" {
		return listed
	}
	for i, sig := range listed {
		if sig == watermark {
			return listed[:i]
		}
	}
	return listed
}
