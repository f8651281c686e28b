package tracker

import (
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"launch-watch/internal/domain"
	"launch-watch/internal/observability"
)

// Default aggregation settings.
const (
	DefaultCapacity        = 5
	DefaultSignatureWindow = 1024
)

// Options configures an Aggregator.
type Options struct {
	// Capacity bounds the result list. Default: 5.
	Capacity int
	// SignatureWindow bounds the emitted signature set. Default: 1024.
	SignatureWindow int
	// TokenWindow bounds the emitted token set. Default: SignatureWindow.
	TokenWindow int
	// DedupByToken drops matches whose token address was already emitted.
	DedupByToken bool
	Logger       *zap.Logger
	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// CycleInput is everything one poll cycle learned.
type CycleInput struct {
	// ID correlates logs of the cycle.
	ID string
	// Listed holds the signatures newer than the current watermark, newest first.
	Listed []string
	// Processed is how many of Listed were fetched. Unfetched signatures are treated as failed.
	Processed int
	// FailedIndexes are positions in Listed whose fetch failed.
	FailedIndexes []int
	// Matches are classified transactions in list order.
	Matches []domain.MatchResult
}

// CycleSummary reports what Apply did.
type CycleSummary struct {
	Accepted            int
	DuplicateSignatures int
	DuplicateTokens     int
	Failed              int
	PreviousWatermark   string
	Watermark           string
	// WatermarkHeld is true when failures kept the watermark behind the newest listed signature.
	WatermarkHeld bool
	// Changed is true when the published result list differs from the previous one.
	Changed bool
}

// Snapshot is an immutable view of the result list.
type Snapshot struct {
	Results   []domain.MatchResult
	Watermark string
	UpdatedAt time.Time
	// Cycle counts applied cycles.
	Cycle uint64
}

// Aggregator deduplicates matches, maintains the bounded result list and the watermark,
// and publishes snapshots. Apply must be called from a single goroutine; Snapshot is
// safe from any goroutine.
type Aggregator struct {
	opts     Options
	state    *PollState
	cycles   uint64
	snapshot atomic.Pointer[Snapshot]
	logger   *zap.Logger
}

// NewAggregator creates an aggregator with empty state.
func NewAggregator(opts Options) *Aggregator {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SignatureWindow <= 0 {
		opts.SignatureWindow = DefaultSignatureWindow
	}
	if opts.TokenWindow <= 0 {
		opts.TokenWindow = opts.SignatureWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokenWindow := 0
	if opts.DedupByToken {
		tokenWindow = opts.TokenWindow
	}

	a := &Aggregator{
		opts:   opts,
		state:  NewPollState(opts.SignatureWindow, tokenWindow),
		logger: logger.Named("aggregator"),
	}
	a.publish()
	return a
}

// Watermark returns the current watermark.
func (a *Aggregator) Watermark() string {
	return a.state.Watermark
}

// Snapshot returns the latest published snapshot.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.snapshot.Load()
}

// Emitted reports whether a match with signature sig was already accepted.
// Like Apply, it must only be called from the cycle goroutine.
func (a *Aggregator) Emitted(sig string) bool {
	return a.state.EmittedSignatures.Has(sig)
}

// TokenEmitted reports whether token was already accepted. Always false when
// token dedup is off.
func (a *Aggregator) TokenEmitted(token string) bool {
	return a.state.EmittedTokens != nil && a.state.EmittedTokens.Has(token)
}

// TokenDedup reports whether matches are deduplicated by token address.
func (a *Aggregator) TokenDedup() bool {
	return a.state.EmittedTokens != nil
}

// Apply folds one cycle into the state and publishes a new snapshot.
func (a *Aggregator) Apply(in CycleInput) CycleSummary {
	summary := CycleSummary{PreviousWatermark: a.state.Watermark}

	survivors := a.dedup(in.Matches, &summary)
	summary.Changed = a.merge(survivors)
	summary.Accepted = len(survivors)

	a.advanceWatermark(in, &summary)

	for _, m := range survivors {
		a.state.EmittedSignatures.Add(m.Signature())
		if a.state.EmittedTokens != nil && m.TokenAddress != nil {
			a.state.EmittedTokens.Add(*m.TokenAddress)
		}
	}

	a.cycles++
	a.publish()
	observability.UpdateResultsSize(len(a.state.Results))

	a.logger.Debug("cycle applied",
		zap.String("cycle", in.ID),
		zap.Int("accepted", summary.Accepted),
		zap.Int("duplicate_signatures", summary.DuplicateSignatures),
		zap.Int("duplicate_tokens", summary.DuplicateTokens),
		zap.String("watermark", summary.Watermark),
		zap.Bool("held", summary.WatermarkHeld))

	return summary
}

// dedup drops matches already emitted or repeated within the batch.
func (a *Aggregator) dedup(matches []domain.MatchResult, summary *CycleSummary) []domain.MatchResult {
	seenSigs := make(map[string]struct{}, len(matches))
	seenTokens := make(map[string]struct{}, len(matches))
	out := make([]domain.MatchResult, 0, len(matches))

	for _, m := range matches {
		sig := m.Signature()
		if _, dup := seenSigs[sig]; dup || a.state.EmittedSignatures.Has(sig) {
			summary.DuplicateSignatures++
			observability.RecordDuplicate("signature")
			continue
		}
		seenSigs[sig] = struct{}{}

		if a.state.EmittedTokens != nil && m.TokenAddress != nil {
			token := *m.TokenAddress
			if _, dup := seenTokens[token]; dup || a.state.EmittedTokens.Has(token) {
				summary.DuplicateTokens++
				observability.RecordDuplicate("token")
				a.state.EmittedSignatures.Add(sig)
				continue
			}
			seenTokens[token] = struct{}{}
		}

		out = append(out, m)
	}
	return out
}

// merge puts survivors ahead of existing results, sorts by descending block time,
// truncates to capacity, and reports whether any survivor was retained.
func (a *Aggregator) merge(survivors []domain.MatchResult) bool {
	if len(survivors) == 0 {
		return false
	}

	merged := make([]domain.MatchResult, 0, len(survivors)+len(a.state.Results))
	merged = append(merged, survivors...)
	merged = append(merged, a.state.Results...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Newer(merged[j])
	})
	if len(merged) > a.opts.Capacity {
		merged = merged[:a.opts.Capacity]
	}

	fresh := make(map[string]struct{}, len(survivors))
	for _, m := range survivors {
		fresh[m.Signature()] = struct{}{}
	}
	changed := false
	for _, m := range merged {
		if _, ok := fresh[m.Signature()]; ok {
			changed = true
			break
		}
	}

	a.state.Results = merged
	return changed
}

// advanceWatermark moves the watermark to the newest listed signature, or to the
// signature just older than the oldest failure so failed signatures are listed again.
func (a *Aggregator) advanceWatermark(in CycleInput, summary *CycleSummary) {
	summary.Watermark = a.state.Watermark
	if len(in.Listed) == 0 {
		return
	}

	oldestFailed := -1
	for _, idx := range in.FailedIndexes {
		if idx >= 0 && idx < len(in.Listed) {
			summary.Failed++
			if idx > oldestFailed {
				oldestFailed = idx
			}
		}
	}
	if in.Processed < len(in.Listed) {
		oldestFailed = len(in.Listed) - 1
	}

	if oldestFailed < 0 {
		a.state.Watermark = in.Listed[0]
		summary.Watermark = a.state.Watermark
		return
	}

	summary.WatermarkHeld = true
	observability.RecordWatermarkHeld()
	if next := oldestFailed + 1; next < len(in.Listed) {
		a.state.Watermark = in.Listed[next]
	}
	summary.Watermark = a.state.Watermark
}

func (a *Aggregator) publish() {
	results := make([]domain.MatchResult, len(a.state.Results))
	copy(results, a.state.Results)
	a.snapshot.Store(&Snapshot{
		Results:   results,
		Watermark: a.state.Watermark,
		UpdatedAt: a.opts.Now(),
		Cycle:     a.cycles,
	})
}
