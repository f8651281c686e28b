package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"launch-watch/internal/domain"
	"launch-watch/internal/solana"
)

func match(sig string, blockTime int64, token string) domain.MatchResult {
	bt := blockTime
	m := domain.MatchResult{
		Transaction: &solana.Transaction{Signatures: []string{sig}, BlockTime: &bt},
	}
	if token != "" {
		m.TokenAddress = &token
	}
	return m
}

func signatures(results []domain.MatchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Signature()
	}
	return out
}

func newTestAggregator(t *testing.T, dedupByToken bool) *Aggregator {
	return NewAggregator(Options{
		Capacity:        5,
		SignatureWindow: 64,
		DedupByToken:    dedupByToken,
		Logger:          zaptest.NewLogger(t),
	})
}

func processed(listed ...string) CycleInput {
	return CycleInput{Listed: listed, Processed: len(listed)}
}

func TestAggregator_InitialSnapshot(t *testing.T) {
	a := newTestAggregator(t, false)
	snap := a.Snapshot()
	require.NotNil(t, snap)
	assert.NotNil(t, snap.Results)
	assert.Empty(t, snap.Results)
	assert.Equal(t, "", snap.Watermark)
	assert.Equal(t, uint64(0), snap.Cycle)
}

func TestAggregator_BoundedAndSorted(t *testing.T) {
	a := newTestAggregator(t, false)

	for cycle := 0; cycle < 4; cycle++ {
		in := processed()
		for i := 0; i < 3; i++ {
			n := cycle*3 + i
			sig := fmt.Sprintf("s%02d", n)
			in.Listed = append(in.Listed, sig)
			// Block times deliberately out of list order.
			in.Matches = append(in.Matches, match(sig, int64((n*7)%12), ""))
		}
		in.Processed = len(in.Listed)
		a.Apply(in)

		snap := a.Snapshot()
		assert.LessOrEqual(t, len(snap.Results), 5)
		for i := 1; i < len(snap.Results); i++ {
			assert.GreaterOrEqual(t, *snap.Results[i-1].BlockTime(), *snap.Results[i].BlockTime())
		}
	}

	snap := a.Snapshot()
	assert.Len(t, snap.Results, 5)
	assert.Equal(t, uint64(4), snap.Cycle)
}

func TestAggregator_SignatureDedup(t *testing.T) {
	a := newTestAggregator(t, false)

	in := processed("s2", "s1")
	in.Matches = []domain.MatchResult{match("s2", 20, ""), match("s1", 10, "")}
	first := a.Apply(in)
	assert.Equal(t, 2, first.Accepted)
	assert.True(t, first.Changed)

	// Same signatures observed again, plus an in-batch repeat.
	in = processed("s3", "s2", "s1")
	in.Matches = []domain.MatchResult{match("s3", 30, ""), match("s3", 30, ""), match("s2", 20, ""), match("s1", 10, "")}
	second := a.Apply(in)
	assert.Equal(t, 1, second.Accepted)
	assert.Equal(t, 3, second.DuplicateSignatures)

	assert.Equal(t, []string{"s3", "s2", "s1"}, signatures(a.Snapshot().Results))
}

func TestAggregator_TokenDedup(t *testing.T) {
	a := newTestAggregator(t, true)

	in := processed("s3", "s2", "s1")
	in.Matches = []domain.MatchResult{
		match("s3", 30, "mintA"),
		match("s2", 20, "mintA"),
		match("s1", 10, ""),
	}
	summary := a.Apply(in)
	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, 1, summary.DuplicateTokens)

	in = processed("s5", "s4")
	in.Matches = []domain.MatchResult{match("s5", 50, "mintA"), match("s4", 40, "")}
	summary = a.Apply(in)
	assert.Equal(t, 1, summary.Accepted, "nil tokens are never token-deduped")
	assert.Equal(t, []string{"s4", "s3", "s1"}, signatures(a.Snapshot().Results))
}

func TestAggregator_TokenDedupDisabled(t *testing.T) {
	a := newTestAggregator(t, false)

	in := processed("s2", "s1")
	in.Matches = []domain.MatchResult{match("s2", 20, "mintA"), match("s1", 10, "mintA")}
	assert.Equal(t, 2, a.Apply(in).Accepted)
}

func TestAggregator_EmittedLookups(t *testing.T) {
	a := newTestAggregator(t, true)
	assert.True(t, a.TokenDedup())

	in := processed("s2", "s1")
	in.Matches = []domain.MatchResult{match("s2", 20, "mintA"), match("s1", 10, "mintA")}
	a.Apply(in)

	assert.True(t, a.Emitted("s2"))
	assert.True(t, a.Emitted("s1"), "token duplicates still record their signature")
	assert.False(t, a.Emitted("s0"))
	assert.True(t, a.TokenEmitted("mintA"))
	assert.False(t, a.TokenEmitted("mintB"))

	off := newTestAggregator(t, false)
	off.Apply(in)
	assert.False(t, off.TokenDedup())
	assert.False(t, off.TokenEmitted("mintA"))
}

func TestAggregator_NilBlockTimeSortsOldest(t *testing.T) {
	a := newTestAggregator(t, false)

	unknown := domain.MatchResult{Transaction: &solana.Transaction{Signatures: []string{"nobt"}}}
	in := processed("nobt", "s1")
	in.Matches = []domain.MatchResult{unknown, match("s1", 10, "")}
	a.Apply(in)

	assert.Equal(t, []string{"s1", "nobt"}, signatures(a.Snapshot().Results))
}

func TestAggregator_TiesKeepNewerDiscoveryFirst(t *testing.T) {
	a := newTestAggregator(t, false)

	in := processed("old")
	in.Matches = []domain.MatchResult{match("old", 10, "")}
	a.Apply(in)

	in = processed("new")
	in.Matches = []domain.MatchResult{match("new", 10, "")}
	a.Apply(in)

	assert.Equal(t, []string{"new", "old"}, signatures(a.Snapshot().Results))
}

func TestAggregator_CapacityDropsOlderMatches(t *testing.T) {
	a := newTestAggregator(t, false)

	in := processed()
	for i := 10; i > 5; i-- {
		sig := fmt.Sprintf("s%d", i)
		in.Listed = append(in.Listed, sig)
		in.Matches = append(in.Matches, match(sig, int64(i*100), ""))
	}
	in.Processed = len(in.Listed)
	a.Apply(in)

	in = processed("late")
	in.Matches = []domain.MatchResult{match("late", 1, "")}
	summary := a.Apply(in)
	assert.Equal(t, 1, summary.Accepted)
	assert.False(t, summary.Changed, "an older match outside capacity does not change the list")
	assert.Equal(t, []string{"s10", "s9", "s8", "s7", "s6"}, signatures(a.Snapshot().Results))
}

func TestAggregator_WatermarkAdvances(t *testing.T) {
	a := newTestAggregator(t, false)

	summary := a.Apply(processed("s3", "s2", "s1"))
	assert.Equal(t, "s3", summary.Watermark)
	assert.False(t, summary.WatermarkHeld)
	assert.Equal(t, "s3", a.Watermark())

	summary = a.Apply(processed())
	assert.Equal(t, "s3", summary.Watermark, "empty listing keeps the watermark")

	summary = a.Apply(processed("s5", "s4"))
	assert.Equal(t, "s3", summary.PreviousWatermark)
	assert.Equal(t, "s5", a.Snapshot().Watermark)
}

func TestAggregator_WatermarkHeldByFailure(t *testing.T) {
	a := newTestAggregator(t, false)
	a.Apply(processed("s1"))

	// s4 (index 1) failed: the watermark stops just below it at s3.
	in := processed("s5", "s4", "s3", "s2")
	in.FailedIndexes = []int{1}
	summary := a.Apply(in)
	assert.True(t, summary.WatermarkHeld)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "s3", summary.Watermark)

	// The oldest failure is the last listed: keep the old watermark.
	in = processed("s6", "s5", "s4")
	in.FailedIndexes = []int{0, 2}
	summary = a.Apply(in)
	assert.Equal(t, "s3", summary.Watermark)
	assert.Equal(t, 2, summary.Failed)
}

func TestAggregator_UnprocessedTreatedAsFailed(t *testing.T) {
	a := newTestAggregator(t, false)
	a.Apply(processed("s1"))

	summary := a.Apply(CycleInput{Listed: []string{"s3", "s2"}, Processed: 1})
	assert.True(t, summary.WatermarkHeld)
	assert.Equal(t, "s1", summary.Watermark)
}

func TestAggregator_FailedSignatureNotEmitted(t *testing.T) {
	a := newTestAggregator(t, false)

	in := processed("s2", "s1")
	in.FailedIndexes = []int{0}
	in.Matches = []domain.MatchResult{match("s1", 10, "")}
	a.Apply(in)
	assert.Equal(t, "s1", a.Watermark())

	// Next cycle re-fetches s2 successfully.
	in = processed("s2")
	in.Matches = []domain.MatchResult{match("s2", 20, "")}
	summary := a.Apply(in)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, []string{"s2", "s1"}, signatures(a.Snapshot().Results))
	assert.Equal(t, "s2", a.Watermark())
}

func TestAggregator_SnapshotConcurrentReads(t *testing.T) {
	a := NewAggregator(Options{Capacity: 5, Now: func() time.Time { return time.Unix(0, 0) }})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := a.Snapshot()
				if len(snap.Results) > 5 {
					t.Errorf("snapshot exceeds capacity: %d", len(snap.Results))
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		sig := fmt.Sprintf("s%d", i)
		in := processed(sig)
		in.Matches = []domain.MatchResult{match(sig, int64(i), "")}
		a.Apply(in)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(200), a.Snapshot().Cycle)
	assert.Equal(t, time.Unix(0, 0), a.Snapshot().UpdatedAt)
}
