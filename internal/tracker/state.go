// Package tracker owns the poll state: watermark, dedup sets and the bounded result list.
package tracker

import (
	"launch-watch/internal/domain"
)

// PollState is the mutable state carried between poll cycles.
// It is owned by the single cycle goroutine.
type PollState struct {
	// Watermark is the newest signature already covered, "" before the first cycle.
	Watermark string
	// EmittedSignatures holds canonical signatures of accepted matches.
	EmittedSignatures *RecentSet
	// EmittedTokens holds token addresses of accepted matches, nil when token dedup is off.
	EmittedTokens *RecentSet
	// Results are ordered by descending block time and bounded by capacity.
	Results []domain.MatchResult
}

// NewPollState creates an empty state. tokenWindow <= 0 disables token dedup.
func NewPollState(signatureWindow, tokenWindow int) *PollState {
	s := &PollState{
		EmittedSignatures: NewRecentSet(signatureWindow),
		Results:           []domain.MatchResult{},
	}
	if tokenWindow > 0 {
		s.EmittedTokens = NewRecentSet(tokenWindow)
	}
	return s
}
