package domain

import (
	"time"

	"launch-watch/internal/solana"
)

// MatchResult is a transaction that satisfied the classifier, with extracted fields.
type MatchResult struct {
	Transaction          *solana.Transaction
	TokenAddress         *string // account key at the profile's token offset (nullable)
	LiquidityPairAddress *string // account key at the profile's pair offset (nullable)
	Metadata             *TokenMetadata
	DiscoveredAt         time.Time
}

// Signature returns the canonical transaction signature.
func (m MatchResult) Signature() string {
	return m.Transaction.Signature()
}

// BlockTime returns the transaction block time, nil when unknown.
func (m MatchResult) BlockTime() *int64 {
	if m.Transaction == nil {
		return nil
	}
	return m.Transaction.BlockTime
}

// Newer reports whether m sorts before other in descending block time order.
// Unknown block times sort oldest.
func (m MatchResult) Newer(other MatchResult) bool {
	a, b := m.BlockTime(), other.BlockTime()
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}
