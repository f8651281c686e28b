// Package feed exposes the result snapshot over HTTP and Redis pub/sub.
package feed

import (
	"time"

	"launch-watch/internal/domain"
	"launch-watch/internal/tracker"
)

// Display link prefixes.
const (
	TokenLinkPrefix = "https://pump.fun/"
	PairLinkPrefix  = "https://dexscreener.com/solana/"
)

// SnapshotView is the JSON form of a tracker snapshot.
type SnapshotView struct {
	Results   []ResultView `json:"results"`
	Watermark string       `json:"watermark"`
	UpdatedAt time.Time    `json:"updated_at"`
	Cycle     uint64       `json:"cycle"`
}

// ResultView is the JSON form of one match.
type ResultView struct {
	Signature            string       `json:"signature"`
	Slot                 int64        `json:"slot"`
	BlockTime            *int64       `json:"block_time"`
	TokenAddress         *string      `json:"token_address"`
	LiquidityPairAddress *string      `json:"liquidity_pair_address"`
	Metadata             MetadataView `json:"metadata"`
	Links                LinksView    `json:"links"`
	DiscoveredAt         time.Time    `json:"discovered_at"`
}

// MetadataView is the JSON form of token metadata.
type MetadataView struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	URI      *string `json:"uri"`
	Source   string  `json:"source,omitempty"`
	Resolved bool    `json:"resolved"`
}

// LinksView holds external display links.
type LinksView struct {
	Token *string `json:"token,omitempty"`
	Pair  *string `json:"pair,omitempty"`
}

// NewSnapshotView converts a snapshot. A nil snapshot yields an empty view.
func NewSnapshotView(snap *tracker.Snapshot) SnapshotView {
	view := SnapshotView{Results: []ResultView{}}
	if snap == nil {
		return view
	}

	view.Watermark = snap.Watermark
	view.UpdatedAt = snap.UpdatedAt
	view.Cycle = snap.Cycle
	for _, r := range snap.Results {
		view.Results = append(view.Results, newResultView(r))
	}
	return view
}

func newResultView(r domain.MatchResult) ResultView {
	v := ResultView{
		Signature:            r.Signature(),
		BlockTime:            r.BlockTime(),
		TokenAddress:         r.TokenAddress,
		LiquidityPairAddress: r.LiquidityPairAddress,
		DiscoveredAt:         r.DiscoveredAt,
	}
	if r.Transaction != nil {
		v.Slot = r.Transaction.Slot
	}

	md := r.Metadata
	if md == nil {
		md = domain.UnknownTokenMetadata("")
	}
	v.Metadata = MetadataView{
		Name:     md.Name,
		Symbol:   md.Symbol,
		URI:      md.URI,
		Source:   md.Source,
		Resolved: md.Resolved,
	}

	if r.TokenAddress != nil {
		link := TokenLinkPrefix + *r.TokenAddress
		v.Links.Token = &link
	}
	if r.LiquidityPairAddress != nil {
		link := PairLinkPrefix + *r.LiquidityPairAddress
		v.Links.Pair = &link
	}
	return v
}
