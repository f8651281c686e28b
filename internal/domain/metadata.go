package domain

// UnknownName is the placeholder used when metadata cannot be resolved.
const UnknownName = "Unknown"

// TokenMetadata represents display metadata for a token mint.
type TokenMetadata struct {
	Mint     string  // token mint address
	Name     string  // token name
	Symbol   string  // token symbol
	URI      *string // off-chain metadata or image uri (nullable)
	Source   string  // name of the source that resolved it, "" when unresolved
	Resolved bool    // false for the Unknown sentinel
}

// UnknownTokenMetadata returns the sentinel used when no source resolves the mint.
func UnknownTokenMetadata(mint string) *TokenMetadata {
	return &TokenMetadata{
		Mint:   mint,
		Name:   UnknownName,
		Symbol: UnknownName,
	}
}
