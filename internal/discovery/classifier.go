package discovery

import (
	"fmt"
	"strings"

	"launch-watch/internal/solana"
)

// RaydiumAMMV4 is the Raydium AMM v4 program ID.
const RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// Profile is a named, versioned set of classifier constants.
type Profile struct {
	Name    string
	Version string

	// Fingerprints are base58 prefixes of instruction data.
	Fingerprints []string
	// ProgramID restricts fingerprint matching to instructions of this program when set.
	ProgramID string

	// PostBalancesLen is the exact number of accounts with post balances.
	PostBalancesLen int
	// MinFirstBalance is an exclusive lower bound on the fee payer's post balance, in lamports.
	MinFirstBalance uint64

	// TokenAccountIndex and PairAccountIndex are positions in the message account keys.
	TokenAccountIndex int
	PairAccountIndex  int
}

// DefaultProfile returns the raydium-launch/v1 profile.
func DefaultProfile() Profile {
	return Profile{
		Name:    "raydium-launch",
		Version: "v1",
		Fingerprints: []string{
			"3mimF1vf45io",
			"3ipZWcvdfi4ZMA2h6UPodC5qTfD9CpLKxRF23SBNGvo9LygWEGQyStb2TpFf",
		},
		PostBalancesLen:   23,
		MinFirstBalance:   1_600_000_000_000,
		TokenAccountIndex: 19,
		PairAccountIndex:  2,
	}
}

// ID returns "name/version".
func (p Profile) ID() string {
	return p.Name + "/" + p.Version
}

// Validate checks the profile constants.
func (p Profile) Validate() error {
	if len(p.Fingerprints) == 0 {
		return fmt.Errorf("%w: no fingerprints", ErrInvalidProfile)
	}
	for i, fp := range p.Fingerprints {
		if fp == "" {
			return fmt.Errorf("%w: fingerprint %d is empty", ErrInvalidProfile, i)
		}
	}
	if p.PostBalancesLen <= 0 {
		return fmt.Errorf("%w: post balances length must be positive, got %d", ErrInvalidProfile, p.PostBalancesLen)
	}
	if p.TokenAccountIndex < 0 || p.PairAccountIndex < 0 {
		return fmt.Errorf("%w: account offsets must be non-negative", ErrInvalidProfile)
	}
	return nil
}

// Classifier decides whether a transaction is a launch and extracts its addresses.
type Classifier struct {
	profile Profile
}

// NewClassifier validates profile and returns a classifier for it.
func NewClassifier(profile Profile) (*Classifier, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{profile: profile}, nil
}

// Profile returns the active profile.
func (c *Classifier) Profile() Profile {
	return c.profile
}

// Matches reports whether tx satisfies the fingerprint, shape and threshold checks.
// Malformed or partial transactions never match.
func (c *Classifier) Matches(tx *solana.Transaction) bool {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return false
	}
	if !c.hasFingerprint(tx.Message) {
		return false
	}

	balances := tx.Meta.PostBalances
	if len(balances) != c.profile.PostBalancesLen {
		return false
	}
	return balances[0] > c.profile.MinFirstBalance
}

func (c *Classifier) hasFingerprint(msg *solana.TransactionMessage) bool {
	for _, ix := range msg.Instructions {
		if c.profile.ProgramID != "" && msg.ProgramID(ix) != c.profile.ProgramID {
			continue
		}
		for _, fp := range c.profile.Fingerprints {
			if strings.HasPrefix(ix.Data, fp) {
				return true
			}
		}
	}
	return false
}

// Extract returns the token and liquidity pair addresses at the profile offsets.
// An out-of-range offset yields nil for that address.
func (c *Classifier) Extract(tx *solana.Transaction) (token, pair *string) {
	if tx == nil || tx.Message == nil {
		return nil, nil
	}
	return accountAt(tx.Message.AccountKeys, c.profile.TokenAccountIndex),
		accountAt(tx.Message.AccountKeys, c.profile.PairAccountIndex)
}

func accountAt(keys []string, i int) *string {
	if i < 0 || i >= len(keys) || keys[i] == "" {
		return nil
	}
	v := keys[i]
	return &v
}
