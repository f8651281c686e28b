package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the byte length of an ed25519 public key.
const PubkeyLength = 32

// DecodePubkey decodes a base58 public key and checks its length.
func DecodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(b) != PubkeyLength {
		return nil, fmt.Errorf("decode pubkey %q: expected %d bytes, got %d", s, PubkeyLength, len(b))
	}
	return b, nil
}

// ValidatePubkey reports an error unless s is a base58 encoded public key.
func ValidatePubkey(s string) error {
	_, err := DecodePubkey(s)
	return err
}
