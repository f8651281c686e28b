package metadata

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"launch-watch/internal/domain"
	"launch-watch/internal/solana"
)

// metadataV1Key is the account discriminator of Metaplex MetadataV1.
const metadataV1Key = 4

// maxBorshString guards against corrupt length prefixes.
const maxBorshString = 1024

var errMalformedMetadata = errors.New("malformed metaplex metadata")

// MetaplexSource reads the Metaplex metadata account of a mint.
type MetaplexSource struct {
	rpc solana.RPCClient
}

// NewMetaplexSource creates an on-chain metadata source.
func NewMetaplexSource(rpc solana.RPCClient) *MetaplexSource {
	return &MetaplexSource{rpc: rpc}
}

// Name implements Source.
func (s *MetaplexSource) Name() string {
	return "metaplex"
}

// Fetch implements Source.
func (s *MetaplexSource) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	pda, err := DeriveMetadataPDA(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata pda: %w", err)
	}

	info, err := s.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("get metadata account %s: %w", pda, err)
	}
	if info == nil {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata account: %w", err)
	}

	name, symbol, uri, err := parseMetaplexData(raw)
	if err != nil {
		return nil, err
	}

	md := &domain.TokenMetadata{
		Mint:     mint,
		Name:     name,
		Symbol:   symbol,
		Source:   s.Name(),
		Resolved: true,
	}
	if uri != "" {
		md.URI = &uri
	}
	return md, nil
}

// parseMetaplexData decodes the leading fields of a MetadataV1 account.
// Layout:
// - key: u8 (4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name, symbol, uri: borsh strings (u32 length + bytes), NUL padded
func parseMetaplexData(data []byte) (name, symbol, uri string, err error) {
	if len(data) < 65 || data[0] != metadataV1Key {
		return "", "", "", errMalformedMetadata
	}

	r := borshReader{buf: data, off: 65}
	if name, err = r.string(); err != nil {
		return "", "", "", fmt.Errorf("name: %w", err)
	}
	if symbol, err = r.string(); err != nil {
		return "", "", "", fmt.Errorf("symbol: %w", err)
	}
	if uri, err = r.string(); err != nil {
		return "", "", "", fmt.Errorf("uri: %w", err)
	}
	return name, symbol, uri, nil
}

type borshReader struct {
	buf []byte
	off int
}

func (r *borshReader) string() (string, error) {
	if r.off+4 > len(r.buf) {
		return "", errMalformedMetadata
	}
	n := int(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	if n > maxBorshString || r.off+n > len(r.buf) {
		return "", errMalformedMetadata
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	return strings.TrimSpace(strings.TrimRight(s, "\x00")), nil
}
