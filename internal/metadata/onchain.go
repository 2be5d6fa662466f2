package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/solana"
)

// metaplexProgramID is the Metaplex Token Metadata program.
const metaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var errNoPDA = errors.New("no off-curve program address")

// OnChainProvider reads name and symbol from the mint's Metaplex metadata
// account and decimals from the SPL mint account.
type OnChainProvider struct {
	rpc solana.RPCClient
}

// NewOnChainProvider creates a provider reading accounts through rpc.
func NewOnChainProvider(rpc solana.RPCClient) *OnChainProvider {
	return &OnChainProvider{rpc: rpc}
}

// Name implements Provider.
func (p *OnChainProvider) Name() string { return "onchain" }

// Lookup implements Provider.
func (p *OnChainProvider) Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	pda, err := MetadataPDA(mint)
	if err != nil {
		return nil, err
	}

	metaInfo, err := p.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("get metadata account: %w", err)
	}
	if metaInfo == nil {
		return nil, nil
	}

	meta := &domain.TokenMetadata{Mint: mint}
	name, symbol, ok := parseMetaplexData(metaInfo.Data)
	if !ok {
		return nil, nil
	}
	meta.Name = truncate(name, maxNameLen)
	meta.Symbol = truncate(symbol, maxSymbolLen)

	// Decimals are best effort.
	if mintInfo, err := p.rpc.GetAccountInfo(ctx, mint); err == nil && mintInfo != nil {
		if d, ok := parseMintDecimals(mintInfo.Data); ok {
			meta.Decimals = &d
		}
	}

	if meta.IsEmpty() {
		return nil, nil
	}
	return meta, nil
}

// MetadataPDA derives the Metaplex metadata account for mint.
// Seeds: ["metadata", program id, mint].
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil || len(mintBytes) != 32 {
		return "", fmt.Errorf("invalid mint %q", mint)
	}
	programBytes, err := base58.Decode(metaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	return findProgramAddress([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
}

// findProgramAddress returns the first off-curve address, trying bumps from 255 down.
func findProgramAddress(seeds [][]byte, programID []byte) (string, error) {
	var buf []byte
	for bump := 255; bump >= 0; bump-- {
		buf = buf[:0]
		for _, seed := range seeds {
			buf = append(buf, seed...)
		}
		buf = append(buf, byte(bump))
		buf = append(buf, programID...)
		buf = append(buf, "ProgramDerivedAddress"...)

		hash := sha256.Sum256(buf)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), nil
		}
	}
	return "", errNoPDA
}

func isOnCurve(point []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// parseMetaplexData decodes name and symbol from a base64 metadata account.
// Layout: key u8 (4 = MetadataV1), update authority [32], mint [32],
// then borsh strings name, symbol, uri.
func parseMetaplexData(data string) (name, symbol string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) < 69 || raw[0] != 4 {
		return "", "", false
	}

	offset := 65
	name, offset, ok = readBorshString(raw, offset, 64)
	if !ok {
		return "", "", false
	}
	symbol, _, ok = readBorshString(raw, offset, 32)
	if !ok {
		return name, "", true
	}
	return name, symbol, true
}

func readBorshString(raw []byte, offset, maxLen int) (string, int, bool) {
	if offset+4 > len(raw) {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(raw[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(raw) {
		return "", offset, false
	}
	s := strings.TrimSpace(strings.TrimRight(string(raw[offset:offset+n]), "\x00"))
	return s, offset + n, true
}

// parseMintDecimals reads decimals from an SPL mint account (offset 44).
func parseMintDecimals(data string) (int, bool) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) < 82 {
		return 0, false
	}
	return int(raw[44]), true
}
