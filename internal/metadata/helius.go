package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"solana-wallet-tracker/internal/domain"
)

// DefaultHeliusURL is the Helius token metadata endpoint.
const DefaultHeliusURL = "https://api.helius.xyz/v0/tokens/metadata"

const (
	maxSymbolLen = 16
	maxNameLen   = 64
)

// HeliusProvider queries the Helius metadata API for one mint at a time.
type HeliusProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHeliusProvider creates a provider. Empty endpoint uses DefaultHeliusURL.
func NewHeliusProvider(apiKey, endpoint string, client *http.Client) *HeliusProvider {
	if endpoint == "" {
		endpoint = DefaultHeliusURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HeliusProvider{endpoint: endpoint, apiKey: apiKey, client: client}
}

// Name implements Provider.
func (p *HeliusProvider) Name() string { return "helius" }

type heliusRequest struct {
	MintAccounts []string `json:"mintAccounts"`
}

type heliusToken struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Logo    string `json:"logo"`
}

// Lookup implements Provider.
func (p *HeliusProvider) Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	body, err := json.Marshal(heliusRequest{MintAccounts: []string{mint}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := p.endpoint + "?api-key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("helius request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helius request: http %d", resp.StatusCode)
	}

	var tokens []heliusToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode helius response: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	t := tokens[0]
	meta := &domain.TokenMetadata{
		Mint:    mint,
		Symbol:  truncate(t.Symbol, maxSymbolLen),
		Name:    truncate(t.Name, maxNameLen),
		LogoURL: t.Logo,
	}
	if meta.IsEmpty() {
		return nil, nil
	}
	return meta, nil
}
