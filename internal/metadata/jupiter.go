package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"solana-wallet-tracker/internal/domain"
)

// DefaultJupiterURL is the public bulk token list.
const DefaultJupiterURL = "https://token.jup.ag/all"

// JupiterSource downloads the bulk token list used to warm the cache.
type JupiterSource struct {
	url    string
	client *http.Client
}

// NewJupiterSource creates a token list source. Empty url uses DefaultJupiterURL.
func NewJupiterSource(url string, client *http.Client) *JupiterSource {
	if url == "" {
		url = DefaultJupiterURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &JupiterSource{url: url, client: client}
}

type jupiterToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	LogoURI  string `json:"logoURI"`
	Decimals *int   `json:"decimals"`
}

// Load fetches and decodes the whole list.
func (s *JupiterSource) Load(ctx context.Context) ([]domain.TokenMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch token list: http %d", resp.StatusCode)
	}

	var tokens []jupiterToken
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}

	out := make([]domain.TokenMetadata, 0, len(tokens))
	for _, t := range tokens {
		if t.Address == "" {
			continue
		}
		out = append(out, domain.TokenMetadata{
			Mint:     t.Address,
			Symbol:   t.Symbol,
			Name:     t.Name,
			LogoURL:  t.LogoURI,
			Decimals: t.Decimals,
		})
	}
	return out, nil
}
