package domain

import (
	"regexp"
	"strings"
)

// DefaultHTTPEndpoint is the public mainnet RPC endpoint.
const DefaultHTTPEndpoint = "https://api.mainnet-beta.solana.com"

// DefaultWSEndpoint is the public mainnet WebSocket endpoint.
const DefaultWSEndpoint = "wss://api.mainnet-beta.solana.com"

// addressPattern matches base58 public keys (no 0, O, I, l).
var addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// IsValidAddress reports whether s looks like a Solana public key.
// Surrounding whitespace is ignored.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// ShortAddress abbreviates an address as first4…last4.
func ShortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

// ExplorerTxURL returns the block explorer link for a transaction signature.
func ExplorerTxURL(signature string) string {
	return "https://solscan.io/tx/" + signature
}

// ExplorerAddressURL returns the block explorer link for an account.
func ExplorerAddressURL(addr string) string {
	return "https://solscan.io/address/" + addr
}

// InferWSEndpoint derives a WebSocket endpoint from an HTTP RPC endpoint
// by protocol-prefix substitution.
func InferWSEndpoint(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	case strings.HasPrefix(httpURL, "wss://"), strings.HasPrefix(httpURL, "ws://"):
		return httpURL
	default:
		return DefaultWSEndpoint
	}
}
