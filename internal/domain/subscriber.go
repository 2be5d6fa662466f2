package domain

import (
	"slices"
	"strings"
	"time"
)

// Badges shown next to wallets in listings.
const (
	BadgeLaunchOn  = "🚀"
	BadgeLaunchOff = "🟢"
	BadgeSilentOn  = "🔕"
	BadgeSilentOff = "🔔"
)

// SubscriberConfig is the per-chat tracker configuration.
type SubscriberConfig struct {
	HTTPEndpoint string                  // JSON-RPC endpoint used for transaction lookups
	WSEndpoint   string                  // optional, inferred from HTTPEndpoint when empty
	Silent       bool                    // deliver notifications without sound
	Watches      map[string]*WatchConfig // keyed by wallet address

	// WSEndpointUnset marks a stored record without a ws_rpc key.
	// Registry.Load replaces it with the env default.
	WSEndpointUnset bool
}

// WatchConfig holds the settings of a single watched wallet.
type WatchConfig struct {
	Alias          string
	AddedAt        time.Time // UTC
	LaunchOnly     bool      // only notify on the first receipt of each token
	SeenMints      []string  // append-only
	MinNativeSpend float64   // SOL; 0 disables the filter
}

// NewSubscriberConfig returns a default configuration using the given endpoints.
func NewSubscriberConfig(httpEndpoint, wsEndpoint string) *SubscriberConfig {
	return &SubscriberConfig{
		HTTPEndpoint: httpEndpoint,
		WSEndpoint:   wsEndpoint,
		Watches:      make(map[string]*WatchConfig),
	}
}

// EffectiveWSEndpoint returns the configured WS endpoint or the one inferred
// from the HTTP endpoint.
func (c *SubscriberConfig) EffectiveWSEndpoint() string {
	if c.WSEndpoint != "" {
		return c.WSEndpoint
	}
	return InferWSEndpoint(c.HTTPEndpoint)
}

// SilentBadge returns the silent-mode badge.
func (c *SubscriberConfig) SilentBadge() string {
	if c.Silent {
		return BadgeSilentOn
	}
	return BadgeSilentOff
}

// Clone returns a deep copy.
func (c *SubscriberConfig) Clone() *SubscriberConfig {
	cp := *c
	cp.Watches = make(map[string]*WatchConfig, len(c.Watches))
	for addr, w := range c.Watches {
		cp.Watches[addr] = w.Clone()
	}
	return &cp
}

// SortedAddresses returns watched addresses ordered by (alias, lowercase address).
func (c *SubscriberConfig) SortedAddresses() []string {
	addrs := make([]string, 0, len(c.Watches))
	for addr := range c.Watches {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b string) int {
		if r := strings.Compare(c.Watches[a].Alias, c.Watches[b].Alias); r != 0 {
			return r
		}
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return addrs
}

// Clone returns a deep copy.
func (w *WatchConfig) Clone() *WatchConfig {
	cp := *w
	cp.SeenMints = slices.Clone(w.SeenMints)
	if cp.SeenMints == nil {
		cp.SeenMints = []string{}
	}
	return &cp
}

// HasSeen reports whether mint was already notified as new for this wallet.
func (w *WatchConfig) HasSeen(mint string) bool {
	return slices.Contains(w.SeenMints, mint)
}

// DisplayName returns the alias, or the abbreviated address when no alias is set.
func (w *WatchConfig) DisplayName(addr string) string {
	if alias := strings.TrimSpace(w.Alias); alias != "" {
		return alias
	}
	return ShortAddress(addr)
}

// LaunchBadge returns the launch-only badge.
func (w *WatchConfig) LaunchBadge() string {
	if w.LaunchOnly {
		return BadgeLaunchOn
	}
	return BadgeLaunchOff
}
