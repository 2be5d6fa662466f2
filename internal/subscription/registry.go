// Package subscription owns the in-memory subscriber map and its persistence.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// Defaults are the endpoints given to subscribers created lazily.
type Defaults struct {
	HTTPEndpoint string
	WSEndpoint   string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithPersistObserver registers a callback invoked after every persist attempt.
func WithPersistObserver(fn func(d time.Duration, err error)) Option {
	return func(r *Registry) { r.observe = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.nowFn = now }
}

// Registry is the concurrency-safe owner of all subscriber configurations.
// Every mutation is persisted through the StateStore before the call returns.
// Persist failures are logged and never surface as command errors.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*domain.SubscriberConfig

	saveMu sync.Mutex // serializes persists
	store  storage.StateStore

	defaults Defaults
	changes  chan struct{}
	logger   *slog.Logger
	observe  func(d time.Duration, err error)
	nowFn    func() time.Time
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store storage.StateStore, defaults Defaults, opts ...Option) *Registry {
	if defaults.HTTPEndpoint == "" {
		defaults.HTTPEndpoint = domain.DefaultHTTPEndpoint
	}
	r := &Registry{
		subs:     make(map[string]*domain.SubscriberConfig),
		store:    store,
		defaults: defaults,
		changes:  make(chan struct{}, 1),
		logger:   slog.Default(),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "subscription")
	return r
}

// Load replaces the in-memory state with the stored snapshot and fills
// defaults for missing optional fields.
func (r *Registry) Load(ctx context.Context) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load subscription state: %w", err)
	}

	now := r.nowFn().UTC()
	watches := 0
	for id, cfg := range snap {
		if cfg == nil {
			cfg = domain.NewSubscriberConfig("", "")
			cfg.WSEndpointUnset = true
			snap[id] = cfg
		}
		if cfg.HTTPEndpoint == "" {
			cfg.HTTPEndpoint = r.defaults.HTTPEndpoint
		}
		if cfg.WSEndpointUnset {
			cfg.WSEndpoint = r.defaults.WSEndpoint
			cfg.WSEndpointUnset = false
		}
		if cfg.Watches == nil {
			cfg.Watches = make(map[string]*domain.WatchConfig)
		}
		for addr, w := range cfg.Watches {
			if w == nil {
				w = &domain.WatchConfig{}
				cfg.Watches[addr] = w
			}
			if w.AddedAt.IsZero() {
				w.AddedAt = now
			}
			if w.SeenMints == nil {
				w.SeenMints = []string{}
			}
			if w.MinNativeSpend < 0 || math.IsNaN(w.MinNativeSpend) || math.IsInf(w.MinNativeSpend, 0) {
				w.MinNativeSpend = 0
			}
			watches++
		}
	}

	r.mu.Lock()
	r.subs = map[string]*domain.SubscriberConfig(snap)
	r.mu.Unlock()

	r.logger.Info("subscription state loaded", "subscribers", len(snap), "watches", watches)
	r.notify()
	return nil
}

// Changes returns a coalescing signal fired after any mutation that may
// alter the watched-address union or the selected endpoints.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Get returns a copy of the subscriber's configuration, creating and
// persisting the default one if absent.
func (r *Registry) Get(ctx context.Context, id string) domain.SubscriberConfig {
	r.mu.Lock()
	cfg, created := r.ensureLocked(id)
	cp := cfg.Clone()
	r.mu.Unlock()

	if created {
		r.persist(ctx)
		r.notify()
	}
	return *cp
}

// ensureLocked returns the subscriber, creating it with defaults. r.mu must be held.
func (r *Registry) ensureLocked(id string) (*domain.SubscriberConfig, bool) {
	if cfg, ok := r.subs[id]; ok {
		return cfg, false
	}
	cfg := domain.NewSubscriberConfig(r.defaults.HTTPEndpoint, r.defaults.WSEndpoint)
	r.subs[id] = cfg
	return cfg, true
}

// WatchResult describes the outcome of Watch.
type WatchResult struct {
	Address     string
	DisplayName string
	Link        string
	Created     bool // false when an existing watch was updated
	LaunchBadge string
	SilentBadge string
}

// Watch adds address to the subscriber's watch list. Re-watching keeps
// addedAt and seenMints and only replaces a non-empty alias.
func (r *Registry) Watch(ctx context.Context, id, address, alias string) (WatchResult, error) {
	address = strings.TrimSpace(address)
	if !domain.IsValidAddress(address) {
		return WatchResult{}, ErrInvalidAddress
	}
	alias = strings.TrimSpace(alias)

	r.mu.Lock()
	cfg, _ := r.ensureLocked(id)
	w, exists := cfg.Watches[address]
	if !exists {
		w = &domain.WatchConfig{
			Alias:     alias,
			AddedAt:   r.nowFn().UTC(),
			SeenMints: []string{},
		}
		cfg.Watches[address] = w
	} else if alias != "" {
		w.Alias = alias
	}
	res := WatchResult{
		Address:     address,
		DisplayName: w.DisplayName(address),
		Link:        domain.ExplorerAddressURL(address),
		Created:     !exists,
		LaunchBadge: w.LaunchBadge(),
		SilentBadge: cfg.SilentBadge(),
	}
	r.mu.Unlock()

	r.persist(ctx)
	r.notify()
	r.logger.Info("watch added", "subscriber", id, "address", address, "created", res.Created)
	return res, nil
}

// Unwatch removes address from the subscriber's watch list and returns the
// display name it had.
func (r *Registry) Unwatch(ctx context.Context, id, address string) (string, error) {
	address = strings.TrimSpace(address)

	r.mu.Lock()
	cfg, created := r.ensureLocked(id)
	w, ok := cfg.Watches[address]
	if !ok {
		r.mu.Unlock()
		if created {
			r.persist(ctx)
		}
		return "", ErrNotWatched
	}
	name := w.DisplayName(address)
	delete(cfg.Watches, address)
	r.mu.Unlock()

	r.persist(ctx)
	r.notify()
	r.logger.Info("watch removed", "subscriber", id, "address", address)
	return name, nil
}

// UnwatchAll clears the subscriber's watch list and returns how many were removed.
func (r *Registry) UnwatchAll(ctx context.Context, id string) int {
	r.mu.Lock()
	cfg, _ := r.ensureLocked(id)
	n := len(cfg.Watches)
	cfg.Watches = make(map[string]*domain.WatchConfig)
	r.mu.Unlock()

	r.persist(ctx)
	r.notify()
	r.logger.Info("watches cleared", "subscriber", id, "count", n)
	return n
}

// ListEntry is one line of the compact listing.
type ListEntry struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	Link        string `json:"link"`
}

// DetailEntry is one line of the detailed listing.
type DetailEntry struct {
	Address        string    `json:"address"`
	Alias          string    `json:"alias"`
	DisplayName    string    `json:"display_name"`
	Link           string    `json:"link"`
	AddedAt        time.Time `json:"added_at"`
	LaunchOnly     bool      `json:"launch_only"`
	LaunchBadge    string    `json:"launch_badge"`
	MinNativeSpend float64   `json:"min_native_spend"`
}

// List returns the watched wallets ordered by (alias, lowercase address).
func (r *Registry) List(id string) []ListEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.subs[id]
	if !ok {
		return nil
	}
	out := make([]ListEntry, 0, len(cfg.Watches))
	for _, addr := range cfg.SortedAddresses() {
		out = append(out, ListEntry{
			Address:     addr,
			DisplayName: domain.ShortAddress(addr),
			Link:        domain.ExplorerAddressURL(addr),
		})
	}
	return out
}

// ListDetail returns the watched wallets with their settings, in List order.
func (r *Registry) ListDetail(id string) []DetailEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.subs[id]
	if !ok {
		return nil
	}
	out := make([]DetailEntry, 0, len(cfg.Watches))
	for _, addr := range cfg.SortedAddresses() {
		w := cfg.Watches[addr]
		out = append(out, DetailEntry{
			Address:        addr,
			Alias:          w.Alias,
			DisplayName:    w.DisplayName(addr),
			Link:           domain.ExplorerAddressURL(addr),
			AddedAt:        w.AddedAt,
			LaunchOnly:     w.LaunchOnly,
			LaunchBadge:    w.LaunchBadge(),
			MinNativeSpend: w.MinNativeSpend,
		})
	}
	return out
}

// SetHTTPEndpoint sets the subscriber's JSON-RPC endpoint.
func (r *Registry) SetHTTPEndpoint(ctx context.Context, id, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if !validEndpoint(endpoint, "http", "https") {
		return fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidEndpoint, endpoint)
	}

	r.mu.Lock()
	cfg, _ := r.ensureLocked(id)
	cfg.HTTPEndpoint = endpoint
	r.mu.Unlock()

	r.persist(ctx)
	r.notify()
	return nil
}

// SetWSEndpoint sets the subscriber's WebSocket endpoint. An empty value
// reverts to inferring it from the HTTP endpoint.
func (r *Registry) SetWSEndpoint(ctx context.Context, id, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" && !validEndpoint(endpoint, "ws", "wss") {
		return fmt.Errorf("%w: %q is not a ws(s) url", ErrInvalidEndpoint, endpoint)
	}

	r.mu.Lock()
	cfg, _ := r.ensureLocked(id)
	cfg.WSEndpoint = endpoint
	r.mu.Unlock()

	r.persist(ctx)
	r.notify()
	return nil
}

// Endpoints returns the subscriber's HTTP endpoint and effective WS endpoint.
func (r *Registry) Endpoints(ctx context.Context, id string) (httpEndpoint, wsEndpoint string) {
	cfg := r.Get(ctx, id)
	return cfg.HTTPEndpoint, cfg.EffectiveWSEndpoint()
}

// SetLaunchOnly toggles launch-only mode for a watched wallet.
func (r *Registry) SetLaunchOnly(ctx context.Context, id, address string, on bool) error {
	return r.updateWatch(ctx, id, address, func(w *domain.WatchConfig) {
		w.LaunchOnly = on
	})
}

// SetMinSpend sets the minimum native spend filter for a watched wallet.
func (r *Registry) SetMinSpend(ctx context.Context, id, address string, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return r.updateWatch(ctx, id, address, func(w *domain.WatchConfig) {
		w.MinNativeSpend = amount
	})
}

// SetSilent toggles silent delivery for the subscriber.
func (r *Registry) SetSilent(ctx context.Context, id string, on bool) error {
	r.mu.Lock()
	cfg, _ := r.ensureLocked(id)
	cfg.Silent = on
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

func (r *Registry) updateWatch(ctx context.Context, id, address string, fn func(*domain.WatchConfig)) error {
	address = strings.TrimSpace(address)
	if !domain.IsValidAddress(address) {
		return ErrInvalidAddress
	}

	r.mu.Lock()
	cfg, ok := r.subs[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotWatched
	}
	w, ok := cfg.Watches[address]
	if !ok {
		r.mu.Unlock()
		return ErrNotWatched
	}
	fn(w)
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

// MarkSeen appends mint to the watch's seen set. It is idempotent and a
// no-op when the watch no longer exists.
func (r *Registry) MarkSeen(ctx context.Context, id, owner, mint string) bool {
	if mint == "" {
		return false
	}

	r.mu.Lock()
	cfg, ok := r.subs[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	w, ok := cfg.Watches[owner]
	if !ok || w.HasSeen(mint) {
		r.mu.Unlock()
		return false
	}
	w.SeenMints = append(w.SeenMints, mint)
	r.mu.Unlock()

	r.persist(ctx)
	return true
}

// WatchedAddresses returns the sorted union of all watched addresses.
func (r *Registry) WatchedAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, cfg := range r.subs {
		for addr := range cfg.Watches {
			set[addr] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Target is one (subscriber, owner) pair matched by a log notification.
type Target struct {
	SubscriberID string
	Owner        string
	Silent       bool
	Watch        domain.WatchConfig // copy taken at match time
}

// Targets returns every (subscriber, owner) whose watch list contains one of
// the mentioned addresses, ordered by subscriber id then owner.
func (r *Registry) Targets(mentioned []string) []Target {
	if len(mentioned) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Target
	for _, id := range r.sortedIDsLocked() {
		cfg := r.subs[id]
		hit := make(map[string]struct{})
		for _, addr := range mentioned {
			if _, ok := cfg.Watches[addr]; ok {
				hit[addr] = struct{}{}
			}
		}
		owners := make([]string, 0, len(hit))
		for addr := range hit {
			owners = append(owners, addr)
		}
		sort.Strings(owners)
		for _, owner := range owners {
			out = append(out, Target{
				SubscriberID: id,
				Owner:        owner,
				Silent:       cfg.Silent,
				Watch:        *cfg.Watches[owner].Clone(),
			})
		}
	}
	return out
}

// StreamEndpoint selects the WebSocket endpoint for the shared log stream.
func (r *Registry) StreamEndpoint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.sortedIDsLocked()
	for _, id := range ids {
		if ws := r.subs[id].WSEndpoint; ws != "" {
			return ws
		}
	}
	if len(ids) > 0 {
		return domain.InferWSEndpoint(r.subs[ids[0]].HTTPEndpoint)
	}
	if r.defaults.WSEndpoint != "" {
		return r.defaults.WSEndpoint
	}
	return domain.InferWSEndpoint(r.defaults.HTTPEndpoint)
}

// FetchEndpoint selects the HTTP endpoint used for transaction lookups.
func (r *Registry) FetchEndpoint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.sortedIDsLocked() {
		if http := r.subs[id].HTTPEndpoint; http != "" {
			return http
		}
	}
	return r.defaults.HTTPEndpoint
}

// Snapshot returns a deep copy of the whole state.
func (r *Registry) Snapshot() storage.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return storage.Snapshot(r.subs).Clone()
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// persist writes the current snapshot. The snapshot is taken after saveMu is
// acquired so the last write always reflects the latest state.
func (r *Registry) persist(ctx context.Context) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	snap := r.Snapshot()
	start := time.Now()
	err := r.store.Save(context.WithoutCancel(ctx), snap)
	if r.observe != nil {
		r.observe(time.Since(start), err)
	}
	if err != nil {
		r.logger.Error("persist subscription state failed", "error", err)
	}
}

func validEndpoint(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return slices.Contains(schemes, strings.ToLower(u.Scheme))
}
