package metadata

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TokenList is a bulk metadata source used by Warm.
type TokenList interface {
	Load(ctx context.Context) ([]domain.TokenMetadata, error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore adds a persistent cache consulted after memory.
func WithStore(store storage.TokenMetadataStore) ResolverOption {
	return func(r *Resolver) { r.store = store }
}

// WithProviders sets the per-mint providers, tried in order.
func WithProviders(providers ...Provider) ResolverOption {
	return func(r *Resolver) { r.providers = providers }
}

// WithTokenList sets the bulk list loaded by Warm.
func WithTokenList(list TokenList) ResolverOption {
	return func(r *Resolver) { r.list = list }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithCacheObserver registers a callback invoked on every memory lookup.
func WithCacheObserver(fn func(hit bool)) ResolverOption {
	return func(r *Resolver) { r.observe = fn }
}

// Resolver maps mints to display metadata.
//
// The memory cache only grows and has no expiry: token metadata is
// effectively immutable once minted. Misses are cached as empty entries.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]domain.TokenMetadata

	warmMu sync.Mutex
	warmed bool

	list      TokenList
	store     storage.TokenMetadataStore
	providers []Provider
	group     singleflight.Group
	logger    *slog.Logger
	observe   func(hit bool)
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:  make(map[string]domain.TokenMetadata),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "metadata")
	return r
}

// Warm loads the bulk token list once. It is a no-op after the first
// success; a failure is logged and the next call tries again.
func (r *Resolver) Warm(ctx context.Context) {
	if r.list == nil {
		return
	}

	r.warmMu.Lock()
	defer r.warmMu.Unlock()
	if r.warmed {
		return
	}

	tokens, err := r.list.Load(ctx)
	if err != nil {
		r.logger.Warn("token list load failed", "error", err)
		return
	}

	r.mu.Lock()
	for _, t := range tokens {
		if _, ok := r.cache[t.Mint]; !ok {
			r.cache[t.Mint] = t
		}
	}
	size := len(r.cache)
	r.mu.Unlock()

	r.warmed = true
	r.logger.Info("token list loaded", "tokens", len(tokens), "cached", size)
}

// Resolve returns metadata for mint. It never fails: when nothing is known
// an empty placeholder is returned and cached.
func (r *Resolver) Resolve(ctx context.Context, mint string) domain.TokenMetadata {
	if m, ok := r.cached(mint); ok {
		return m
	}

	v, _, _ := r.group.Do(mint, func() (interface{}, error) {
		if m, ok := r.peek(mint); ok {
			return m, nil
		}
		m := r.lookup(ctx, mint)
		r.mu.Lock()
		r.cache[mint] = m
		r.mu.Unlock()
		return m, nil
	})
	return v.(domain.TokenMetadata)
}

// Len returns the number of cached mints.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(mint string) (domain.TokenMetadata, bool) {
	m, ok := r.peek(mint)
	if r.observe != nil {
		r.observe(ok)
	}
	return m, ok
}

func (r *Resolver) peek(mint string) (domain.TokenMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[mint]
	return m, ok
}

func (r *Resolver) lookup(ctx context.Context, mint string) domain.TokenMetadata {
	if r.store != nil {
		m, err := r.store.GetByMint(ctx, mint)
		switch {
		case err == nil:
			return *m
		case !errors.Is(err, storage.ErrNotFound):
			r.logger.Warn("metadata store read failed", "mint", mint, "error", err)
		}
	}

	for _, p := range r.providers {
		m, err := p.Lookup(ctx, mint)
		if err != nil {
			r.logger.Warn("metadata provider failed", "provider", p.Name(), "mint", mint, "error", err)
			continue
		}
		if m == nil {
			continue
		}
		m.Mint = mint
		if r.store != nil {
			if err := r.store.Upsert(ctx, m); err != nil {
				r.logger.Warn("metadata store write failed", "mint", mint, "error", err)
			}
		}
		return *m
	}

	return domain.TokenMetadata{Mint: mint}
}
