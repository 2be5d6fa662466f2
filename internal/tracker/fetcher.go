// Package tracker connects the log stream to classification and delivery.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"solana-wallet-tracker/internal/cache"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/solana"
)

// Fetch defaults.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultCacheCapacity = 4096
	DefaultCacheTTL      = 2 * time.Minute
)

// ClientFactory builds an RPC client for an endpoint.
type ClientFactory func(endpoint string) solana.RPCClient

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	NewClient     ClientFactory // Default: single-attempt solana.HTTPClient
	Timeout       time.Duration // Default: 30s
	CacheCapacity int           // Default: 4096
	CacheTTL      time.Duration // Default: 2m
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// Fetcher resolves transaction signatures. Each lookup is a single RPC call
// without retry; results are cached per signature and concurrent lookups
// of the same signature share one call.
type Fetcher struct {
	newClient ClientFactory
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[string]solana.RPCClient

	cache *cache.LRU[string, *solana.Transaction]
	group singleflight.Group
}

// NewFetcher creates a transaction fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		newClient: opts.NewClient,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		clients:   make(map[string]solana.RPCClient),
	}
	if f.timeout == 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "fetcher")
	if f.newClient == nil {
		f.newClient = func(endpoint string) solana.RPCClient {
			return solana.NewHTTPClient(endpoint,
				solana.WithMaxRetries(0),
				solana.WithTimeout(f.timeout),
				solana.WithObserver(f.metrics.RecordRPC),
			)
		}
	}

	capacity := opts.CacheCapacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	f.cache = cache.NewLRU[string, *solana.Transaction](capacity, ttl)
	return f
}

// Fetch returns the transaction for signature, or false when it could not
// be retrieved. Failures are logged and never retried.
func (f *Fetcher) Fetch(ctx context.Context, endpoint, signature string) (*solana.Transaction, bool) {
	if signature == "" {
		return nil, false
	}
	if tx, ok := f.cache.Get(signature); ok {
		f.metrics.RecordFetch("cached")
		return tx, true
	}

	v, err, _ := f.group.Do(signature, func() (interface{}, error) {
		if tx, ok := f.cache.Get(signature); ok {
			return tx, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		tx, err := f.client(endpoint).GetTransaction(callCtx, signature)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			f.cache.Put(signature, tx)
		}
		return tx, nil
	})
	if err != nil {
		f.metrics.RecordFetch("error")
		f.logger.Debug("transaction fetch failed", "signature", signature, "endpoint", endpoint, "error", err)
		return nil, false
	}

	tx, _ := v.(*solana.Transaction)
	if tx == nil {
		f.metrics.RecordFetch("absent")
		f.logger.Debug("transaction not found", "signature", signature)
		return nil, false
	}
	f.metrics.RecordFetch("ok")
	return tx, true
}

func (f *Fetcher) client(endpoint string) solana.RPCClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[endpoint]
	if !ok {
		c = f.newClient(endpoint)
		f.clients[endpoint] = c
	}
	return c
}
