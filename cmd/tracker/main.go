// Package main runs the wallet tracker: the shared log stream, the
// notification pipeline, the control API and the metrics server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"
	"golang.org/x/sync/errgroup"

	"solana-wallet-tracker/internal/api"
	"solana-wallet-tracker/internal/config"
	"solana-wallet-tracker/internal/metadata"
	"solana-wallet-tracker/internal/notify"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/solana"
	"solana-wallet-tracker/internal/storage/backend"
	"solana-wallet-tracker/internal/stream"
	"solana-wallet-tracker/internal/subscription"
	"solana-wallet-tracker/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override environment values
	flag.StringVar(&cfg.Solana.HTTPEndpoint, "rpc", cfg.Solana.HTTPEndpoint, "Default Solana RPC HTTP endpoint")
	flag.StringVar(&cfg.Solana.WSEndpoint, "ws", cfg.Solana.WSEndpoint, "Default Solana WebSocket endpoint (inferred when empty)")
	flag.StringVar(&cfg.Store.Backend, "store-backend", cfg.Store.Backend, "State backend: file, postgres, redis, memory")
	flag.StringVar(&cfg.Store.Path, "store", cfg.Store.Path, "State file path for the file backend")
	flag.StringVar(&cfg.Server.APIAddr, "api-addr", cfg.Server.APIAddr, "Control API address (empty disables)")
	flag.StringVar(&cfg.Server.MetricsAddr, "metrics-addr", cfg.Server.MetricsAddr, "Prometheus metrics HTTP address")
	flag.IntVar(&cfg.Stream.Workers, "workers", cfg.Stream.Workers, "Notification worker count")
	dryRun := flag.Bool("dry-run", false, "Log notifications instead of sending them")
	flag.BoolVar(&cfg.Log.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.Log.Debug || cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	app, err := newApp(ctx, cfg, *dryRun)
	if err != nil {
		slog.Error("Failed to initialize tracker", "error", err)
		cancel()
		os.Exit(1)
	}
	defer app.close()

	// Channel to signal completion
	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("Received signal, initiating graceful shutdown", "signal", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			slog.Warn("Received second signal, forcing immediate shutdown", "signal", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			slog.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = app.run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Tracker error", "error", err)
		app.close()
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

// app holds the wired components.
type app struct {
	cfg      *config.Config
	stores   *backend.Stores
	registry *subscription.Registry
	stream   *stream.Subscriber
	apiSrv   *http.Server
	metrics  *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app, error) {
	logger := slog.Default()
	m := observability.NewMetrics("wallet_tracker", nil)

	stores, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	registry := subscription.NewRegistry(stores.State, subscription.Defaults{
		HTTPEndpoint: cfg.Solana.HTTPEndpoint,
		WSEndpoint:   cfg.Solana.WSEndpoint,
	}, subscription.WithLogger(logger), subscription.WithPersistObserver(m.RecordPersist))
	if err := registry.Load(ctx); err != nil {
		stores.Close()
		return nil, err
	}

	resolver := newResolver(cfg, registry, stores, m, logger)

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Telegram.BotToken != "" && !dryRun {
		bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken)
		if err != nil {
			stores.Close()
			return nil, err
		}
		logger.Info("telegram bot connected", "username", bot.Self.UserName)
		sender = notify.NewTelegramSender(bot)
	} else {
		logger.Warn("no telegram bot configured, notifications are logged only")
	}

	pipeline := tracker.NewPipeline(tracker.PipelineOptions{
		Registry: registry,
		Fetcher:  tracker.NewFetcher(tracker.FetcherOptions{Metrics: m, Logger: logger}),
		Resolver: resolver,
		Dispatcher: notify.NewDispatcher(notify.DispatcherOptions{
			Sender:  sender,
			Seen:    registry,
			Journal: stores.Journal,
			Metrics: m,
			Logger:  logger,
		}),
		Metrics: m,
		Logger:  logger,
	})

	wsConfig := solana.DefaultWSConfig()
	sub := stream.NewSubscriber(stream.Options{
		Source:         registry,
		Dialer:         solana.NewDialer(&wsConfig),
		Handler:        stream.HandlerFunc(pipeline.Handle),
		Warmer:         resolver,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		Workers:        cfg.Stream.Workers,
		Metrics:        m,
		Logger:         logger,
	})

	a := &app{cfg: cfg, stores: stores, registry: registry, stream: sub}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	a.metrics = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	if cfg.Server.APIAddr != "" {
		a.apiSrv = &http.Server{
			Addr: cfg.Server.APIAddr,
			Handler: api.NewRouter(api.Options{
				Registry: registry,
				Journal:  stores.Journal,
				State:    func() string { return string(sub.State()) },
				Metrics:  observability.Handler(),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a, nil
}

func newResolver(cfg *config.Config, registry *subscription.Registry, stores *backend.Stores, m *observability.Metrics, logger *slog.Logger) *metadata.Resolver {
	httpClient := &http.Client{Timeout: 20 * time.Second}

	var providers []metadata.Provider
	if cfg.Metadata.HeliusAPIKey != "" {
		providers = append(providers, metadata.NewHeliusProvider(cfg.Metadata.HeliusAPIKey, cfg.Metadata.HeliusURL, httpClient))
	}
	if cfg.Metadata.OnChain {
		rpc := solana.NewHTTPClient(registry.FetchEndpoint(), solana.WithObserver(m.RecordRPC))
		providers = append(providers, metadata.NewOnChainProvider(rpc))
	}

	return metadata.NewResolver(
		metadata.WithStore(stores.Metadata),
		metadata.WithTokenList(metadata.NewJupiterSource(cfg.Metadata.TokenListURL, httpClient)),
		metadata.WithProviders(providers...),
		metadata.WithCacheObserver(m.RecordMetadataLookup),
		metadata.WithResolverLogger(logger),
	)
}

// run blocks until ctx is cancelled or a component fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.stream.Run(ctx)
	})

	for _, srv := range []*http.Server{a.metrics, a.apiSrv} {
		if srv == nil {
			continue
		}
		g.Go(func() error {
			slog.Info("Starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("Tracker started",
		"store", a.cfg.Store.Backend,
		"watched", len(a.registry.WatchedAddresses()),
		"stream_endpoint", a.registry.StreamEndpoint(),
	)
	return g.Wait()
}

func (a *app) close() {
	if a.stores != nil {
		a.stores.Close()
		a.stores = nil
	}
}
