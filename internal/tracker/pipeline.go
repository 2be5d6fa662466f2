package tracker

import (
	"context"
	"log/slog"
	"time"

	"solana-wallet-tracker/internal/classifier"
	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/notify"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/stream"
	"solana-wallet-tracker/internal/subscription"
)

// MetadataResolver resolves token metadata. metadata.Resolver implements it.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) domain.TokenMetadata
}

// Dispatcher delivers rendered notifications. notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, d notify.Delivery) error
}

// PipelineOptions contains configuration for creating a Pipeline.
type PipelineOptions struct {
	Registry   *subscription.Registry
	Fetcher    *Fetcher
	Resolver   MetadataResolver
	Dispatcher Dispatcher
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Pipeline turns stream events into notifications: fetch, classify, filter,
// render and dispatch for every matching (subscriber, owner).
type Pipeline struct {
	registry   *subscription.Registry
	fetcher    *Fetcher
	resolver   MetadataResolver
	dispatcher Dispatcher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewPipeline creates a new pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:   opts.Registry,
		fetcher:    opts.Fetcher,
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "pipeline"),
	}
}

// Handle processes one stream event. Subscribers are evaluated
// independently; a failure for one never affects another.
func (p *Pipeline) Handle(ctx context.Context, ev stream.Event) {
	start := time.Now()
	defer func() { p.metrics.RecordHandle(time.Since(start)) }()

	targets := p.registry.Targets(ev.Mentions)
	if len(targets) == 0 {
		return
	}

	tx, ok := p.fetcher.Fetch(ctx, p.registry.FetchEndpoint(), ev.Signature)
	if !ok {
		return
	}

	for _, t := range targets {
		d := classifier.Classify(t.Owner, tx, t.Watch)
		if d == nil {
			continue
		}
		p.metrics.RecordDecision(string(d.Category))

		if v := classifier.Filter(d, t.Watch); !v.Send {
			p.metrics.RecordSuppressed(v.Reason)
			p.logger.Debug("notification suppressed",
				"subscriber", t.SubscriberID, "owner", t.Owner, "signature", d.Signature, "reason", v.Reason)
			continue
		}

		var meta domain.TokenMetadata
		if d.TargetMint != "" && p.resolver != nil {
			meta = p.resolver.Resolve(ctx, d.TargetMint)
		}

		err := p.dispatcher.Dispatch(ctx, notify.Delivery{
			SubscriberID: t.SubscriberID,
			Owner:        t.Owner,
			Silent:       t.Silent,
			Decision:     d,
			Text:         classifier.Render(d, meta),
			ImageURL:     classifier.ImageURL(d, meta),
		})
		if err != nil {
			p.logger.Warn("notification dropped",
				"subscriber", t.SubscriberID, "owner", t.Owner, "signature", d.Signature, "error", err)
		}
	}
}
