package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"solana-wallet-tracker/internal/domain"
)

// subscriberDoc is the persisted JSON form of a SubscriberConfig.
type subscriberDoc struct {
	HTTPRPC string              `json:"http_rpc"`
	WSRPC   *string             `json:"ws_rpc,omitempty"`
	Silent  bool                `json:"silent"`
	Subs    map[string]watchDoc `json:"subs"`
}

// watchDoc is the persisted JSON form of a WatchConfig.
type watchDoc struct {
	Alias      string   `json:"alias"`
	AddedAt    string   `json:"added_at"`
	LaunchOnly bool     `json:"launchonly"`
	SeenMints  []string `json:"seen_mints"`
	MinSOL     float64  `json:"min_sol"`
}

// EncodeDocument renders a snapshot as the JSON state document.
func EncodeDocument(snap Snapshot) ([]byte, error) {
	doc := make(map[string]subscriberDoc, len(snap))
	for id, cfg := range snap {
		doc[id] = toDoc(cfg)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a JSON state document. Missing fields decode to
// zero values, except a missing ws_rpc which sets WSEndpointUnset.
func DecodeDocument(data []byte) (Snapshot, error) {
	var doc map[string]*subscriberDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal state document: %w", err)
	}
	snap := make(Snapshot, len(doc))
	for id, d := range doc {
		if d == nil {
			d = &subscriberDoc{}
		}
		snap[id] = fromDoc(d)
	}
	return snap, nil
}

// EncodeSubscriber renders one subscriber config as JSON.
func EncodeSubscriber(cfg *domain.SubscriberConfig) ([]byte, error) {
	return json.Marshal(toDoc(cfg))
}

// DecodeSubscriber parses one subscriber config.
func DecodeSubscriber(data []byte) (*domain.SubscriberConfig, error) {
	var d subscriberDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal subscriber: %w", err)
	}
	return fromDoc(&d), nil
}

func toDoc(cfg *domain.SubscriberConfig) subscriberDoc {
	d := subscriberDoc{
		HTTPRPC: cfg.HTTPEndpoint,
		Silent:  cfg.Silent,
		Subs:    make(map[string]watchDoc, len(cfg.Watches)),
	}
	if !cfg.WSEndpointUnset {
		ws := cfg.WSEndpoint
		d.WSRPC = &ws
	}
	for addr, w := range cfg.Watches {
		seen := w.SeenMints
		if seen == nil {
			seen = []string{}
		}
		var added string
		if !w.AddedAt.IsZero() {
			added = w.AddedAt.UTC().Format(time.RFC3339Nano)
		}
		d.Subs[addr] = watchDoc{
			Alias:      w.Alias,
			AddedAt:    added,
			LaunchOnly: w.LaunchOnly,
			SeenMints:  seen,
			MinSOL:     w.MinNativeSpend,
		}
	}
	return d
}

func fromDoc(d *subscriberDoc) *domain.SubscriberConfig {
	var ws string
	if d.WSRPC != nil {
		ws = *d.WSRPC
	}
	cfg := domain.NewSubscriberConfig(d.HTTPRPC, ws)
	cfg.WSEndpointUnset = d.WSRPC == nil
	cfg.Silent = d.Silent
	for addr, w := range d.Subs {
		// Unparseable timestamps are treated as missing.
		added, _ := time.Parse(time.RFC3339Nano, w.AddedAt)
		cfg.Watches[addr] = &domain.WatchConfig{
			Alias:          w.Alias,
			AddedAt:        added.UTC(),
			LaunchOnly:     w.LaunchOnly,
			SeenMints:      w.SeenMints,
			MinNativeSpend: w.MinSOL,
		}
	}
	return cfg
}
