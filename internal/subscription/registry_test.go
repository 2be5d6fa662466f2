package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
	"solana-wallet-tracker/internal/storage/memory"
)

const (
	addrA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	addrB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	addrC = "So11111111111111111111111111111111111111112"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.StateStore) {
	t.Helper()
	store := memory.NewStateStore()
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	reg := NewRegistry(store, Defaults{HTTPEndpoint: "https://rpc.default"}, WithClock(func() time.Time { return fixed }))
	return reg, store
}

func TestRegistry_WatchPersists(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	res, err := reg.Watch(ctx, "chat1", addrA, "Whale")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Whale", res.DisplayName)
	assert.Equal(t, domain.ExplorerAddressURL(addrA), res.Link)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	w := snap["chat1"].Watches[addrA]
	require.NotNil(t, w)
	assert.Equal(t, "Whale", w.Alias)
	assert.False(t, w.LaunchOnly)
	assert.Zero(t, w.MinNativeSpend)
	assert.Empty(t, w.SeenMints)
	assert.Equal(t, "https://rpc.default", snap["chat1"].HTTPEndpoint)

	_, err = reg.Unwatch(ctx, "chat1", addrA)
	require.NoError(t, err)

	snap, _ = store.Load(ctx)
	assert.Empty(t, snap["chat1"].Watches)
}

func TestRegistry_WatchInvalidAddress(t *testing.T) {
	reg, store := newTestRegistry(t)

	_, err := reg.Watch(context.Background(), "chat1", "0OIl-not-base58", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, store.Saves())
	assert.Empty(t, reg.Snapshot())
}

func TestRegistry_RewatchKeepsState(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Watch(ctx, "chat1", addrA, "first")
	require.NoError(t, err)
	require.True(t, reg.MarkSeen(ctx, "chat1", addrA, "MintX"))
	before := reg.Snapshot()["chat1"].Watches[addrA].AddedAt

	res, err := reg.Watch(ctx, "chat1", "  "+addrA+" ", "second")
	require.NoError(t, err)
	assert.False(t, res.Created)

	w := reg.Snapshot()["chat1"].Watches[addrA]
	assert.Equal(t, "second", w.Alias)
	assert.Equal(t, []string{"MintX"}, w.SeenMints)
	assert.Equal(t, before, w.AddedAt)

	// Empty alias keeps the existing one.
	_, err = reg.Watch(ctx, "chat1", addrA, "")
	require.NoError(t, err)
	assert.Equal(t, "second", reg.Snapshot()["chat1"].Watches[addrA].Alias)
}

func TestRegistry_UnwatchNotWatched(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Unwatch(context.Background(), "chat1", addrA)
	assert.ErrorIs(t, err, ErrNotWatched)
}

func TestRegistry_UnwatchAll(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	_, _ = reg.Watch(ctx, "chat1", addrB, "")

	assert.Equal(t, 2, reg.UnwatchAll(ctx, "chat1"))
	assert.Equal(t, 0, reg.UnwatchAll(ctx, "chat1"))
	assert.Empty(t, reg.List("chat1"))
}

func TestRegistry_ListOrdering(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _ = reg.Watch(ctx, "chat1", addrA, "zed")
	_, _ = reg.Watch(ctx, "chat1", addrB, "")
	_, _ = reg.Watch(ctx, "chat1", addrC, "alpha")

	list := reg.List("chat1")
	require.Len(t, list, 3)
	// Empty alias sorts first, then by alias.
	assert.Equal(t, addrB, list[0].Address)
	assert.Equal(t, addrC, list[1].Address)
	assert.Equal(t, addrA, list[2].Address)
	assert.Equal(t, domain.ShortAddress(addrC), list[1].DisplayName)

	detail := reg.ListDetail("chat1")
	require.Len(t, detail, 3)
	assert.Equal(t, "alpha", detail[1].DisplayName)
	assert.Equal(t, domain.ShortAddress(addrB), detail[0].DisplayName)
	assert.Equal(t, domain.BadgeLaunchOff, detail[0].LaunchBadge)

	assert.Nil(t, reg.List("unknown"))
}

func TestRegistry_SetLaunchOnlyAndMinSpend(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	assert.ErrorIs(t, reg.SetLaunchOnly(ctx, "chat1", "bad", true), ErrInvalidAddress)
	assert.ErrorIs(t, reg.SetLaunchOnly(ctx, "chat1", addrA, true), ErrNotWatched)

	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	require.NoError(t, reg.SetLaunchOnly(ctx, "chat1", addrA, true))
	require.NoError(t, reg.SetMinSpend(ctx, "chat1", addrA, 0.25))

	assert.ErrorIs(t, reg.SetMinSpend(ctx, "chat1", addrA, -1), ErrInvalidAmount)
	assert.ErrorIs(t, reg.SetMinSpend(ctx, "chat1", addrB, 1), ErrNotWatched)

	w := reg.Snapshot()["chat1"].Watches[addrA]
	assert.True(t, w.LaunchOnly)
	assert.InDelta(t, 0.25, w.MinNativeSpend, 1e-12)
}

func TestRegistry_Endpoints(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	httpURL, wsURL := reg.Endpoints(ctx, "chat1")
	assert.Equal(t, "https://rpc.default", httpURL)
	assert.Equal(t, "wss://rpc.default", wsURL)

	assert.ErrorIs(t, reg.SetHTTPEndpoint(ctx, "chat1", "ftp://nope"), ErrInvalidEndpoint)
	assert.ErrorIs(t, reg.SetWSEndpoint(ctx, "chat1", "https://not-ws"), ErrInvalidEndpoint)

	require.NoError(t, reg.SetHTTPEndpoint(ctx, "chat1", "http://localhost:8899"))
	_, wsURL = reg.Endpoints(ctx, "chat1")
	assert.Equal(t, "ws://localhost:8899", wsURL)

	require.NoError(t, reg.SetWSEndpoint(ctx, "chat1", "wss://stream.example"))
	_, wsURL = reg.Endpoints(ctx, "chat1")
	assert.Equal(t, "wss://stream.example", wsURL)

	require.NoError(t, reg.SetWSEndpoint(ctx, "chat1", ""))
	_, wsURL = reg.Endpoints(ctx, "chat1")
	assert.Equal(t, "ws://localhost:8899", wsURL)
}

func TestRegistry_StreamAndFetchEndpoint(t *testing.T) {
	store := memory.NewStateStore()
	reg := NewRegistry(store, Defaults{HTTPEndpoint: "https://env.rpc", WSEndpoint: "wss://env.ws"})
	ctx := context.Background()

	assert.Equal(t, "wss://env.ws", reg.StreamEndpoint())
	assert.Equal(t, "https://env.rpc", reg.FetchEndpoint())

	// New subscribers inherit the env WS endpoint.
	require.NoError(t, reg.SetHTTPEndpoint(ctx, "b", "https://b.rpc"))
	require.NoError(t, reg.SetHTTPEndpoint(ctx, "a", "https://a.rpc"))
	assert.Equal(t, "wss://env.ws", reg.StreamEndpoint())
	assert.Equal(t, "https://a.rpc", reg.FetchEndpoint())

	require.NoError(t, reg.SetWSEndpoint(ctx, "b", "wss://b.ws"))
	assert.Equal(t, "wss://env.ws", reg.StreamEndpoint())

	require.NoError(t, reg.SetWSEndpoint(ctx, "a", ""))
	assert.Equal(t, "wss://b.ws", reg.StreamEndpoint())

	require.NoError(t, reg.SetWSEndpoint(ctx, "b", ""))
	assert.Equal(t, "wss://a.rpc", reg.StreamEndpoint())

	noEnv := NewRegistry(memory.NewStateStore(), Defaults{})
	assert.Equal(t, domain.DefaultWSEndpoint, noEnv.StreamEndpoint())
	assert.Equal(t, domain.DefaultHTTPEndpoint, noEnv.FetchEndpoint())
}

func TestRegistry_EnvWSEndpointSurvivesWatch(t *testing.T) {
	reg := NewRegistry(memory.NewStateStore(), Defaults{
		HTTPEndpoint: "https://env.rpc/?api-key=x",
		WSEndpoint:   "wss://env.ws/stream",
	})
	ctx := context.Background()

	require.Equal(t, "wss://env.ws/stream", reg.StreamEndpoint())

	_, err := reg.Watch(ctx, "chat1", addrA, "")
	require.NoError(t, err)

	assert.Equal(t, "wss://env.ws/stream", reg.Get(ctx, "chat1").WSEndpoint)
	assert.Equal(t, "wss://env.ws/stream", reg.StreamEndpoint())
}

func TestRegistry_LoadFillsMissingWSEndpoint(t *testing.T) {
	store := memory.NewStateStore()
	ctx := context.Background()

	missing := domain.NewSubscriberConfig("https://rpc.one", "")
	missing.WSEndpointUnset = true
	explicit := domain.NewSubscriberConfig("https://rpc.two", "")
	require.NoError(t, store.Save(ctx, storage.Snapshot{"missing": missing, "explicit": explicit}))

	reg := NewRegistry(store, Defaults{HTTPEndpoint: "https://env.rpc", WSEndpoint: "wss://env.ws"})
	require.NoError(t, reg.Load(ctx))

	got := reg.Get(ctx, "missing")
	assert.Equal(t, "wss://env.ws", got.WSEndpoint)
	assert.False(t, got.WSEndpointUnset)
	assert.Empty(t, reg.Get(ctx, "explicit").WSEndpoint)
}

func TestRegistry_MarkSeen(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	assert.False(t, reg.MarkSeen(ctx, "chat1", addrA, "MintX"))

	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	saves := store.Saves()
	assert.True(t, reg.MarkSeen(ctx, "chat1", addrA, "MintX"))
	assert.False(t, reg.MarkSeen(ctx, "chat1", addrA, "MintX"))
	assert.Equal(t, saves+1, store.Saves())

	snap, _ := store.Load(ctx)
	assert.Equal(t, []string{"MintX"}, snap["chat1"].Watches[addrA].SeenMints)

	// Removing and re-adding the watch clears the seen set.
	_, _ = reg.Unwatch(ctx, "chat1", addrA)
	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	assert.Empty(t, reg.Snapshot()["chat1"].Watches[addrA].SeenMints)
}

func TestRegistry_TargetsAndWatchedAddresses(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _ = reg.Watch(ctx, "chat2", addrA, "")
	_, _ = reg.Watch(ctx, "chat1", addrB, "")
	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	require.NoError(t, reg.SetSilent(ctx, "chat2", true))

	assert.Equal(t, []string{addrA, addrB}, reg.WatchedAddresses())

	targets := reg.Targets([]string{addrA, addrC, addrA})
	require.Len(t, targets, 2)
	assert.Equal(t, "chat1", targets[0].SubscriberID)
	assert.Equal(t, addrA, targets[0].Owner)
	assert.False(t, targets[0].Silent)
	assert.Equal(t, "chat2", targets[1].SubscriberID)
	assert.True(t, targets[1].Silent)

	assert.Empty(t, reg.Targets(nil))
}

func TestRegistry_ChangesCoalesce(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _ = reg.Watch(ctx, "chat1", addrA, "")
	_, _ = reg.Watch(ctx, "chat1", addrB, "")

	select {
	case <-reg.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-reg.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestRegistry_LoadFillsDefaults(t *testing.T) {
	store := memory.NewStateStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, storage.Snapshot{
		"chat1": {Watches: map[string]*domain.WatchConfig{addrA: {Alias: "old"}}},
	}))

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := NewRegistry(store, Defaults{HTTPEndpoint: "https://rpc.default"}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, reg.Load(ctx))

	cfg := reg.Get(ctx, "chat1")
	assert.Equal(t, "https://rpc.default", cfg.HTTPEndpoint)
	w := cfg.Watches[addrA]
	require.NotNil(t, w)
	assert.Equal(t, fixed, w.AddedAt)
	assert.NotNil(t, w.SeenMints)
}

type failingStore struct {
	memory.StateStore
}

func (f *failingStore) Save(context.Context, storage.Snapshot) error {
	return errors.New("disk full")
}

func TestRegistry_PersistFailureIsNotFatal(t *testing.T) {
	var observed []error
	reg := NewRegistry(&failingStore{}, Defaults{}, WithPersistObserver(func(_ time.Duration, err error) {
		observed = append(observed, err)
	}))

	_, err := reg.Watch(context.Background(), "chat1", addrA, "")
	require.NoError(t, err)
	require.Len(t, observed, 1)
	assert.EqualError(t, observed[0], "disk full")
	assert.Contains(t, reg.Snapshot()["chat1"].Watches, addrA)
}
