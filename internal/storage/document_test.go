package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
)

func TestDecodeDocument_LegacyRecord(t *testing.T) {
	// Older records may miss optional fields entirely.
	data := []byte(`{
		"12345": {
			"http_rpc": "https://rpc.example.com",
			"subs": {
				"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM": {
					"alias": "Whale",
					"added_at": "2024-03-01T10:20:30.123456+00:00"
				},
				"11111111111111111111111111111111": {}
			}
		},
		"-100200": null
	}`)

	snap, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Len(t, snap, 2)

	cfg := snap["12345"]
	assert.Equal(t, "https://rpc.example.com", cfg.HTTPEndpoint)
	assert.Empty(t, cfg.WSEndpoint)
	assert.True(t, cfg.WSEndpointUnset)
	assert.False(t, cfg.Silent)

	whale := cfg.Watches["9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"]
	require.NotNil(t, whale)
	assert.Equal(t, "Whale", whale.Alias)
	assert.Equal(t, 2024, whale.AddedAt.Year())
	assert.Equal(t, time.UTC, whale.AddedAt.Location())
	assert.Nil(t, whale.SeenMints)

	bare := cfg.Watches["11111111111111111111111111111111"]
	require.NotNil(t, bare)
	assert.True(t, bare.AddedAt.IsZero())

	assert.NotNil(t, snap["-100200"].Watches)
}

func TestEncodeDocument_RoundTripFields(t *testing.T) {
	added := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := domain.NewSubscriberConfig("https://rpc", "wss://ws")
	cfg.Silent = true
	cfg.Watches["addr1"] = &domain.WatchConfig{
		Alias:          "w",
		AddedAt:        added,
		LaunchOnly:     true,
		MinNativeSpend: 0.5,
	}

	data, err := EncodeDocument(Snapshot{"chat1": cfg})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"http_rpc": "https://rpc"`)
	assert.Contains(t, string(data), `"launchonly": true`)
	assert.Contains(t, string(data), `"seen_mints": []`)
	assert.Contains(t, string(data), `"min_sol": 0.5`)
	assert.Contains(t, string(data), `"added_at": "2025-01-02T03:04:05Z"`)

	snap, err := DecodeDocument(data)
	require.NoError(t, err)
	got := snap["chat1"]
	assert.True(t, got.Silent)
	assert.Equal(t, "wss://ws", got.WSEndpoint)
	assert.Equal(t, added, got.Watches["addr1"].AddedAt)
	assert.Equal(t, 0.5, got.Watches["addr1"].MinNativeSpend)
}

func TestDocument_WSEndpointKeyPresence(t *testing.T) {
	data := []byte(`{
		"explicit": {"http_rpc": "https://rpc", "ws_rpc": ""},
		"missing": {"http_rpc": "https://rpc"}
	}`)

	snap, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.False(t, snap["explicit"].WSEndpointUnset)
	assert.True(t, snap["missing"].WSEndpointUnset)

	// Re-encoding keeps the difference between "" and an absent key.
	out, err := EncodeDocument(snap)
	require.NoError(t, err)
	again, err := DecodeDocument(out)
	require.NoError(t, err)
	assert.False(t, again["explicit"].WSEndpointUnset)
	assert.True(t, again["missing"].WSEndpointUnset)
}

func TestDecodeDocument_Invalid(t *testing.T) {
	_, err := DecodeDocument([]byte("not json"))
	assert.Error(t, err)
}
