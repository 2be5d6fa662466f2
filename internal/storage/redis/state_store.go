package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"solana-wallet-tracker/internal/storage"
)

// DefaultStateKey is the hash holding one JSON document per subscriber.
const DefaultStateKey = "tracker:state"

// StateStore implements storage.StateStore on a single Redis hash.
// Field = subscriber id, value = the subscriber's JSON document.
type StateStore struct {
	rdb *redis.Client
	key string
}

// NewStateStore creates a Redis-backed state store. Empty key uses DefaultStateKey.
func NewStateStore(client *Client, key string) *StateStore {
	if key == "" {
		key = DefaultStateKey
	}
	return &StateStore{rdb: client.rdb, key: key}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Load reads every subscriber from the hash.
func (s *StateStore) Load(ctx context.Context) (storage.Snapshot, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}

	snap := make(storage.Snapshot, len(fields))
	for id, raw := range fields {
		cfg, err := storage.DecodeSubscriber([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode subscriber %s: %w", id, err)
		}
		snap[id] = cfg
	}
	return snap, nil
}

// Save replaces the hash atomically with the contents of snap.
func (s *StateStore) Save(ctx context.Context, snap storage.Snapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	values := make(map[string]interface{}, len(snap))
	for id, cfg := range snap {
		if cfg == nil {
			continue
		}
		data, err := storage.EncodeSubscriber(cfg)
		if err != nil {
			return fmt.Errorf("encode subscriber %s: %w", id, err)
		}
		values[id] = data
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state to %s: %w", s.key, err)
	}
	return nil
}
