package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	URL       string        `envconfig:"URL" split_words:"true" default:"redis://localhost:6379"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"storefront:session:"`
	TTL       time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

// RedisStore persists snapshots over the native Redis protocol.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opt), cfg.KeyPrefix, cfg.TTL), nil
}

func NewRedisStoreWithClient(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Ping checks connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeSnapshot(raw)
}

func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := prepareSave(snap); err != nil {
		return err
	}
	key, err := redisKey(s.keyPrefix, snap.SessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
