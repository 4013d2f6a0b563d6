package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keys the watermark per player handle.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// NewRedisStoreFromURL dials Redis from a redis:// URL.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{rdb: redis.NewClient(opts)}, nil
}

func (s *RedisStore) key(username string) string {
	return "coach:watermark:" + strings.ToLower(strings.TrimSpace(username))
}

// PlayerStore binds the store to one player handle so it satisfies the
// Store interface.
func (s *RedisStore) PlayerStore(username string) Store {
	return &redisPlayerStore{store: s, username: username}
}

type redisPlayerStore struct {
	store    *RedisStore
	username string
}

func (p *redisPlayerStore) Load(ctx context.Context) (*Watermark, error) {
	raw, err := p.store.rdb.Get(ctx, p.store.key(p.username)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}
	var wm Watermark
	if err := json.Unmarshal(raw, &wm); err != nil {
		return nil, fmt.Errorf("decode watermark: %w", err)
	}
	return &wm, nil
}

func (p *redisPlayerStore) Save(ctx context.Context, wm Watermark) error {
	raw, err := json.Marshal(wm)
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	if err := p.store.rdb.Set(ctx, p.store.key(p.username), raw, 0).Err(); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
