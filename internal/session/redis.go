package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "sitelog:session:"
	revokedPrefix = "sitelog:revoked:"
)

// RedisCache shares sessions between server instances. Reads extend the
// entry's TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// DialRedis connects to redisURL and checks the connection.
func DialRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisCache(client, ttl), nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context, sid string) (CurrentUser, error) {
	key := keyPrefix + sid
	pipe := c.client.TxPipeline()
	revoked := pipe.Exists(ctx, revokedPrefix+sid)
	get := pipe.Get(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return CurrentUser{}, fmt.Errorf("load session: %w", err)
	}
	if revoked.Val() > 0 {
		return CurrentUser{}, ErrRevoked
	}

	data, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return CurrentUser{}, ErrNoSession
	}
	if err != nil {
		return CurrentUser{}, fmt.Errorf("load session: %w", err)
	}
	var u CurrentUser
	if err := json.Unmarshal(data, &u); err != nil {
		return CurrentUser{}, fmt.Errorf("decode session: %w", err)
	}
	return u, nil
}

func (c *RedisCache) Save(ctx context.Context, u CurrentUser) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+u.SessionID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context, sid string) error {
	if err := c.client.Del(ctx, keyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Revoke deletes the session and leaves a marker that outlives it by ttl.
func (c *RedisCache) Revoke(ctx context.Context, sid string, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keyPrefix+sid)
	pipe.Set(ctx, revokedPrefix+sid, "1", ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
