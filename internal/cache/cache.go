package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "album-bracket:group:"
	defaultTTL = 10 * time.Minute
)

// BracketCache holds the serialized active bracket of a group.
type BracketCache interface {
	Get(ctx context.Context, groupID uuid.UUID) ([]byte, bool, error)
	Set(ctx context.Context, groupID uuid.UUID, value []byte) error
	Invalidate(ctx context.Context, groupID uuid.UUID) error
}

func groupKey(groupID uuid.UUID) string {
	return keyPrefix + groupID.String() + ":bracket"
}

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedis connects to the server at redisURL and pings it before returning.
func NewRedis(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{Client: client, TTL: defaultTTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, groupID uuid.UUID) ([]byte, bool, error) {
	val, err := c.Client.Get(ctx, groupKey(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, groupID uuid.UUID, value []byte) error {
	return c.Client.Set(ctx, groupKey(groupID), value, c.TTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	return c.DeleteByPrefix(ctx, keyPrefix+groupID.String())
}

func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.Client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.Client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// Nop is used when no redis server is configured. Every read is a miss.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, uuid.UUID, []byte) error         { return nil }
func (Nop) Invalidate(context.Context, uuid.UUID) error          { return nil }
