package consensus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/speraxos/sweepguard/internal/domain"
)

const cachePrefix = "consensus:"

// RedisCache holds recent consensus prices under a short TTL to absorb
// bursts of decisions for the same token.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache creates the cache. ttl is expected to be tens of seconds.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the cached consensus for a token, or (nil, nil) on a miss.
func (c *RedisCache) Get(ctx context.Context, token domain.TokenRef) (*domain.ConsensusPrice, error) {
	val, err := c.client.Get(ctx, cachePrefix+token.Key()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cached consensus")
	}

	var cp domain.ConsensusPrice
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached consensus")
	}
	return &cp, nil
}

// Put stores the consensus under the configured TTL.
func (c *RedisCache) Put(ctx context.Context, cp domain.ConsensusPrice) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, "marshal consensus")
	}
	if err := c.client.Set(ctx, cachePrefix+cp.Token.Key(), b, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "cache consensus")
	}
	return nil
}
