// Package history keeps the per-token time series of consensus prices used
// for anomaly baselines and TWAP. Entries are append-only and evicted by age.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/speraxos/sweepguard/internal/domain"
)

const keyPrefix = "history:"

// Store is a redis-backed, size-bounded price history. Concurrent decision
// calls on different tokens append independently; no record is ever mutated
// in place.
type Store struct {
	client redis.Cmdable
	maxAge time.Duration
}

// NewStore creates the history store. maxAge bounds how long samples live.
func NewStore(client redis.Cmdable, maxAge time.Duration) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if maxAge <= 0 {
		return nil, errors.New("history max age must be positive")
	}
	return &Store{client: client, maxAge: maxAge}, nil
}

// Append records one observation and evicts samples older than maxAge.
func (s *Store) Append(ctx context.Context, token domain.TokenRef, point domain.PricePoint) error {
	payload, err := json.Marshal(point)
	if err != nil {
		return errors.Wrap(err, "marshal history point")
	}

	key := historyKey(token)
	cutoff := point.ObservedAt.Add(-s.maxAge).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(point.ObservedAt.UnixMilli()),
		Member: string(payload),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.Expire(ctx, key, s.maxAge*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "append history point")
	}
	return nil
}

// Samples returns the observations within the window ending now, oldest first.
func (s *Store) Samples(ctx context.Context, token domain.TokenRef, window time.Duration) ([]domain.PricePoint, error) {
	if window <= 0 || window > s.maxAge {
		window = s.maxAge
	}
	min := fmt.Sprintf("%d", time.Now().Add(-window).UnixMilli())

	raw, err := s.client.ZRangeByScore(ctx, historyKey(token), &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read history samples")
	}

	points := make([]domain.PricePoint, 0, len(raw))
	for _, member := range raw {
		var p domain.PricePoint
		if err := json.Unmarshal([]byte(member), &p); err != nil {
			continue // skip unreadable legacy entries
		}
		points = append(points, p)
	}
	return points, nil
}

func historyKey(token domain.TokenRef) string {
	return keyPrefix + token.Key()
}
