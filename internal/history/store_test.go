package history

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speraxos/sweepguard/internal/domain"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestStore(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	token := domain.TokenRef{Chain: "ethereum", Address: "0xAbC0000000000000000000000000000000000001"}

	store, err := NewStore(client, 24*time.Hour)
	require.NoError(t, err)

	t.Run("append and read back in order", func(t *testing.T) {
		now := time.Now()
		for i, price := range []int64{100, 101, 102} {
			require.NoError(t, store.Append(ctx, token, domain.PricePoint{
				Price:      decimal.NewFromInt(price),
				ObservedAt: now.Add(time.Duration(i-3) * time.Minute),
			}))
		}

		points, err := store.Samples(ctx, token, time.Hour)
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, "100", points[0].Price.String())
		assert.Equal(t, "102", points[2].Price.String())
	})

	t.Run("window excludes old samples", func(t *testing.T) {
		old := domain.TokenRef{Chain: "ethereum", Address: "0xAbC0000000000000000000000000000000000002"}
		now := time.Now()
		require.NoError(t, store.Append(ctx, old, domain.PricePoint{
			Price:      decimal.NewFromInt(50),
			ObservedAt: now.Add(-2 * time.Hour),
		}))
		require.NoError(t, store.Append(ctx, old, domain.PricePoint{
			Price:      decimal.NewFromInt(51),
			ObservedAt: now,
		}))

		points, err := store.Samples(ctx, old, time.Hour)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "51", points[0].Price.String())
	})

	t.Run("unknown token yields no samples", func(t *testing.T) {
		points, err := store.Samples(ctx, domain.TokenRef{Chain: "bsc", Address: "0xdead"}, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, points)
	})
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(nil, time.Hour)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()
	_, err = NewStore(client, 0)
	assert.Error(t, err)
}
