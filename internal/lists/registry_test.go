package lists

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
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

func TestRegistry(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	token := domain.TokenRef{Chain: "ethereum", Address: "0xAbC0000000000000000000000000000000000001"}

	registry, err := NewRegistry(client)
	require.NoError(t, err)

	t.Run("missing entry returns ErrNotFound", func(t *testing.T) {
		_, err := registry.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert stamps SetAt and round-trips", func(t *testing.T) {
		saved, err := registry.Upsert(ctx, domain.ListEntry{
			Token:  token,
			Status: domain.ListBlacklist,
			Reason: "known scam",
			SetBy:  "ops",
		})
		require.NoError(t, err)
		assert.False(t, saved.SetAt.IsZero())

		got, err := registry.Get(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, domain.ListBlacklist, got.Status)
		assert.Equal(t, "known scam", got.Reason)
	})

	t.Run("upsert replaces the previous status", func(t *testing.T) {
		_, err := registry.Upsert(ctx, domain.ListEntry{
			Token:  token,
			Status: domain.ListGraylist,
		})
		require.NoError(t, err)

		got, err := registry.Get(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, domain.ListGraylist, got.Status)

		entries, err := registry.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("list returns every entry", func(t *testing.T) {
		other := domain.TokenRef{Chain: "bsc", Address: "0xAbC0000000000000000000000000000000000002"}
		_, err := registry.Upsert(ctx, domain.ListEntry{Token: other, Status: domain.ListWhitelist})
		require.NoError(t, err)

		entries, err := registry.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("delete removes entry and index membership", func(t *testing.T) {
		require.NoError(t, registry.Delete(ctx, token))

		_, err := registry.Get(ctx, token)
		assert.ErrorIs(t, err, ErrNotFound)

		entries, err := registry.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		_, err := registry.Upsert(ctx, domain.ListEntry{
			Token:  token,
			Status: domain.ListStatus("banlist"),
		})
		assert.Error(t, err)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		_, err := registry.Upsert(ctx, domain.ListEntry{Status: domain.ListWhitelist})
		assert.Error(t, err)
	})
}
