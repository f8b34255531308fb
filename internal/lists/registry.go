// Package lists holds whitelist/blacklist/graylist membership for tokens.
// Entries are externally administered, long-lived and read-mostly; the engine
// consults them before doing any expensive work.
package lists

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/speraxos/sweepguard/internal/domain"
)

const (
	indexKey    = "lists:index"
	valuePrefix = "lists:"
)

// ErrNotFound means the token has no list entry.
var ErrNotFound = errors.New("list entry not found")

// Registry is a redis-backed list store.
type Registry struct {
	client redis.Cmdable
}

// NewRegistry creates the registry.
func NewRegistry(client redis.Cmdable) (*Registry, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	return &Registry{client: client}, nil
}

// Upsert writes or replaces the entry for a token and stamps SetAt.
func (r *Registry) Upsert(ctx context.Context, entry domain.ListEntry) (*domain.ListEntry, error) {
	if err := entry.Token.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseListStatus(string(entry.Status)); err != nil {
		return nil, err
	}

	entry.SetAt = time.Now().UTC()
	b, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.Wrap(err, "marshal list entry")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, entryKey(entry.Token), b, 0)
	pipe.SAdd(ctx, indexKey, entry.Token.Key())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "upsert list entry")
	}

	return &entry, nil
}

// Get returns the entry for a token, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, token domain.TokenRef) (*domain.ListEntry, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}

	val, err := r.client.Get(ctx, entryKey(token)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get list entry")
	}

	var entry domain.ListEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, errors.Wrap(err, "unmarshal list entry")
	}
	return &entry, nil
}

// List returns every entry in the registry.
func (r *Registry) List(ctx context.Context) ([]*domain.ListEntry, error) {
	keys, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list registry index")
	}
	if len(keys) == 0 {
		return []*domain.ListEntry{}, nil
	}

	redisKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		redisKeys = append(redisKeys, valuePrefix+k)
	}

	vals, err := r.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget list entries")
	}

	out := make([]*domain.ListEntry, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entry domain.ListEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}

// Delete removes the entry for a token.
func (r *Registry) Delete(ctx context.Context, token domain.TokenRef) error {
	if err := token.Validate(); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, entryKey(token))
	pipe.SRem(ctx, indexKey, token.Key())
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "delete list entry")
	}
	return nil
}

func entryKey(token domain.TokenRef) string {
	return valuePrefix + token.Key()
}
