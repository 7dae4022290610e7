// Package redis keeps per-session pricing state in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/freshcart/internal/domain/pricing"
)

// NewClient connects to the Redis server at url and checks it responds.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

const selectionPrefix = "freshcart:selection:"

var _ pricing.SelectionStore = (*SelectionStore)(nil)

// SelectionStore persists campaign selections with a sliding TTL so
// abandoned sessions expire.
type SelectionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewSelectionStore returns a SelectionStore. A zero ttl keeps selections
// until cleared.
func NewSelectionStore(client redis.Cmdable, ttl time.Duration) *SelectionStore {
	return &SelectionStore{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return selectionPrefix + sessionID
}

func (s *SelectionStore) Get(ctx context.Context, sessionID string) (string, error) {
	var (
		id  string
		err error
	)
	if s.ttl > 0 {
		id, err = s.client.GetEx(ctx, key(sessionID), s.ttl).Result()
	} else {
		id, err = s.client.Get(ctx, key(sessionID)).Result()
	}
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get selection")
	}
	return id, nil
}

func (s *SelectionStore) Set(ctx context.Context, sessionID, campaignID string) error {
	if err := s.client.Set(ctx, key(sessionID), campaignID, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set selection")
	}
	return nil
}

func (s *SelectionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "clear selection")
	}
	return nil
}
