package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Keys are written as-is, so
// the layout is shared with any other client of the same database.
type Redis struct {
	client *redis.Client
}

func NewRedis(conn Connection) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:     conn.Addr(),
		Password: conn.Password,
		DB:       conn.DB,
	}))
}

func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *Redis) ListPush(ctx context.Context, list, value string) (int64, error) {
	return s.client.LPush(ctx, list, value).Result()
}

func (s *Redis) ListRange(ctx context.Context, list string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, list, start, stop).Result()
}

func (s *Redis) ListTrim(ctx context.Context, list string, start, stop int64) error {
	return s.client.LTrim(ctx, list, start, stop).Err()
}
