package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "agromarket"

// NewRedisClient parses the url and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type RedisOpener struct {
	Client   *redis.Client
	TTL      time.Duration
	Visitors VisitorCookie
}

func (o *RedisOpener) Open(w http.ResponseWriter, r *http.Request) (Store, error) {
	return &RedisStore{Client: o.Client, TTL: o.TTL, VisitorID: o.Visitors.Ensure(w, r)}, nil
}

// RedisStore keeps each value under agromarket:<visitor>:<key>. Writes
// refresh the TTL; a zero TTL keeps values forever.
type RedisStore struct {
	Client    *redis.Client
	TTL       time.Duration
	VisitorID string
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("%s:%s:%s", redisPrefix, s.VisitorID, k)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.Client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.Client.Set(ctx, s.key(key), value, s.TTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.Client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
