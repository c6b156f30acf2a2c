package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaunagostinho/geofix/internal/location"
)

// Redis shares the latest fixes between geofix processes.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// ConnectRedis parses redisURL and pings the server.
func ConnectRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: can't parse the redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: couldn't ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// NewRedis wraps an existing client. A zero ttl never expires.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "geofix:last:", ttl: ttl}
}

func (r *Redis) key(src location.Source) string { return r.prefix + string(src) }

func (r *Redis) Get(ctx context.Context, src location.Source) (*location.Sample, error) {
	raw, err := r.client.Get(ctx, r.key(src)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", src, err)
	}
	var s location.Sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", src, err)
	}
	return &s, nil
}

func (r *Redis) Put(ctx context.Context, s location.Sample) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.Source), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %w", s.Source, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
