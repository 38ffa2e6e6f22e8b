package persist

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"
)

// DefaultKeyPrefix namespaces keys and rows when none is configured.
const DefaultKeyPrefix = "blueghost"

// Redis stores each document under "<prefix>:doc:<name>".
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and checks the connection with PING.
func OpenRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("open redis: address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedis(client, prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(name string) string {
	return r.prefix + ":doc:" + name
}

// Load implements Backend.
func (r *Redis) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.WithContext(ctx).Get(r.key(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return data, nil
}

// Save implements Backend. Documents never expire in Redis; expiry is the
// engine's job.
func (r *Redis) Save(ctx context.Context, name string, data []byte) error {
	if err := r.client.WithContext(ctx).Set(r.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.client.Close()
}
