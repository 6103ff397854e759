package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

var (
	ErrNotFound = errors.New("key not found in cache")
	ErrNil      = redis.Nil
)

const (
	maxRetries      = 3
	minRetryBackoff = 50 * time.Millisecond
	maxRetryBackoff = 2 * time.Second
)

// ClientProvider lazily builds the process-wide Redis client. The client is
// constructed on the first Client call and no connection is opened until the
// first command runs.
type ClientProvider struct {
	redisURL string

	once   sync.Once
	client *redis.Client
	err    error

	mu     sync.Mutex
	closed bool
}

// NewClientProvider creates a provider for redisURL without connecting
func NewClientProvider(redisURL string) *ClientProvider {
	return &ClientProvider{redisURL: redisURL}
}

// Client returns the shared client, building it on first use
func (p *ClientProvider) Client() (*redis.Client, error) {
	p.once.Do(func() {
		opt, err := redis.ParseURL(p.redisURL)
		if err != nil {
			p.err = fmt.Errorf("invalid REDIS_URL: %w", err)
			return
		}
		opt.MaxRetries = maxRetries
		opt.MinRetryBackoff = minRetryBackoff
		opt.MaxRetryBackoff = maxRetryBackoff
		opt.DialTimeout = 5 * time.Second
		opt.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			logger.Debug().Str("addr", opt.Addr).Msg("redis connection established")
			return nil
		}
		p.client = redis.NewClient(opt)
	})
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, redis.ErrClosed
	}
	return p.client, nil
}

// Ping checks connectivity
func (p *ClientProvider) Ping(ctx context.Context) error {
	client, err := p.Client()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close closes the Redis connection if one was built
func (p *ClientProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.client == nil {
		p.closed = true
		return nil
	}
	p.closed = true
	logger.Info().Msg("closing redis connection")
	return p.client.Close()
}

// RedisCache wraps the shared client with the counter and lock helpers used by
// the rate limiting and brute force middleware
type RedisCache struct {
	provider *ClientProvider
}

// NewRedisCache creates a new Redis cache instance over provider
func NewRedisCache(provider *ClientProvider) *RedisCache {
	return &RedisCache{provider: provider}
}

// Get retrieves a value from cache
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	client, err := r.provider.Client()
	if err != nil {
		return "", err
	}
	val, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value in cache with expiration
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	client, err := r.provider.Client()
	if err != nil {
		return err
	}
	return client.Set(ctx, key, value, expiration).Err()
}

// Delete removes a key from cache
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	client, err := r.provider.Client()
	if err != nil {
		return err
	}
	return client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists in cache
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	client, err := r.provider.Client()
	if err != nil {
		return false, err
	}
	count, err := client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Increment increments a counter and returns the new value
func (r *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	client, err := r.provider.Client()
	if err != nil {
		return 0, err
	}
	return client.Incr(ctx, key).Result()
}

// Expire sets an expiration time on a key
func (r *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	client, err := r.provider.Client()
	if err != nil {
		return err
	}
	return client.Expire(ctx, key, expiration).Err()
}

// TTL returns the remaining time to live of a key
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	client, err := r.provider.Client()
	if err != nil {
		return 0, err
	}
	return client.TTL(ctx, key).Result()
}
