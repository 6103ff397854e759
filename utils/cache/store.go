package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

// DefaultResponseTTL is used when SetJSON is called with a non-positive ttl.
const DefaultResponseTTL = 300 * time.Second

// ResponsePrefix namespaces memoized HTTP responses so they can be purged
// without touching the data hashes.
const ResponsePrefix = "resp:"

// Store memoizes JSON values in Redis. It never returns infrastructure errors
// to callers: failures are logged and reported as a miss or a failed write.
type Store struct {
	provider *ClientProvider
}

// NewStore creates a response cache over provider
func NewStore(provider *ClientProvider) *Store {
	return &Store{provider: provider}
}

// GetJSON decodes the value at key into dest. It returns false on a miss or
// on any Redis or decode error. A nil Store always misses.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if s == nil {
		return false
	}
	client, err := s.provider.Client()
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("cache GET error")
		return false
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err == ErrNil {
		return false
	}
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("cache GET error")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache entry is not valid JSON")
		return false
	}
	return true
}

// SetJSON stores value as JSON with the given ttl and reports success.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if s == nil {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("cache SET encode error")
		return false
	}
	client, err := s.provider.Client()
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("cache SET error")
		return false
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("cache SET error")
		return false
	}
	return true
}

// DeletePattern removes every key matching pattern and returns how many were removed.
func (s *Store) DeletePattern(ctx context.Context, pattern string) (int, error) {
	client, err := s.provider.Client()
	if err != nil {
		return 0, err
	}
	removed := 0
	iter := client.Scan(ctx, 0, pattern, 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := client.Del(ctx, batch...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if len(batch) > 0 {
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// QueryKey builds a stable cache key from a prefix and request query
// parameters, e.g. colleges:page=2&state=Goa.
func QueryKey(prefix string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return prefix + ":" + values.Encode()
}

// ResponseKey is QueryKey under ResponsePrefix, e.g. resp:colleges:page=2.
func ResponseKey(name string, params map[string]string) string {
	return QueryKey(ResponsePrefix+name, params)
}

// PurgeResponses drops every memoized response.
func (s *Store) PurgeResponses(ctx context.Context) (int, error) {
	return s.DeletePattern(ctx, ResponsePrefix+"*")
}
