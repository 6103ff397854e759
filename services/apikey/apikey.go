// Package apikey manages partner API keys kept in the api_keys Redis hash and
// their per-window usage counters.
package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
)

const (
	KeysHash    = "api_keys"
	usagePrefix = "usage:"
	KeyPrefix   = "cei_"
)

var (
	ErrInvalidKey  = errors.New("invalid API key")
	ErrInactiveKey = errors.New("API key is inactive")
	ErrUnknownTier = errors.New("unknown API key tier")
)

type Service struct {
	provider *cache.ClientProvider
	now      func() time.Time
}

func NewService(provider *cache.ClientProvider) *Service {
	return &Service{provider: provider, now: time.Now}
}

// Key is a registered key together with its stored metadata.
type Key struct {
	Key string `json:"key"`
	model.APIKeyInfo
}

// Usage is the outcome of counting one request against a key's budget.
type Usage struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Exceeded   bool
	Unlimited  bool
}

// NewKey returns "cei_" followed by 32 hex characters.
func NewKey() string {
	return KeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Generate registers a new active key for tier.
func (s *Service) Generate(ctx context.Context, tier string) (Key, error) {
	if tier == "" {
		tier = model.TierFree
	}
	if _, ok := model.TierLimits[tier]; !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	k := Key{
		Key:        NewKey(),
		APIKeyInfo: model.APIKeyInfo{Tier: tier, Active: true, Created: s.now().UnixMilli()},
	}
	if err := s.store(ctx, k); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Lookup returns the metadata of an active key.
func (s *Service) Lookup(ctx context.Context, key string) (model.APIKeyInfo, error) {
	client, err := s.provider.Client()
	if err != nil {
		return model.APIKeyInfo{}, err
	}
	raw, err := client.HGet(ctx, KeysHash, key).Result()
	if errors.Is(err, redis.Nil) {
		return model.APIKeyInfo{}, ErrInvalidKey
	}
	if err != nil {
		return model.APIKeyInfo{}, fmt.Errorf("failed to look up API key: %w", err)
	}
	var info model.APIKeyInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return model.APIKeyInfo{}, fmt.Errorf("corrupt API key record: %w", err)
	}
	if !info.Active {
		return info, ErrInactiveKey
	}
	return info, nil
}

// List returns every registered key, newest first.
func (s *Service) List(ctx context.Context) ([]Key, error) {
	client, err := s.provider.Client()
	if err != nil {
		return nil, err
	}
	raw, err := client.HGetAll(ctx, KeysHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	keys := make([]Key, 0, len(raw))
	for k, v := range raw {
		var info model.APIKeyInfo
		if err := json.Unmarshal([]byte(v), &info); err != nil {
			continue
		}
		keys = append(keys, Key{Key: k, APIKeyInfo: info})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Created != keys[j].Created {
			return keys[i].Created > keys[j].Created
		}
		return keys[i].Key < keys[j].Key
	})
	return keys, nil
}

// Deactivate keeps the key registered but rejects further use.
func (s *Service) Deactivate(ctx context.Context, key string) error {
	info, err := s.Lookup(ctx, key)
	if err != nil && !errors.Is(err, ErrInactiveKey) {
		return err
	}
	info.Active = false
	return s.store(ctx, Key{Key: key, APIKeyInfo: info})
}

// Consume counts one request for key. The counter window starts at the
// first request and lasts the tier's window.
func (s *Service) Consume(ctx context.Context, key, tier string) (Usage, error) {
	limit := model.LimitFor(tier)
	if limit.Max <= 0 {
		return Usage{Unlimited: true}, nil
	}

	client, err := s.provider.Client()
	if err != nil {
		return Usage{}, err
	}
	counter := usagePrefix + key
	current, err := client.Incr(ctx, counter).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("failed to count API key usage: %w", err)
	}
	if current == 1 {
		if err := client.Expire(ctx, counter, time.Duration(limit.WindowSeconds)*time.Second).Err(); err != nil {
			return Usage{}, fmt.Errorf("failed to start usage window: %w", err)
		}
	}

	usage := Usage{Limit: limit.Max, Remaining: limit.Max - int(current)}
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}
	if int(current) > limit.Max {
		usage.Exceeded = true
		ttl, err := client.TTL(ctx, counter).Result()
		if err == nil && ttl > 0 {
			usage.RetryAfter = ttl
		}
	}
	return usage, nil
}

func (s *Service) store(ctx context.Context, k Key) error {
	client, err := s.provider.Client()
	if err != nil {
		return err
	}
	data, err := json.Marshal(k.APIKeyInfo)
	if err != nil {
		return err
	}
	if err := client.HSet(ctx, KeysHash, k.Key, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	return nil
}
