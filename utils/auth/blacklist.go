package auth

import (
	"context"
	"time"

	"github.com/sahilchouksey/college-explorer-api/utils/cache"
)

const revokedPrefix = "admin:revoked:"

// BlacklistService handles JWT token revocation. Entries live in Redis until
// the token would have expired anyway.
type BlacklistService struct {
	cache *cache.RedisCache
}

// NewBlacklistService creates a new blacklist service
func NewBlacklistService(redisCache *cache.RedisCache) *BlacklistService {
	return &BlacklistService{cache: redisCache}
}

// RevokeToken adds a token to the blacklist
func (s *BlacklistService) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revokedPrefix+jti, "1", ttl)
}

// IsTokenRevoked checks if a token is in the blacklist
func (s *BlacklistService) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.cache.Exists(ctx, revokedPrefix+jti)
}
