package response

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CacheHeader reports HIT or MISS on memoized endpoints.
const CacheHeader = "X-Cache"

// JSONCache is the part of cache.Store the memoized endpoints need.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) bool
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool
}

// SendCached writes the body memoized under key and reports whether there was one.
func SendCached(c *fiber.Ctx, store JSONCache, key string) (bool, error) {
	if store == nil {
		return false, nil
	}
	var raw json.RawMessage
	if !store.GetJSON(c.Context(), key, &raw) {
		return false, nil
	}
	c.Set(CacheHeader, "HIT")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return true, c.Status(fiber.StatusOK).Send(raw)
}

// SendAndCache writes body with 200 and memoizes it under key for ttl.
func SendAndCache(c *fiber.Ctx, store JSONCache, key string, ttl time.Duration, body interface{}) error {
	if store != nil {
		store.SetJSON(c.Context(), key, body, ttl)
	}
	c.Set(CacheHeader, "MISS")
	return c.Status(fiber.StatusOK).JSON(body)
}
