package query

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Int parses a positive integer query parameter, falling back to def.
func Int(c *fiber.Ctx, name string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// Trimmed returns a query parameter with surrounding whitespace removed.
func Trimmed(c *fiber.Ctx, name string) string {
	return strings.TrimSpace(c.Query(name))
}

// Params collects the named query parameters that are present. The result
// feeds cache.QueryKey so memoized responses are keyed on what was asked for.
func Params(c *fiber.Ctx, names ...string) map[string]string {
	params := make(map[string]string, len(names))
	for _, name := range names {
		if v := Trimmed(c, name); v != "" {
			params[name] = v
		}
	}
	return params
}
