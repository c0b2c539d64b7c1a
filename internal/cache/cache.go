package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores JSON-encodable values with a TTL. A miss is (false, nil).
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
}

// SearchKey normalizes a search query into its cache key.
func SearchKey(query string) string {
	return "search:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
