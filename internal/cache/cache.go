package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache fronts catalog and promo lookups. Implementations never fail loudly,
// a broken cache degrades to a miss and the store stays authoritative.
type Cache interface {
	// Get returns the cached value. Remote caches return encoded []byte,
	// use GetTyped to decode.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value, an expiration of 0 uses the implementation default
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	Delete(ctx context.Context, key string)

	// DeleteByPrefix drops every key built from prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	Flush(ctx context.Context)
}

// Key prefixes carry a version so a changed payload shape never reads stale entries
const (
	PrefixTier      = "tier:v1"
	PrefixTierList  = "tier_list:v1"
	PrefixPromoCode = "promo_code:v1"
)

// GenerateKey joins prefix and params with colons, e.g. tier:v1:premium
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		b.WriteByte(':')
		fmt.Fprint(&b, param)
	}
	return b.String()
}
