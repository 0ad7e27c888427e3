package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rumahku/billing/internal/config"
	"github.com/stretchr/testify/assert"
)

type cachedTier struct {
	ID    string `json:"id"`
	Price int64  `json:"price"`
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "tier:v1:premium:monthly", GenerateKey(PrefixTier, "premium", "monthly"))
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg)

	c.Set(ctx, GenerateKey(PrefixTier, "family"), &cachedTier{ID: "family", Price: 20000}, time.Minute)
	c.Set(ctx, GenerateKey(PrefixTier, "premium"), &cachedTier{ID: "premium", Price: 100000}, time.Minute)
	c.Set(ctx, GenerateKey(PrefixPromoCode, "HEMAT50"), "x", time.Minute)

	got, ok := GetTyped[*cachedTier](ctx, c, GenerateKey(PrefixTier, "family"))
	assert.True(t, ok)
	assert.Equal(t, int64(20000), got.Price)

	_, ok = GetTyped[*cachedTier](ctx, c, GenerateKey(PrefixPromoCode, "HEMAT50"))
	assert.False(t, ok, "wrong type is a miss")

	c.DeleteByPrefix(ctx, PrefixTier)
	_, ok = c.Get(ctx, GenerateKey(PrefixTier, "premium"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixPromoCode, "HEMAT50"))
	assert.True(t, ok)

	c.Flush(ctx)
	_, ok = c.Get(ctx, GenerateKey(PrefixPromoCode, "HEMAT50"))
	assert.False(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg)

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestGetTyped_DecodesBytes(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(config.GetDefaultConfig())
	c.Set(ctx, "k", []byte(`{"id":"family","price":20000}`), time.Minute)

	got, ok := GetTyped[cachedTier](ctx, c, "k")
	assert.True(t, ok)
	assert.Equal(t, cachedTier{ID: "family", Price: 20000}, got)
}
