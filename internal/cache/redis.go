package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ishakdedicc/f1store-next.js/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

var (
	_ CartCache       = RedisCache{}
	_ ViewInvalidator = RedisCache{}
)

func (r RedisCache) Get(ctx context.Context, owner domain.OwnerKey) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set stores a cart snapshot. An older version never replaces a newer one.
func (r RedisCache) Set(ctx context.Context, owner domain.OwnerKey, cart *domain.Cart) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expirations of carts written at the same moment
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := setIfNotNewer.Run(ctx, r.client, []string{cartKey(owner)},
		string(jsonCart), cart.Version, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// setIfNotNewer writes the cart unless the cached copy carries a higher
// version, so a slow read-through cannot replace a fresher write.
var setIfNotNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, cached = pcall(cjson.decode, cur)
	if ok and type(cached) == 'table' then
		local v = tonumber(cached['version'])
		if v and v > tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

func (r RedisCache) Delete(ctx context.Context, owner domain.OwnerKey) error {
	if err := r.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisCache) InvalidateProductView(ctx context.Context, slug string) error {
	if slug == "" {
		return nil
	}
	if err := r.client.Del(ctx, productViewKey(slug)).Err(); err != nil {
		return fmt.Errorf("redis delete product view failed: %w", err)
	}
	return nil
}

func cartKey(owner domain.OwnerKey) string {
	return fmt.Sprintf("cart:%s", owner)
}

func productViewKey(slug string) string {
	return fmt.Sprintf("product:view:%s", slug)
}
