package http

import (
	"context"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
)

const (
	callerCacheSize = 1024
	callerCacheTTL  = time.Minute
)

// cachingResolver keeps recent token lookups in memory so every request does
// not hit the users table. Only successful resolutions are cached; a revoked
// token can therefore stay valid for up to the TTL.
type cachingResolver struct {
	inner CallerResolver
	cache *cache.LRU[*core.User]
}

// NewCachingResolver wraps resolver with an in-process lookup cache.
func NewCachingResolver(resolver CallerResolver) CallerResolver {
	return &cachingResolver{
		inner: resolver,
		cache: cache.NewLRU[*core.User](callerCacheSize, callerCacheTTL),
	}
}

func (c *cachingResolver) ResolveToken(ctx context.Context, token string) (*core.User, error) {
	if user, ok := c.cache.Get(token); ok {
		return user, nil
	}

	user, err := c.inner.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	c.cache.Set(token, user)
	return user, nil
}
