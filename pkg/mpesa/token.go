package mpesa

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTokenMargin refreshes this long before the provider's expiry
const DefaultTokenMargin = 60 * time.Second

// RefreshFunc fetches a new token and its lifetime
type RefreshFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache holds one bearer token. Concurrent refreshes share a single
// upstream call.
type TokenCache struct {
	mu     sync.RWMutex
	value  string
	expiry time.Time
	margin time.Duration
	now    func() time.Time
	// Bounds a shared refresh; zero leaves it to the refresh func
	refreshTimeout time.Duration

	group singleflight.Group
}

// NewTokenCache returns an empty cache
func NewTokenCache(margin time.Duration) *TokenCache {
	return &TokenCache{margin: margin, now: time.Now}
}

// Get returns the cached token while it is outside the refresh margin
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.value == "" || !c.now().Before(c.expiry.Add(-c.margin)) {
		return "", false
	}
	return c.value, true
}

// Set stores token for ttl
func (c *TokenCache) Set(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = token
	c.expiry = c.now().Add(ttl)
}

// Invalidate drops the cached token
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = ""
	c.expiry = time.Time{}
}

// GetOrRefresh returns the cached token or calls refresh once for all
// waiting callers. The shared refresh outlives any single caller's context;
// a caller whose ctx ends stops waiting without failing the others.
func (c *TokenCache) GetOrRefresh(ctx context.Context, refresh RefreshFunc) (string, error) {
	if token, ok := c.Get(); ok {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (interface{}, error) {
		if token, ok := c.Get(); ok {
			return token, nil
		}

		refreshCtx := context.WithoutCancel(ctx)
		if c.refreshTimeout > 0 {
			var cancel context.CancelFunc
			refreshCtx, cancel = context.WithTimeout(refreshCtx, c.refreshTimeout)
			defer cancel()
		}

		token, ttl, err := refresh(refreshCtx)
		if err != nil {
			return "", err
		}
		c.Set(token, ttl)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
