package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// responseCache memoizes provider answers for identical requests.
type responseCache struct {
	cache *cache.Cache
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{cache: cache.New(ttl, 2*ttl)}
}

func cacheKey(provider, model, baseURL string, maxTokens int, prompt string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, baseURL, strconv.Itoa(maxTokens), prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) get(key string) (Response, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return Response{}, false
	}
	resp, ok := v.(Response)
	return resp, ok
}

func (c *responseCache) set(key string, resp Response) {
	c.cache.Set(key, resp, cache.DefaultExpiration)
}

func (c *responseCache) count() int {
	return c.cache.ItemCount()
}
