package distance

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cached memoises another Lookup. Concurrent requests for the same pair
// share one upstream call; failures are not cached. A caller whose context
// ends stops waiting without failing the others.
type Cached struct {
	next  Lookup
	cache *lru.Cache[string, float64]
	group singleflight.Group
}

// NewCached wraps next with an LRU holding up to size endpoint pairs.
func NewCached(next Lookup, size int) (*Cached, error) {
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

func pairKey(from, to string) string {
	norm := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), " "))
	}
	return norm(from) + "\x00" + norm(to)
}

// LookupDistanceKm implements Lookup.
func (c *Cached) LookupDistanceKm(ctx context.Context, from, to string) (float64, error) {
	if err := checkEndpoints(from, to); err != nil {
		return 0, err
	}

	key := pairKey(from, to)
	if km, ok := c.cache.Get(key); ok {
		return km, nil
	}

	// Waiters give up on their own ctx; the shared call ignores cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		km, err := c.next.LookupDistanceKm(shared, from, to)
		if err != nil {
			return 0.0, err
		}
		c.cache.Add(key, km)
		return km, nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

// Len reports how many pairs are cached.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *Cached) Purge() {
	c.cache.Purge()
}
