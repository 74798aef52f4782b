package session

import (
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// warmupCalls is how many Get calls use the long warm-up TTL before the
// cache switches to its steady-state TTL. Vendor CLIs and FFI handles are
// slow to report a stable first reading; giving the first handful of
// calls a longer shelf life avoids re-querying a source that has not
// settled yet.
const warmupCalls = 10

const warmupTTL = 5 * time.Second

const steadyStateTTL = 500 * time.Millisecond

// SampleCache is the two-layer TTL cache every FFISession and GRPCSession
// reads through: a long TTL for the first warmupCalls lookups per key,
// then a short steady-state TTL once the source is presumed stable.
type SampleCache struct {
	mu    sync.Mutex
	calls map[string]int

	loadMu sync.Mutex

	cache *ttlcache.Cache[string, any]
}

// NewSampleCache constructs an empty cache. Callers are responsible for
// calling Start in a goroutine and Stop on shutdown, since ttlcache runs
// its own eviction loop.
func NewSampleCache() *SampleCache {
	c := ttlcache.New[string, any](
		ttlcache.WithTTL[string, any](steadyStateTTL),
	)

	return &SampleCache{
		calls: make(map[string]int),
		cache: c,
	}
}

// Start runs the cache's background eviction loop; call it in its own
// goroutine.
func (c *SampleCache) Start() { c.cache.Start() }

// Stop halts the background eviction loop.
func (c *SampleCache) Stop() { c.cache.Stop() }

// GetOrLoad returns the cached value for key, or calls load and caches
// the result if absent or expired. The TTL used for this particular
// insertion depends on how many times key has been loaded so far.
//
// The fast path — key present and unexpired — is a plain ttlcache Get. A
// miss or expiry takes loadMu and checks the cache again before calling
// load, so concurrent callers racing on the same expired key collapse into
// a single load instead of each issuing their own collection. loadMu is
// shared by all keys, so loads for different keys also run one at a time.
func (c *SampleCache) GetOrLoad(key string, load func() (any, error)) (any, error) {
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	var loadErr error

	loader := ttlcache.LoaderFunc[string, any](
		func(cache *ttlcache.Cache[string, any], key string) *ttlcache.Item[string, any] {
			v, err := load()
			if err != nil {
				loadErr = err

				return nil
			}

			c.mu.Lock()
			n := c.calls[key]
			c.calls[key] = n + 1
			c.mu.Unlock()

			ttl := steadyStateTTL
			if n < warmupCalls {
				ttl = warmupTTL
			}

			return cache.Set(key, v, ttl)
		},
	)

	item := c.cache.Get(key, ttlcache.WithLoader[string, any](loader))
	if item == nil {
		if loadErr != nil {
			return nil, loadErr
		}

		return nil, errors.New("session: sample cache load produced no value")
	}

	return item.Value(), nil
}
