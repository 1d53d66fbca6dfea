// Package rendercache memoizes rendered tile bytes per TileKey.
//
// Each key moves through absent -> pending -> ready|failed. Pending is
// realized by a singleflight group: concurrent requests for one key attach
// to the same in-flight render instead of starting a second one. Ready
// entries live in an LRU bounded by entry count and byte budget. Failed
// renders are negative-cached with a bounded retry budget so a broken layer
// does not replay its failure on every request, nor forever.
//
// Renders run outside the store's locks; only the bookkeeping (lookup,
// insert, evict) is serialized. A key is only inserted into the LRU once its
// render completed, so eviction can never hit an in-flight render.
package rendercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/observability"
)

// RenderFunc produces the tile for a key. It is invoked at most once per
// key per flight.
type RenderFunc func(ctx context.Context) (model.RenderedTile, error)

type failure struct {
	err   error
	tries int
	until time.Time
}

type Cache struct {
	entries  *lru.Cache[string, model.RenderedTile]
	failures *lru.Cache[string, failure]

	byteBudget int64
	bytes      atomic.Int64

	failMu      sync.Mutex
	failTTL     time.Duration
	retryBudget int

	sf  singleflight.Group
	now func() time.Time // for tests
}

func New(maxEntries int, byteBudget int64, retryBudget int, failTTL time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("rendercache: max entries must be positive, got %d", maxEntries)
	}
	c := &Cache{
		byteBudget:  byteBudget,
		failTTL:     failTTL,
		retryBudget: retryBudget,
		now:         time.Now,
	}
	entries, err := lru.NewWithEvict(maxEntries, func(_ string, t model.RenderedTile) {
		c.bytes.Add(-int64(len(t.Bytes)))
	})
	if err != nil {
		return nil, err
	}
	failures, err := lru.New[string, failure](maxEntries)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	c.failures = failures
	return c, nil
}

// Get returns the tile for key, rendering it on a miss. All concurrent
// callers for one key observe the same result or the same failure.
func (c *Cache) Get(ctx context.Context, key model.TileKey, render RenderFunc) (model.RenderedTile, error) {
	k := key.String()

	if t, ok := c.entries.Get(k); ok {
		observability.IncCache("hit")
		return t, nil
	}

	if err := c.failedOut(k); err != nil {
		observability.IncCache("failed")
		return model.RenderedTile{}, err
	}

	v, err, shared := c.sf.Do(k, func() (any, error) {
		// a concurrent flight may have filled the entry while this
		// caller was queueing on the group
		if t, ok := c.entries.Get(k); ok {
			return t, nil
		}

		t, err := render(ctx)
		if err != nil {
			// caller cancellation is not a failure of the key; recording
			// it would let one disconnecting client poison the tile for
			// everyone within the negative-cache window
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				c.noteFailure(k, err)
			}
			return nil, fmt.Errorf("%w: %s: %w", model.ErrRenderFailed, k, err)
		}

		c.failMu.Lock()
		c.failures.Remove(k)
		c.failMu.Unlock()

		// placeholders are degraded output from a failed upstream fetch,
		// not a stable result; keeping them out of the ready cache lets
		// the next request retry once the fetch client allows it
		if t.Kind == model.ContentPlaceholder {
			return t, nil
		}

		c.entries.Add(k, t)
		c.bytes.Add(int64(len(t.Bytes)))
		c.enforceByteBudget()
		return t, nil
	})
	if err != nil {
		observability.IncCache("failed")
		return model.RenderedTile{}, err
	}
	if shared {
		observability.IncCache("shared")
	} else {
		observability.IncCache("miss")
	}
	return v.(model.RenderedTile), nil
}

// Len reports the number of ready entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Bytes reports the byte footprint of ready entries.
func (c *Cache) Bytes() int64 { return c.bytes.Load() }

// Purge drops all ready and failed entries.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.failMu.Lock()
	c.failures.Purge()
	c.failMu.Unlock()
}

// failedOut reports the cached failure for keys whose retry budget is
// exhausted and whose negative-cache window is still open.
func (c *Cache) failedOut(k string) error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	f, ok := c.failures.Get(k)
	if !ok {
		return nil
	}
	if c.now().After(f.until) {
		// window lapsed, the key may try again with a fresh budget
		c.failures.Remove(k)
		return nil
	}
	if f.tries < c.retryBudget {
		return nil
	}
	return f.err
}

func (c *Cache) noteFailure(k string, err error) {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	f, _ := c.failures.Get(k)
	f.tries++
	f.err = fmt.Errorf("%w: %s: %w", model.ErrRenderFailed, k, err)
	f.until = c.now().Add(c.failTTL)
	c.failures.Add(k, f)
}

func (c *Cache) enforceByteBudget() {
	if c.byteBudget <= 0 {
		return
	}
	for c.bytes.Load() > c.byteBudget && c.entries.Len() > 0 {
		c.entries.RemoveOldest()
	}
}
