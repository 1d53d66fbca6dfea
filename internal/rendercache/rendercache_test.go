package rendercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eocis/cubetile/internal/model"
)

func newCache(t *testing.T, maxEntries int, byteBudget int64, retryBudget int, failTTL time.Duration) *Cache {
	t.Helper()
	c, err := New(maxEntries, byteBudget, retryBudget, failTTL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func key(layer string, z, x, y int) model.TileKey {
	return model.TileKey{Layer: layer, Z: z, X: x, Y: y}
}

func tile(b []byte) model.RenderedTile {
	return model.RenderedTile{Bytes: b, Kind: model.ContentRaster}
}

func TestGetRendersOnceThenHits(t *testing.T) {
	c := newCache(t, 8, 0, 3, time.Minute)
	var calls atomic.Int32
	render := func(context.Context) (model.RenderedTile, error) {
		calls.Add(1)
		return tile([]byte("abc")), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Get(context.Background(), key("st", 0, 0, 0), render)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got.Bytes, []byte("abc")) {
			t.Fatalf("got %q", got.Bytes)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("render ran %d times, want 1", n)
	}
	if c.Len() != 1 || c.Bytes() != 3 {
		t.Errorf("cache state: len=%d bytes=%d", c.Len(), c.Bytes())
	}
}

func TestConcurrentCallersShareOneRender(t *testing.T) {
	c := newCache(t, 8, 0, 3, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	render := func(context.Context) (model.RenderedTile, error) {
		calls.Add(1)
		<-release
		return tile([]byte("shared")), nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([][]byte, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Get(context.Background(), key("st", 1, 2, 3), render)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = got.Bytes
		}(i)
	}
	time.Sleep(20 * time.Millisecond) // let callers pile onto the flight
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("render ran %d times, want 1", got)
	}
	for i, b := range results {
		if !bytes.Equal(b, []byte("shared")) {
			t.Errorf("caller %d got %q", i, b)
		}
	}
}

func TestRerenderAfterPurgeIsIdentical(t *testing.T) {
	c := newCache(t, 8, 0, 3, time.Minute)
	render := func(context.Context) (model.RenderedTile, error) {
		return tile([]byte("deterministic")), nil
	}
	k := key("st", 2, 1, 1)

	first, err := c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatal(err)
	}
	c.Purge()
	if c.Len() != 0 || c.Bytes() != 0 {
		t.Fatalf("purge left len=%d bytes=%d", c.Len(), c.Bytes())
	}
	second, err := c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes, second.Bytes) {
		t.Error("re-render produced different bytes")
	}
}

func TestFailureNegativeCacheAndRetryBudget(t *testing.T) {
	c := newCache(t, 8, 0, 2, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	var calls atomic.Int32
	boom := errors.New("slice unavailable")
	render := func(context.Context) (model.RenderedTile, error) {
		calls.Add(1)
		return model.RenderedTile{}, boom
	}
	k := key("st", 0, 0, 0)

	// retry budget of 2: two live attempts, then the cached failure replays
	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), k, render)
		if !errors.Is(err, model.ErrRenderFailed) || !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("render ran %d times, want 2", n)
	}

	// once the window lapses the budget resets
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err := c.Get(context.Background(), k, render)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("render ran %d times after window lapse, want 3", n)
	}
}

func TestSuccessClearsFailureState(t *testing.T) {
	c := newCache(t, 8, 0, 3, time.Minute)
	fail := true
	render := func(context.Context) (model.RenderedTile, error) {
		if fail {
			return model.RenderedTile{}, errors.New("transient")
		}
		return tile([]byte("ok")), nil
	}
	k := key("st", 0, 0, 0)

	if _, err := c.Get(context.Background(), k, render); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	got, err := c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Bytes, []byte("ok")) {
		t.Fatalf("got %q", got.Bytes)
	}
	// the failure record is gone, subsequent gets hit the ready entry
	if _, err := c.Get(context.Background(), k, render); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceholderResultsAreNotCached(t *testing.T) {
	c := newCache(t, 8, 0, 3, time.Minute)
	degraded := true
	var calls atomic.Int32
	render := func(context.Context) (model.RenderedTile, error) {
		calls.Add(1)
		if degraded {
			return model.RenderedTile{Bytes: []byte("blank"), Kind: model.ContentPlaceholder}, nil
		}
		return tile([]byte("map")), nil
	}
	k := key("basemap", 0, 0, 0)

	got, err := c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != model.ContentPlaceholder {
		t.Fatalf("kind = %v", got.Kind)
	}
	if c.Len() != 0 {
		t.Fatalf("placeholder entered the ready cache, len = %d", c.Len())
	}

	// once the upstream recovers the next request renders the real tile
	degraded = false
	got, err = c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != model.ContentRaster || !bytes.Equal(got.Bytes, []byte("map")) {
		t.Fatalf("recovered tile = kind %v, %q", got.Kind, got.Bytes)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("render ran %d times, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("real tile not cached, len = %d", c.Len())
	}
}

func TestCancellationIsNotRecordedAsFailure(t *testing.T) {
	c := newCache(t, 8, 0, 2, time.Minute)
	var calls atomic.Int32
	render := func(ctx context.Context) (model.RenderedTile, error) {
		if err := ctx.Err(); err != nil {
			return model.RenderedTile{}, err
		}
		calls.Add(1)
		return tile([]byte("ok")), nil
	}
	k := key("st", 0, 1, 0)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	// more cancellations than the retry budget allows for real failures
	for i := 0; i < 3; i++ {
		_, err := c.Get(cancelled, k, render)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	got, err := c.Get(context.Background(), k, render)
	if err != nil {
		t.Fatalf("healthy caller blocked by cancelled predecessors: %v", err)
	}
	if !bytes.Equal(got.Bytes, []byte("ok")) {
		t.Fatalf("got %q", got.Bytes)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("render ran %d times, want 1", n)
	}
}

func TestByteBudgetEvictsOldest(t *testing.T) {
	c := newCache(t, 64, 25, 3, time.Minute)
	payload := bytes.Repeat([]byte("x"), 10)

	for i := 0; i < 4; i++ {
		k := key("st", 0, i, 0)
		_, err := c.Get(context.Background(), k, func(context.Context) (model.RenderedTile, error) {
			return tile(payload), nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if got := c.Bytes(); got > 25 {
		t.Errorf("bytes = %d, budget 25", got)
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2 after eviction", c.Len())
	}
	// the oldest keys were evicted, the newest survive
	var calls int
	for i := 2; i < 4; i++ {
		_, err := c.Get(context.Background(), key("st", 0, i, 0), func(context.Context) (model.RenderedTile, error) {
			calls++
			return tile(payload), nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if calls != 0 {
		t.Errorf("newest entries re-rendered %d times, want 0", calls)
	}
}

func TestEntryCountEviction(t *testing.T) {
	c := newCache(t, 2, 0, 3, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), key("st", 0, i, 0), func(context.Context) (model.RenderedTile, error) {
			return tile([]byte(fmt.Sprintf("tile-%d", i))), nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
	if got := c.Bytes(); got != 12 {
		t.Errorf("bytes = %d, want 12 after evict callback", got)
	}
}

func TestNewRejectsNonPositiveEntries(t *testing.T) {
	if _, err := New(0, 0, 3, time.Minute); err == nil {
		t.Error("expected error for zero entries")
	}
}
