// Package wmsclient fetches base-map imagery from an external Web Map
// Service. Successful GetMap bodies are memoized per URL; failing URLs are
// negative-cached for a while so a broken upstream is not hammered on every
// tile request.
package wmsclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/observability"
)

// FetchError wraps any upstream failure: timeout, transport error or
// non-2xx status. Callers recover it as a transparent placeholder tile.
type FetchError struct {
	URL    string
	Status int // 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("wms fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("wms fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	urlCacheSize    = 256
	failedCacheSize = 256
	maxBodyBytes    = 8 << 20
)

type Client struct {
	http    *http.Client
	zl      *zerolog.Logger
	bodies  *lru.Cache[string, []byte]
	failed  *lru.Cache[string, time.Time]
	failTTL time.Duration
	sf      singleflight.Group
	now     func() time.Time // for tests
}

func New(timeout, failTTL time.Duration, zl *zerolog.Logger) *Client {
	bodies, _ := lru.New[string, []byte](urlCacheSize)
	failed, _ := lru.New[string, time.Time](failedCacheSize)
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		zl:      zl,
		bodies:  bodies,
		failed:  failed,
		failTTL: failTTL,
		now:     time.Now,
	}
}

// BuildURL substitutes the tile geometry into the layer's URL template.
// Placeholder set and substitution order follow the template itself.
func BuildURL(tmpl string, b model.BBox, width, height int) string {
	r := strings.NewReplacer(
		"{WIDTH}", strconv.Itoa(width),
		"{HEIGHT}", strconv.Itoa(height),
		"{XMIN}", formatCoord(b.XMin),
		"{YMIN}", formatCoord(b.YMin),
		"{XMAX}", formatCoord(b.XMax),
		"{YMAX}", formatCoord(b.YMax),
	)
	return r.Replace(tmpl)
}

// formatCoord renders a coordinate in plain decimal notation; exponent
// forms would corrupt the query string.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GetMap returns the image bytes for a GetMap URL. Concurrent calls for the
// same URL share one outbound request.
func (c *Client) GetMap(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.bodies.Get(url); ok {
		return body, nil
	}
	if until, ok := c.failed.Get(url); ok {
		if c.now().Before(until) {
			return nil, &FetchError{URL: url, Err: fmt.Errorf("negative-cached until %s", until.Format(time.RFC3339))}
		}
		c.failed.Remove(url)
	}

	v, err, _ := c.sf.Do(url, func() (any, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	start := c.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.recordFailure(url, &FetchError{URL: url, Err: err}, start)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.recordFailure(url, &FetchError{URL: url, Err: err}, start)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, c.recordFailure(url, &FetchError{URL: url, Status: resp.StatusCode}, start)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.recordFailure(url, &FetchError{URL: url, Err: err}, start)
	}

	observability.ObserveWMSFetch("ok", time.Since(start).Seconds())
	c.bodies.Add(url, body)
	return body, nil
}

func (c *Client) recordFailure(url string, ferr *FetchError, start time.Time) error {
	observability.ObserveWMSFetch("error", time.Since(start).Seconds())
	c.failed.Add(url, c.now().Add(c.failTTL))
	if c.zl != nil {
		c.zl.Warn().Str("url", url).Int("status", ferr.Status).AnErr("err", ferr.Err).Msg("wms fetch failed")
	}
	return ferr
}
