// Package offline keeps a versioned copy of the application shell so the
// client can start while the backend is unreachable. A Cache is an
// http.RoundTripper: GETs for installed URLs are answered from storage,
// everything else goes to the network.
package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultName is the cache generation shipped with this build.
const DefaultName = "ayurveda-now-cache-v1"

// DefaultShell is the list of shell resources precached on install.
var DefaultShell = []string{"/", "/index.html", "/manifest.json"}

// HitHeader is set on responses served from the cache.
const HitHeader = "X-Offline-Cache"

// Cache is one named generation of shell resources.
type Cache struct {
	name    string
	urls    []*url.URL
	storage Storage
	base    http.RoundTripper
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	active bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithBase sets the RoundTripper used for network requests.
func WithBase(rt http.RoundTripper) Option {
	return func(c *Cache) { c.base = rt }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New builds a cache generation called name. Shell paths are appended to
// baseURL the way the api client builds request URLs, so a base with a path
// prefix caches the prefixed URLs. If storage already has name active, the
// cache serves immediately without a new install.
func New(name, baseURL string, shell []string, storage Storage, opts ...Option) (*Cache, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	root := strings.TrimRight(baseURL, "/")

	c := &Cache{
		name:    name,
		storage: storage,
		base:    http.DefaultTransport,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range shell {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		u, err := url.Parse(root + p)
		if err != nil {
			return nil, fmt.Errorf("invalid shell url %q: %w", p, err)
		}
		c.urls = append(c.urls, u)
	}

	active, ok, err := storage.Active()
	if err != nil {
		return nil, err
	}
	c.active = ok && active == name
	return c, nil
}

// Name returns the generation name.
func (c *Cache) Name() string { return c.name }

// Active reports whether this generation is installed and serving.
func (c *Cache) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Install fetches every shell URL and stores them as this generation. If
// any fetch fails nothing is stored and the previous generation, if any,
// stays in control.
func (c *Cache) Install(ctx context.Context) error {
	entries := make(map[string]Entry, len(c.urls))
	for _, u := range c.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("install %s: %w", c.name, err)
		}
		resp, err := c.base.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("install %s: fetching %s: %w", c.name, u, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("install %s: reading %s: %w", c.name, u, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("install %s: fetching %s: status %d", c.name, u, resp.StatusCode)
		}
		entries[key(u)] = Entry{
			Status:   resp.StatusCode,
			Header:   resp.Header.Clone(),
			Body:     body,
			StoredAt: c.now(),
		}
	}

	if err := c.storage.Put(c.name, entries); err != nil {
		return fmt.Errorf("install %s: %w", c.name, err)
	}
	c.logger.Info("offline cache installed", zap.String("cache", c.name), zap.Int("entries", len(entries)))
	return c.Activate()
}

// Activate makes this generation the one in control and deletes all others.
func (c *Cache) Activate() error {
	if err := c.storage.Activate(c.name); err != nil {
		return fmt.Errorf("activate %s: %w", c.name, err)
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	c.logger.Info("offline cache activated", zap.String("cache", c.name))
	return nil
}

// Keys lists the URLs held by this generation.
func (c *Cache) Keys() ([]string, error) {
	return c.storage.Keys(c.name)
}

// serving returns the generation that answers requests: this one once it is
// active, otherwise whichever generation storage still has in control.
func (c *Cache) serving() (string, bool) {
	if c.Active() {
		return c.name, true
	}
	name, ok, err := c.storage.Active()
	if err != nil {
		c.logger.Warn("offline cache lookup failed", zap.Error(err))
		return "", false
	}
	return name, ok
}

// RoundTrip answers GETs for stored URLs from the cache and forwards the
// rest. Until this generation is installed the previous one keeps serving.
// A storage read error falls through to the network.
func (c *Cache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.base.RoundTrip(req)
	}
	if gen, ok := c.serving(); ok {
		e, ok, err := c.storage.Get(gen, key(req.URL))
		if err != nil {
			c.logger.Warn("offline cache read failed", zap.String("url", req.URL.String()), zap.Error(err))
		} else if ok {
			c.logger.Debug("offline cache hit", zap.String("url", req.URL.String()))
			return e.response(req), nil
		}
	}
	return c.base.RoundTrip(req)
}

func (e Entry) response(req *http.Request) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(HitHeader, "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// key matches requests to entries by URL with the fragment removed.
func key(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}
