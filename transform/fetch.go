package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrSourceNotAllowed is returned for Load sources outside the roots of a
// RootFetcher.
var ErrSourceNotAllowed = errors.New("load source not allowed")

// Checker is implemented by fetchers which can refuse a URI before any
// fetch. Registries check the sources of decoded Load links with it.
type Checker interface {
	Check(uri string) error
}

// RootFetcher fetches only below a fixed set of roots. A root is a local
// directory, as a path or file:// URL, or an http(s) URL prefix. With no
// roots every source is refused.
type RootFetcher struct {
	dirs []string
	urls []*url.URL
	next Fetcher
}

// NewRootFetcher returns a RootFetcher delegating allowed fetches to next.
// When next is nil a URLFetcher is used whose client refuses redirects
// leaving the roots.
func NewRootFetcher(roots []string, next Fetcher) (*RootFetcher, error) {
	f := &RootFetcher{next: next}
	for _, r := range roots {
		u, err := url.Parse(r)
		switch {
		case err != nil || u.Scheme == "" || len(u.Scheme) == 1:
			f.dirs = append(f.dirs, localPath(r))
		case u.Scheme == "file":
			f.dirs = append(f.dirs, localPath(u.Path))
		case u.Scheme == "http" || u.Scheme == "https":
			if u.Host == "" {
				return nil, fmt.Errorf("load root %q has no host", r)
			}
			u.Path = strings.TrimSuffix(path.Clean("/"+u.Path), "/") + "/"
			f.urls = append(f.urls, u)
		default:
			return nil, fmt.Errorf("unsupported scheme %q in load root %q", u.Scheme, r)
		}
	}
	if f.next == nil {
		f.next = &URLFetcher{Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return f.Check(req.URL.String())
			},
		}}
	}
	return f, nil
}

// localPath returns p absolute and cleaned, with symbolic links resolved
// when it exists.
func localPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Check reports whether uri is below one of the roots.
func (f *RootFetcher) Check(uri string) error {
	u, err := url.Parse(uri)
	switch {
	case err != nil || u.Scheme == "" || len(u.Scheme) == 1:
		if f.localAllowed(uri) {
			return nil
		}
	case u.Scheme == "file":
		if f.localAllowed(u.Path) {
			return nil
		}
	case u.Scheme == "http" || u.Scheme == "https":
		if u.User == nil && f.urlAllowed(u) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSourceNotAllowed, uri)
}

func (f *RootFetcher) localAllowed(p string) bool {
	p = localPath(p)
	for _, d := range f.dirs {
		if within(d, p) {
			return true
		}
	}
	return false
}

func (f *RootFetcher) urlAllowed(u *url.URL) bool {
	p := path.Clean("/" + u.Path)
	for _, r := range f.urls {
		if r.Scheme == u.Scheme && strings.EqualFold(r.Host, u.Host) &&
			(p+"/" == r.Path || strings.HasPrefix(p, r.Path)) {
			return true
		}
	}
	return false
}

func (f *RootFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := f.Check(uri); err != nil {
		return nil, err
	}
	return f.next.Fetch(ctx, uri)
}

// CachedFetcher keeps the bytes of up to a fixed number of sources, first
// fetched first evicted. Cached sources are never fetched again, so it
// suits immutable data. It is safe for concurrent use.
type CachedFetcher struct {
	next Fetcher
	max  int

	mu    sync.Mutex
	data  map[string][]byte
	order []string
}

// NewCachedFetcher caches up to max sources fetched through next.
func NewCachedFetcher(next Fetcher, max int) *CachedFetcher {
	return &CachedFetcher{next: next, max: max, data: map[string][]byte{}}
}

func (c *CachedFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	c.mu.Lock()
	d, ok := c.data[uri]
	c.mu.Unlock()
	if ok {
		return d, nil
	}
	d, err := c.next.Fetch(ctx, uri)
	if err != nil || c.max <= 0 {
		return d, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[uri]; !ok {
		for len(c.order) >= c.max {
			delete(c.data, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, uri)
	}
	c.data[uri] = d
	return d, nil
}

// Check delegates to the wrapped fetcher when it is a Checker.
func (c *CachedFetcher) Check(uri string) error {
	if ch, ok := c.next.(Checker); ok {
		return ch.Check(uri)
	}
	return nil
}

// Len returns the number of cached sources.
func (c *CachedFetcher) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
