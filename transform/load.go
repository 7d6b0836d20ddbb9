package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/signadot/scenesync/ndarray"
)

// Fetcher retrieves the raw bytes named by a URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// URLFetcher fetches plain file paths, file:// URLs and http(s):// URLs
// without restriction. Servers decoding chains from untrusted peers wrap it
// in a RootFetcher.
type URLFetcher struct {
	// Client is used for http(s) URLs, http.DefaultClient when nil.
	Client *http.Client
}

// DefaultFetcher is the Fetcher used when none is configured.
var DefaultFetcher Fetcher = &URLFetcher{}

func (f *URLFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare paths, including windows drive letters
		return os.ReadFile(uri)
	}
	switch u.Scheme {
	case "file":
		return os.ReadFile(u.Path)
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, uri)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", uri, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Load yields the array stored at URI, in .npy format or as a nested list
// JSON document. The array is fetched once and cached for the lifetime of
// the link. A chain decoded anew for every frame gets new links, so caching
// across frames belongs to the Fetcher, see CachedFetcher.
type Load struct {
	Chainable
	URI string

	fetcher Fetcher
	cache   *ndarray.Array
}

type loadParams struct {
	DataURL string `json:"data_url"`
}

// NewLoad returns a Load link fetching through f, or DefaultFetcher if f is
// nil.
func NewLoad(uri string, f Fetcher) *Load {
	if f == nil {
		f = DefaultFetcher
	}
	return &Load{URI: uri, fetcher: f}
}

func (l *Load) Type() string { return TypeLoad }
func (l *Load) Params() any  { return loadParams{DataURL: l.URI} }

func (l *Load) Transform(ctx context.Context, _ *ndarray.Array) (*ndarray.Array, error) {
	if l.cache == nil {
		f := l.fetcher
		if f == nil {
			f = DefaultFetcher
		}
		d, err := f.Fetch(ctx, l.URI)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.URI, err)
		}
		a, err := decodeArray(d)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", l.URI, err)
		}
		l.cache = a
	}
	return l.cache.Clone(), nil
}

func decodeArray(d []byte) (*ndarray.Array, error) {
	if ndarray.IsNPY(d) {
		return ndarray.DecodeNPY(d)
	}
	a := &ndarray.Array{}
	if err := json.Unmarshal(d, a); err != nil {
		return nil, err
	}
	return a, nil
}
