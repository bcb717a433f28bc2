package tiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrLocalDisabled is returned for mbtiles:// requests when the router
// only serves remote resources.
var ErrLocalDisabled = errors.New("local tile archives are disabled")

// Router dispatches requests by URL scheme: mbtiles:// URLs go to archives
// opened on first use, everything else to the HTTP fetcher.
type Router struct {
	http Fetcher

	mu       sync.Mutex
	local    bool
	archives map[string]*MBTiles
}

// NewRouter creates a Router. A nil http fetcher gets a default [HTTPFetcher].
func NewRouter(http Fetcher) *Router {
	if http == nil {
		http = NewHTTPFetcher()
	}
	return &Router{http: http, local: true, archives: make(map[string]*MBTiles)}
}

// SetLocal enables or disables mbtiles:// archives. Services that render
// styles from untrusted requests turn them off.
func (r *Router) SetLocal(allow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = allow
}

// Fetch implements [Fetcher].
func (r *Router) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.HasPrefix(req.URL, MBTilesScheme) {
		return r.http.Fetch(ctx, req)
	}
	path, _, _ := parseMBTilesURL(req.URL)
	archive, err := r.Archive(path)
	if err != nil {
		return nil, err
	}
	return archive.Fetch(ctx, req)
}

// Archive returns the open archive at path, opening it if needed.
func (r *Router) Archive(path string) (*MBTiles, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.local {
		return nil, fmt.Errorf("%w: %s", ErrLocalDisabled, path)
	}
	if a, ok := r.archives[path]; ok {
		return a, nil
	}
	a, err := OpenMBTiles(path)
	if err != nil {
		return nil, err
	}
	r.archives[path] = a
	return a, nil
}

// Close closes every archive the router opened.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for path, a := range r.archives {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.archives, path)
	}
	return errors.Join(errs...)
}
