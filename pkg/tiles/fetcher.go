package tiles

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapexport/pkg/cache"
	"github.com/matzehuels/mapexport/pkg/httputil"
	"github.com/matzehuels/mapexport/pkg/observability"
)

// ErrNotFound is returned when a tile or document does not exist.
// The raster engine treats it as an empty tile.
var ErrNotFound = httputil.ErrNotFound

// Fetcher retrieves the bytes behind a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, req Request) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]byte, error) { return f(ctx, req) }

// HTTPFetcher fetches resources over HTTP.
// Responses are cached by URL and headers, style documents for at most
// [cache.StyleTTL]. Network failures, 5xx and 429 responses are retried
// with exponential backoff.
type HTTPFetcher struct {
	client   *httputil.Client
	cache    cache.Cache
	keyer    cache.Keyer
	ttl      time.Duration
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

// HTTPOption configures an [HTTPFetcher].
type HTTPOption func(*HTTPFetcher)

// WithCache stores responses in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.cache = c
		}
		f.ttl = ttl
	}
}

// WithKeyer overrides the cache key derivation.
func WithKeyer(k cache.Keyer) HTTPOption {
	return func(f *HTTPFetcher) {
		if k != nil {
			f.keyer = k
		}
	}
}

// WithClient sets the HTTP client.
func WithClient(c *httputil.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.attempts = attempts
		f.delay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. Without options it does not cache
// and retries 3 times starting at 1 second.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   httputil.NewClient(nil),
		cache:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		ttl:      cache.TileTTL,
		attempts: 3,
		delay:    time.Second,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements [Fetcher].
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	key := f.keyer.URLKey(req.URL, req.Headers)
	kind := req.Kind.String()
	hooks := observability.Cache()

	if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
		hooks.OnCacheHit(ctx, kind)
		return data, nil
	} else if err != nil {
		f.logger.Warn("cache read failed", "kind", kind, "error", err)
	}
	hooks.OnCacheMiss(ctx, kind)

	var data []byte
	err := httputil.Retry(ctx, f.attempts, f.delay, func() error {
		var err error
		data, _, err = f.client.Fetch(ctx, req.URL, req.Headers)
		return err
	})
	if err != nil {
		return nil, err
	}

	ttl := f.ttl
	if req.Kind == KindStyle && (ttl == 0 || ttl > cache.StyleTTL) {
		ttl = cache.StyleTTL
	}
	if err := f.cache.Set(ctx, key, data, ttl); err != nil {
		f.logger.Warn("cache write failed", "kind", kind, "error", err)
	} else {
		hooks.OnCacheSet(ctx, kind, len(data))
	}
	return data, nil
}
