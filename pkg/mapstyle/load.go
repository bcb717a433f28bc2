package mapstyle

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FetchFunc retrieves the document at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Load reads a style from a local path or an http(s) URL.
// URLs are retrieved through fetch so they pass the same request transform,
// retry and cache as tiles.
func Load(ctx context.Context, location string, fetch FetchFunc) (*Style, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if fetch == nil {
			return nil, fmt.Errorf("load style %s: no fetcher configured", location)
		}
		data, err = fetch(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("load style %s: %w", location, err)
	}
	return Parse(data)
}
