package tiles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
)

// TileJSON is the subset of a TileJSON 3.0 document merged into sources.
type TileJSON struct {
	TileJSON    string    `json:"tilejson,omitempty"`
	Name        string    `json:"name,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Tiles       []string  `json:"tiles"`
	MinZoom     *int      `json:"minzoom,omitempty"`
	MaxZoom     *int      `json:"maxzoom,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"`
	Scheme      string    `json:"scheme,omitempty"`
	TileSize    int       `json:"tileSize,omitempty"`
}

// ResolveSource inlines the TileJSON document referenced by a source's url.
// Sources that already list tiles, or have no url, are returned as a copy
// unchanged. Relative tile URLs are resolved against the TileJSON URL.
func ResolveSource(ctx context.Context, src mapstyle.Source, f Fetcher, transform RequestTransform) (mapstyle.Source, error) {
	out := make(mapstyle.Source, len(src)+6)
	for k, v := range src {
		out[k] = v
	}
	if len(src.Tiles()) > 0 || src.URL() == "" {
		return out, nil
	}

	req := transform.Apply(src.URL(), KindSource)
	data, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch tilejson %s: %w", src.URL(), err)
	}
	var tj TileJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("decode tilejson %s: %w", src.URL(), err)
	}
	if len(tj.Tiles) == 0 {
		return nil, fmt.Errorf("tilejson %s lists no tiles", src.URL())
	}

	tiles := make([]any, len(tj.Tiles))
	for i, t := range tj.Tiles {
		tiles[i] = resolveTileURL(src.URL(), t)
	}
	out["tiles"] = tiles
	if tj.MinZoom != nil {
		out["minzoom"] = float64(*tj.MinZoom)
	}
	if tj.MaxZoom != nil {
		out["maxzoom"] = float64(*tj.MaxZoom)
	}
	if len(tj.Bounds) == 4 {
		b := make([]any, 4)
		for i, v := range tj.Bounds {
			b[i] = v
		}
		out["bounds"] = b
	}
	if tj.Scheme != "" {
		out["scheme"] = tj.Scheme
	}
	if tj.TileSize > 0 {
		if _, set := src["tileSize"]; !set {
			out["tileSize"] = float64(tj.TileSize)
		}
	}
	if tj.Attribution != "" {
		out["attribution"] = tj.Attribution
	}
	return out, nil
}

// resolveTileURL resolves tile against base without escaping the
// {z}/{x}/{y} placeholders.
func resolveTileURL(base, tile string) string {
	if strings.Contains(tile, "://") {
		return tile
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return tile
	}
	origin := u.Scheme + "://" + u.Host
	if strings.HasPrefix(tile, "/") {
		return origin + tile
	}
	return origin + path.Join(path.Dir(u.Path), tile)
}
