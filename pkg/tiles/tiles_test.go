package tiles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/matzehuels/mapexport/pkg/cache"
	"github.com/matzehuels/mapexport/pkg/mapstyle"
)

func TestResourceKindString(t *testing.T) {
	for _, k := range []ResourceKind{KindStyle, KindSource, KindTile, KindGlyphs, KindSprite} {
		if got := ParseResourceKind(k.String()); got != k {
			t.Errorf("ParseResourceKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ResourceKind(99).String() != "Unknown" {
		t.Error("out of range kind should be Unknown")
	}
}

func TestWithCredential(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no query", "https://api.example.com/v4/tiles/1/2/3.png", "https://api.example.com/v4/tiles/1/2/3.png?access_token=tok"},
		{"existing query", "https://api.example.com/t.png?fresh=true", "https://api.example.com/t.png?access_token=tok&fresh=true"},
		{"overrides global", "https://api.example.com/t.png?access_token=global", "https://api.example.com/t.png?access_token=tok"},
		{"mbtiles untouched", "mbtiles:///data/a.mbtiles/1/2/3", "mbtiles:///data/a.mbtiles/1/2/3"},
	}

	tr := WithCredential(nil, "tok")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Apply(tt.in, KindTile).URL; got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if WithCredential(nil, "") != nil {
		t.Error("empty token should return next unchanged")
	}
}

func TestWithHeaders(t *testing.T) {
	base := RequestTransform(func(u string, k ResourceKind) Request {
		return Request{URL: u, Headers: map[string]string{"X-Own": "inner"}}
	})
	tr := WithHeaders(base, map[string]string{"X-Own": "outer", "Referer": "https://app"})
	req := tr.Apply("https://a/b", KindStyle)
	if req.Headers["X-Own"] != "inner" || req.Headers["Referer"] != "https://app" {
		t.Errorf("headers = %v", req.Headers)
	}
	if req.Kind != KindStyle {
		t.Errorf("Kind = %v", req.Kind)
	}
}

func TestHTTPFetcherCaches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("tile-bytes"))
	}))
	defer server.Close()

	store, _ := cache.NewFileCache(t.TempDir())
	f := NewHTTPFetcher(WithCache(store, time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		data, err := f.Fetch(ctx, Request{URL: server.URL + "/1/0/0.png", Kind: KindTile})
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if string(data) != "tile-bytes" {
			t.Errorf("Fetch() = %q", data)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestHTTPFetcherRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithRetry(3, time.Millisecond))
	data, err := f.Fetch(context.Background(), Request{URL: server.URL})
	if err != nil || string(data) != "ok" {
		t.Fatalf("Fetch() = %q, %v", data, err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestHTTPFetcherNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := NewHTTPFetcher(WithRetry(3, time.Millisecond))
	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func newArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mbtiles")
	m, err := CreateMBTiles(path, map[string]string{
		"name":    "test",
		"format":  "png",
		"minzoom": "0",
		"maxzoom": "2",
		"bounds":  "-10,-10,10,10",
	})
	if err != nil {
		t.Fatalf("CreateMBTiles: %v", err)
	}
	defer m.Close()
	ctx := context.Background()
	if err := m.PutTile(ctx, maptile.Tile{X: 1, Y: 0, Z: 1}, []byte("z1-x1-y0")); err != nil {
		t.Fatalf("PutTile: %v", err)
	}
	return path
}

func TestMBTiles(t *testing.T) {
	path := newArchive(t)
	ctx := context.Background()

	m, err := OpenMBTiles(path)
	if err != nil {
		t.Fatalf("OpenMBTiles: %v", err)
	}
	defer m.Close()

	data, err := m.Tile(ctx, maptile.Tile{X: 1, Y: 0, Z: 1})
	if err != nil || string(data) != "z1-x1-y0" {
		t.Fatalf("Tile() = %q, %v", data, err)
	}

	// Stored in TMS order: XYZ y=0 at z1 is row 1.
	var row int
	if err := m.db.QueryRow("SELECT tile_row FROM tiles").Scan(&row); err != nil {
		t.Fatal(err)
	}
	if row != 1 {
		t.Errorf("tile_row = %d, want 1", row)
	}

	if _, err := m.Tile(ctx, maptile.Tile{X: 0, Y: 0, Z: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing tile error = %v", err)
	}

	tj, err := m.TileJSON(ctx)
	if err != nil {
		t.Fatalf("TileJSON: %v", err)
	}
	if *tj.MaxZoom != 2 || len(tj.Bounds) != 4 || tj.Tiles[0] != MBTilesScheme+path+"/{z}/{x}/{y}" {
		t.Errorf("TileJSON = %+v", tj)
	}
}

func TestParseMBTilesURL(t *testing.T) {
	path, tile, ok := parseMBTilesURL("mbtiles:///data/world.mbtiles/3/4/2")
	if !ok || path != "/data/world.mbtiles" || tile != (maptile.Tile{X: 4, Y: 2, Z: 3}) {
		t.Errorf("parse = %q, %v, %v", path, tile, ok)
	}
	path, _, ok = parseMBTilesURL("mbtiles:///data/world.mbtiles")
	if ok || path != "/data/world.mbtiles" {
		t.Errorf("archive-only parse = %q, %v", path, ok)
	}
}

func TestRouterAndResolveMBTilesSource(t *testing.T) {
	path := newArchive(t)
	r := NewRouter(FetcherFunc(func(ctx context.Context, req Request) ([]byte, error) {
		t.Errorf("unexpected http fetch of %s", req.URL)
		return nil, ErrNotFound
	}))
	defer r.Close()
	ctx := context.Background()

	src, err := ResolveSource(ctx, mapstyle.Source{"type": "raster", "url": MBTilesScheme + path}, r, nil)
	if err != nil {
		t.Fatalf("ResolveSource: %v", err)
	}
	if src.MaxZoom() != 2 || src.Scheme() != "xyz" {
		t.Errorf("resolved source = %v", src)
	}

	url := Expand(src.Tiles()[0], maptile.Tile{X: 1, Y: 0, Z: 1}, ExpandOptions{Scheme: src.Scheme()})
	data, err := r.Fetch(ctx, Request{URL: url, Kind: KindTile})
	if err != nil || string(data) != "z1-x1-y0" {
		t.Errorf("Router.Fetch(%s) = %q, %v", url, data, err)
	}
}

func TestRouterLocalDisabled(t *testing.T) {
	path := newArchive(t)
	r := NewRouter(FetcherFunc(func(ctx context.Context, req Request) ([]byte, error) {
		return []byte("remote"), nil
	}))
	defer r.Close()
	r.SetLocal(false)
	ctx := context.Background()

	_, err := r.Fetch(ctx, Request{URL: MBTilesScheme + path + "/1/1/0", Kind: KindTile})
	if !errors.Is(err, ErrLocalDisabled) {
		t.Errorf("Fetch(mbtiles) error = %v, want ErrLocalDisabled", err)
	}
	if data, err := r.Fetch(ctx, Request{URL: "https://tiles.example.com/1/1/0.png"}); err != nil || string(data) != "remote" {
		t.Errorf("Fetch(https) = %q, %v", data, err)
	}

	r.SetLocal(true)
	if data, err := r.Fetch(ctx, Request{URL: MBTilesScheme + path + "/1/1/0", Kind: KindTile}); err != nil || string(data) != "z1-x1-y0" {
		t.Errorf("Fetch(mbtiles) after enabling = %q, %v", data, err)
	}
}

func TestArchivePathRejectsConnectionParams(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"query", filepath.Join(dir, "created.db") + "?mode=rwc&"},
		{"fragment", filepath.Join(dir, "created.db") + "#x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenMBTiles(tt.path); !errors.Is(err, ErrInvalidArchivePath) {
				t.Errorf("OpenMBTiles(%q) error = %v", tt.path, err)
			}
			if _, err := CreateMBTiles(tt.path, nil); !errors.Is(err, ErrInvalidArchivePath) {
				t.Errorf("CreateMBTiles(%q) error = %v", tt.path, err)
			}
		})
	}

	r := NewRouter(nil)
	defer r.Close()
	url := MBTilesScheme + filepath.Join(dir, "created.db") + "?mode=rwc&/0/0/0"
	if _, err := r.Fetch(context.Background(), Request{URL: url, Kind: KindTile}); err == nil {
		t.Error("Router.Fetch accepted an archive path with connection parameters")
	}
	if _, err := os.Stat(filepath.Join(dir, "created.db")); !os.IsNotExist(err) {
		t.Errorf("archive file was created: %v", err)
	}
}

func TestResolveSourceHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tilejson": "3.0.0",
			"tiles":    []string{"tiles/{z}/{x}/{y}.png", "/abs/{z}/{x}/{y}.png"},
			"minzoom":  1,
			"maxzoom":  9,
			"scheme":   "tms",
		})
	}))
	defer server.Close()

	src := mapstyle.Source{"type": "raster", "url": server.URL + "/v1/source.json", "tileSize": 256.0}
	out, err := ResolveSource(context.Background(), src, NewHTTPFetcher(WithRetry(1, 0)), WithCredential(nil, "tok"))
	if err != nil {
		t.Fatalf("ResolveSource: %v", err)
	}
	tiles := out.Tiles()
	if len(tiles) != 2 {
		t.Fatalf("tiles = %v", tiles)
	}
	if tiles[0] != server.URL+"/v1/tiles/{z}/{x}/{y}.png" || tiles[1] != server.URL+"/abs/{z}/{x}/{y}.png" {
		t.Errorf("tiles = %v", tiles)
	}
	if out.MinZoom() != 1 || out.MaxZoom() != 9 || out.Scheme() != "tms" || out.TileSize() != 256 {
		t.Errorf("merged source = %v", out)
	}
	if _, ok := src["tiles"]; ok {
		t.Error("ResolveSource mutated its input")
	}
}

func TestResolveSourceWithTilesIsCopy(t *testing.T) {
	src := mapstyle.Source{"type": "raster", "tiles": []any{"https://a/{z}/{x}/{y}.png"}}
	out, err := ResolveSource(context.Background(), src, nil, nil)
	if err != nil {
		t.Fatalf("ResolveSource: %v", err)
	}
	out["type"] = "changed"
	if src.Type() != "raster" {
		t.Error("returned source aliases the input")
	}
}

func TestExpand(t *testing.T) {
	tile := maptile.Tile{X: 3, Y: 5, Z: 3}
	tests := []struct {
		name     string
		template string
		opts     ExpandOptions
		want     string
	}{
		{"xyz", "https://t/{z}/{x}/{y}.png", ExpandOptions{}, "https://t/3/3/5.png"},
		{"tms", "https://t/{z}/{x}/{y}.png", ExpandOptions{Scheme: "tms"}, "https://t/3/3/2.png"},
		{"subdomain", "https://{s}.t/{z}.png", ExpandOptions{Subdomains: []string{"a", "b"}}, "https://a.t/3.png"},
		{"quadkey", "https://t/{quadkey}.jpeg", ExpandOptions{}, "https://t/213.jpeg"},
		{"ratio", "https://t/{z}/{x}/{y}{ratio}.png", ExpandOptions{PixelRatio: 3.125}, "https://t/3/3/5@2x.png"},
		{"no ratio", "https://t/{z}/{x}/{y}{ratio}.png", ExpandOptions{PixelRatio: 1}, "https://t/3/3/5.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.template, tile, tt.opts); got != tt.want {
				t.Errorf("Expand() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExpandBBox(t *testing.T) {
	got := Expand("{bbox-epsg-3857}", maptile.Tile{Z: 0}, ExpandOptions{})
	parts := strings.Split(got, ",")
	if len(parts) != 4 || !strings.HasPrefix(parts[0], "-20037508.34") || !strings.HasPrefix(parts[3], "20037508.34") {
		t.Errorf("bbox = %s", got)
	}
}

func TestCover(t *testing.T) {
	world := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	if n := len(Cover(world, 0)); n != 1 {
		t.Errorf("z0 world cover = %d tiles, want 1", n)
	}
	if n := len(Cover(world, 1)); n != 4 {
		t.Errorf("z1 world cover = %d tiles, want 4", n)
	}

	ne := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}}
	set := Cover(ne, 1)
	if len(set) != 1 || !set[maptile.Tile{X: 1, Y: 0, Z: 1}] {
		t.Errorf("NE quadrant cover = %v", set)
	}

	if n := len(Cover(orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{5, 5}}, 3)); n != 0 {
		t.Errorf("degenerate bound cover = %d tiles, want 0", n)
	}
}

func TestIntersect(t *testing.T) {
	a := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	if !Intersect(a, orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{20, 20}}) {
		t.Error("overlapping bounds should intersect")
	}
	if Intersect(a, orb.Bound{Min: orb.Point{11, 0}, Max: orb.Point{20, 10}}) {
		t.Error("disjoint bounds should not intersect")
	}
}
