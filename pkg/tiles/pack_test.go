package tiles

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
)

func TestPack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1/1/1.png" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "tile%s", r.URL.Path)
	}))
	defer server.Close()

	dst, err := CreateMBTiles(filepath.Join(t.TempDir(), "out.mbtiles"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	src := mapstyle.Source{"type": "raster", "tiles": []any{server.URL + "/{z}/{x}/{y}.png"}}
	f := NewHTTPFetcher(WithRetry(1, 0))
	stats, err := Pack(context.Background(), f, src, dst, PackOptions{MinZoom: 0, MaxZoom: 1, Concurrency: 2})
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	if stats.Tiles != 4 || stats.Missing != 1 {
		t.Errorf("stats = %+v, want 4 tiles and 1 missing", stats)
	}

	ctx := context.Background()
	data, err := dst.Tile(ctx, maptile.Tile{X: 1, Y: 0, Z: 1})
	if err != nil || string(data) != "tile/1/1/0.png" {
		t.Errorf("Tile(1/1/0) = %q, %v", data, err)
	}
	if _, err := dst.Tile(ctx, maptile.Tile{X: 1, Y: 1, Z: 1}); err != ErrNotFound {
		t.Errorf("Tile(1/1/1) error = %v, want ErrNotFound", err)
	}
}

func TestPackBoundAndZoomRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	dst, err := CreateMBTiles(filepath.Join(t.TempDir(), "out.mbtiles"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	src := mapstyle.Source{"type": "raster", "tiles": []any{server.URL + "/{z}/{x}/{y}.png"}, "maxzoom": 2.0}
	opts := PackOptions{
		// North-east quadrant only.
		Bound:   orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}},
		MinZoom: 1,
		MaxZoom: 5,
	}
	stats, err := Pack(context.Background(), NewHTTPFetcher(WithRetry(1, 0)), src, dst, opts)
	if err != nil {
		t.Fatalf("Pack() = %v", err)
	}
	// One tile at z1 and one at z2; maxzoom caps the range.
	if stats.Tiles != 2 {
		t.Errorf("Tiles = %d, want 2", stats.Tiles)
	}

	opts.MinZoom, opts.MaxZoom = 3, 4
	if _, err := Pack(context.Background(), NewHTTPFetcher(), src, dst, opts); err == nil {
		t.Error("zoom range above source maxzoom should fail")
	}
}

func TestPackMetadata(t *testing.T) {
	src := mapstyle.Source{
		"type":        "raster",
		"tiles":       []any{"https://tiles.example.com/{z}/{x}/{y}.jpg?key=1"},
		"attribution": "© Example",
	}
	meta := PackMetadata("city", src, PackOptions{
		Bound:   orb.Bound{Min: orb.Point{13.1, 52.3}, Max: orb.Point{13.8, 52.7}},
		MinZoom: 8,
		MaxZoom: 12,
	})
	want := map[string]string{
		"name":        "city",
		"format":      "jpg",
		"minzoom":     "8",
		"maxzoom":     "12",
		"bounds":      "13.100000,52.300000,13.800000,52.700000",
		"attribution": "© Example",
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("meta[%q] = %q, want %q", k, meta[k], v)
		}
	}
}
