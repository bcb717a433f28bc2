package httputil

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/mapexport/pkg/cache"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	return NewCache(store, ttl)
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Hour)

	type tileJSON struct {
		Tiles   []string `json:"tiles"`
		MaxZoom int      `json:"maxzoom"`
	}
	in := tileJSON{Tiles: []string{"https://a/{z}/{x}/{y}.png"}, MaxZoom: 14}
	if err := c.Set(ctx, "osm", in); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var out tileJSON
	ok, err := c.Get(ctx, "osm", &out)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want true, nil", ok, err)
	}
	if out.MaxZoom != 14 || len(out.Tiles) != 1 {
		t.Errorf("Get() decoded %+v", out)
	}
}

func TestCache_Miss(t *testing.T) {
	c := newTestCache(t, time.Hour)
	var result string
	ok, err := c.Get(context.Background(), "missing", &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() returned true for missing key")
	}
}

func TestCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10*time.Millisecond)

	if err := c.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	var res string
	ok, err := c.Get(ctx, "key", &res)
	if err != nil || ok {
		t.Errorf("Get() = %v, %v; want expired miss", ok, err)
	}
}

func TestCache_NilStore(t *testing.T) {
	c := NewCache(nil, time.Hour)
	if err := c.Set(context.Background(), "k", 1); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	var v int
	if ok, _ := c.Get(context.Background(), "k", &v); ok {
		t.Error("nil store should never hit")
	}
}

func TestCache_Namespace(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Hour)

	t.Run("basicNamespacing", func(t *testing.T) {
		styles := c.Namespace("style:")
		tj := c.Namespace("tilejson:")

		if err := styles.Set(ctx, "osm", "style-data"); err != nil {
			t.Fatalf("styles.Set() failed: %v", err)
		}
		if err := tj.Set(ctx, "osm", "tilejson-data"); err != nil {
			t.Fatalf("tj.Set() failed: %v", err)
		}

		var a, b string
		if ok, err := styles.Get(ctx, "osm", &a); !ok || err != nil {
			t.Fatalf("styles.Get() = %v, %v", ok, err)
		}
		if ok, err := tj.Get(ctx, "osm", &b); !ok || err != nil {
			t.Fatalf("tj.Get() = %v, %v", ok, err)
		}
		if a != "style-data" || b != "tilejson-data" {
			t.Errorf("namespace isolation violated: %q, %q", a, b)
		}
	})

	t.Run("chainedNamespacing", func(t *testing.T) {
		outer := c.Namespace("v1:")
		inner := outer.Namespace("style:")

		if err := inner.Set(ctx, "test", "value"); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}

		var result string
		ok, err := inner.Get(ctx, "test", &result)
		if !ok || err != nil || result != "value" {
			t.Errorf("Get() = %v, %v, %q; want true, nil, %q", ok, err, result, "value")
		}

		if found, _ := outer.Get(ctx, "test", &result); found {
			t.Error("value accessible without full namespace chain")
		}
	})

	t.Run("preservesTTL", func(t *testing.T) {
		if ns := c.Namespace("x:"); ns.TTL() != c.TTL() {
			t.Errorf("TTL() = %v, want %v", ns.TTL(), c.TTL())
		}
	})
}
