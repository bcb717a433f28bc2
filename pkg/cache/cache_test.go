package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	t.Run("miss", func(t *testing.T) {
		_, hit, err := c.Get(ctx, "absent")
		if err != nil || hit {
			t.Errorf("Get(absent) = %v, %v; want miss", hit, err)
		}
	})

	t.Run("roundtrip", func(t *testing.T) {
		if err := c.Set(ctx, "tile", []byte{0x89, 'P', 'N', 'G'}, time.Hour); err != nil {
			t.Fatalf("Set: %v", err)
		}
		data, hit, err := c.Get(ctx, "tile")
		if err != nil || !hit {
			t.Fatalf("Get = %v, %v; want hit", hit, err)
		}
		if string(data) != "\x89PNG" {
			t.Errorf("data = %q", data)
		}
	})

	t.Run("expired", func(t *testing.T) {
		if err := c.Set(ctx, "short", []byte("x"), time.Millisecond); err != nil {
			t.Fatalf("Set: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		_, hit, _ := c.Get(ctx, "short")
		if hit {
			t.Error("expired entry should miss")
		}
	})

	t.Run("corrupt entry", func(t *testing.T) {
		path := c.path("corrupt")
		if err := c.Set(ctx, "corrupt", []byte("x"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		_, hit, err := c.Get(ctx, "corrupt")
		if err != nil || hit {
			t.Errorf("corrupt entry = %v, %v; want miss without error", hit, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		_ = c.Set(ctx, "gone", []byte("x"), 0)
		if err := c.Delete(ctx, "gone"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := c.Delete(ctx, "gone"); err != nil {
			t.Errorf("second Delete should be a no-op, got %v", err)
		}
	})
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d entries, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Errorf("root dir should be kept: %v", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	u1 := k.URLKey("https://example.com/style.json?access_token=secret", nil)
	if !strings.HasPrefix(u1, "url:") || strings.Contains(u1, "secret") {
		t.Errorf("URLKey leaks the URL: %s", u1)
	}
	u2 := k.URLKey("https://example.com/style.json?access_token=secret", map[string]string{"Authorization": "Bearer x"})
	if u1 == u2 {
		t.Error("headers should change the key")
	}
	if k.URLKey("a", nil) != k.URLKey("a", map[string]string{}) {
		t.Error("nil and empty headers should produce the same key")
	}

	a1 := k.ArtifactKey("snap", ArtifactKeyOpts{Format: "png", WidthMM: 297, HeightMM: 210, DPI: 300})
	a2 := k.ArtifactKey("snap", ArtifactKeyOpts{Format: "pdf", WidthMM: 297, HeightMM: 210, DPI: 300})
	if a1 == a2 {
		t.Error("Different ArtifactKeyOpts should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "tenant:1:")

	if key := scoped.URLKey("https://example.com/style.json", nil); !strings.HasPrefix(key, "tenant:1:url:") {
		t.Errorf("ScopedKeyer URLKey should be prefixed: %s", key)
	}
	if key := scoped.ArtifactKey("h", ArtifactKeyOpts{}); !strings.HasPrefix(key, "tenant:1:artifact:") {
		t.Errorf("ScopedKeyer ArtifactKey should be prefixed: %s", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	want := "prefix:" + NewDefaultKeyer().URLKey("u", nil)
	if got := scoped.URLKey("u", nil); got != want {
		t.Errorf("Unexpected key with nil inner: %s", got)
	}
}
