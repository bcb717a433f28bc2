package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/mapexport/internal/config"
	"github.com/matzehuels/mapexport/pkg/cache"
)

func TestCachePathCommand(t *testing.T) {
	isolate(t)
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	out, err := run(t, New(io.Discard, LogInfo), "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cacheHome, config.AppName)
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}
}

func TestCacheClearCommand(t *testing.T) {
	isolate(t)
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	fc, err := cache.NewFileCache(filepath.Join(cacheHome, config.AppName))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := fc.Set(ctx, "tile:a", []byte("a"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := fc.Set(ctx, "tile:b", []byte("b"), time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, New(io.Discard, LogInfo), "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(ctx, "tile:a"); ok {
		t.Error("entry survived cache clear")
	}
}

func TestNewCache(t *testing.T) {
	isolate(t)
	c := New(io.Discard, LogInfo)
	ctx := context.Background()

	tests := []struct {
		name    string
		backend string
		noCache bool
		want    string
	}{
		{"file", config.CacheFile, false, "*cache.FileCache"},
		{"none", config.CacheNone, false, "*cache.NullCache"},
		{"no-cache flag", config.CacheFile, true, "*cache.NullCache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Backend = tt.backend
			store, err := c.newCache(ctx, cfg, tt.noCache)
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			if got := typeName(store); got != tt.want {
				t.Errorf("newCache() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewCacheRedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := New(io.Discard, LogInfo).newCache(ctx, cfg, false); err == nil {
		t.Error("unreachable redis should fail")
	}
}

func typeName(c cache.Cache) string {
	switch c.(type) {
	case *cache.FileCache:
		return "*cache.FileCache"
	case *cache.NullCache:
		return "*cache.NullCache"
	case *cache.RedisCache:
		return "*cache.RedisCache"
	}
	return "unknown"
}
