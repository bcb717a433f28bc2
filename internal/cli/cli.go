package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mapexport/internal/config"
	"github.com/matzehuels/mapexport/pkg/buildinfo"
	"github.com/matzehuels/mapexport/pkg/cache"
	"github.com/matzehuels/mapexport/pkg/pipeline"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/render/chromium"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// =============================================================================
// Constants
// =============================================================================

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath is set by --config; empty means the XDG default.
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mapexport",
		Short: "mapexport renders map snapshots to print-ready files",
		Long: `mapexport renders a MapLibre style off-screen at a chosen paper size,
orientation and resolution, and writes the result as map.png, map.jpg,
map.pdf or map.svg.

It runs as a one-shot command (export), as an HTTP service (serve), and can
pack raster tiles into an MBTiles archive for offline exports (pack).`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/mapexport/config.toml)")

	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.sizesCommand())
	root.AddCommand(c.packCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration for the current invocation.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("config loaded", "engine", cfg.Engine.Kind, "cache", cfg.Cache.Backend)
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. Unlike the HTTP
// service, the CLI may read styles from local files.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewDefaultKeyer()
	fetcher := c.newFetcher(cfg, store, keyer)
	engine := c.newEngine(cfg, fetcher)

	runner := pipeline.NewRunner(engine, fetcher, store, keyer, c.Logger)
	runner.Defaults = cfg.Export
	runner.Timeout = cfg.Engine.Timeout
	runner.PDFAuthor = cfg.PDF.Author
	runner.ArtifactTTL = cfg.Server.ArtifactTTL
	runner.AllowLocalStyles = true
	return runner, nil
}

// newCache opens the configured cache backend. A file cache that cannot be
// created degrades to no caching; an unreachable Redis or MongoDB is an
// error.
func (c *CLI) newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		return rc, nil
	case config.CacheMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        cfg.Cache.MongoURI,
			Database:   cfg.Cache.MongoDatabase,
			Collection: cfg.Cache.MongoCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return mc, nil
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache unavailable, caching disabled", "dir", dir, "error", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// newFetcher routes mbtiles:// URLs to local archives and everything else
// through the caching HTTP fetcher.
func (c *CLI) newFetcher(cfg config.Config, store cache.Cache, keyer cache.Keyer) *tiles.Router {
	return tiles.NewRouter(tiles.NewHTTPFetcher(
		tiles.WithCache(store, cfg.Cache.TTL),
		tiles.WithKeyer(keyer),
		tiles.WithLogger(c.Logger),
	))
}

func (c *CLI) newEngine(cfg config.Config, fetcher tiles.Fetcher) render.Engine {
	if cfg.Engine.Kind == config.EngineChromium {
		return &chromium.Engine{
			BrowserPath: cfg.Engine.BrowserPath,
			Headless:    true,
			MapLibreURL: cfg.Engine.MapLibreURL,
			StrictTiles: cfg.Engine.StrictTiles,
			Logger:      c.Logger,
		}
	}
	return render.NewRasterEngine(fetcher, render.RasterOptions{
		Concurrency: cfg.Engine.Concurrency,
		StrictTiles: cfg.Engine.StrictTiles,
		Logger:      c.Logger,
	})
}
