// Package config loads mapexport settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, a .env file
// in the working directory, MAPEXPORT_* environment variables. Command-line
// flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/mapexport/pkg/cache"
	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/units"
)

// AppName names the config and cache directories.
const AppName = "mapexport"

// envPrefix prefixes every environment override.
const envPrefix = "MAPEXPORT_"

// Engine kinds.
const (
	EngineRaster   = "raster"
	EngineChromium = "chromium"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheMongo = "mongo"
	CacheNone  = "none"
)

// Config is the complete application configuration.
type Config struct {
	Export export.Settings `toml:"export"`
	Engine EngineConfig    `toml:"engine"`
	Cache  CacheConfig     `toml:"cache"`
	Server ServerConfig    `toml:"server"`
	PDF    PDFConfig       `toml:"pdf"`
}

// EngineConfig selects and tunes the renderer.
type EngineConfig struct {
	Kind        string        `toml:"kind"`
	Timeout     time.Duration `toml:"timeout"`
	Concurrency int           `toml:"concurrency"`
	StrictTiles bool          `toml:"strict_tiles"`
	BrowserPath string        `toml:"browser_path"`
	MapLibreURL string        `toml:"maplibre_url"`
}

// CacheConfig configures the tile and document cache.
type CacheConfig struct {
	Backend       string        `toml:"backend"`
	Dir           string        `toml:"dir"`
	TTL           time.Duration `toml:"ttl"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	Prefix        string        `toml:"prefix"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string        `toml:"addr"`
	MaxConcurrent  int           `toml:"max_concurrent"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxBodyBytes   int64         `toml:"max_body_bytes"`
	ArtifactTTL    time.Duration `toml:"artifact_ttl"`
}

// PDFConfig holds document properties written into PDFs.
type PDFConfig struct {
	Author string `toml:"author"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Export: export.DefaultSettings(),
		Engine: EngineConfig{
			Kind:        EngineRaster,
			Timeout:     export.DefaultTimeout,
			Concurrency: 8,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     cache.TileTTL,
			Prefix:  AppName + ":",

			MongoDatabase:   AppName,
			MongoCollection: "cache",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxConcurrent:  4,
			RequestTimeout: 3 * time.Minute,
			MaxBodyBytes:   4 << 20,
			ArtifactTTL:    cache.ArtifactTTL,
		},
	}
}

// Load reads the config file at path, then applies .env and environment
// overrides. An empty path means [DefaultPath]; a missing default file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside an export.
func (c Config) Validate() error {
	switch c.Engine.Kind {
	case EngineRaster, EngineChromium:
	default:
		return fmt.Errorf("engine.kind: unknown engine %q", c.Engine.Kind)
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheMongo, CacheNone:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr is required for the redis backend")
	}
	if c.Cache.Backend == CacheMongo && c.Cache.MongoURI == "" {
		return errors.New("cache.mongo_uri is required for the mongo backend")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if !units.ValidDPI(c.Export.DPI) {
		return fmt.Errorf("export.dpi: %d not in %v", c.Export.DPI, units.DPIs)
	}
	if c.Server.MaxConcurrent < 1 {
		return errors.New("server.max_concurrent must be at least 1")
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/mapexport/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// CacheDir returns the configured cache directory, or the XDG default
// (~/.cache/mapexport/).
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	if v := os.Getenv(envPrefix + "PAGE_SIZE"); v != "" {
		p, err := units.ParsePageSize(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", envPrefix, err))
		} else {
			c.Export.PageSize = p
		}
	}
	if v := os.Getenv(envPrefix + "ORIENTATION"); v != "" {
		o, err := units.ParseOrientation(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sORIENTATION: %w", envPrefix, err))
		} else {
			c.Export.Orientation = o
		}
	}
	str("FORMAT", &c.Export.Format)
	num("DPI", &c.Export.DPI)
	str("ACCESS_TOKEN", &c.Export.Credential)

	str("ENGINE", &c.Engine.Kind)
	dur("TIMEOUT", &c.Engine.Timeout)
	num("CONCURRENCY", &c.Engine.Concurrency)
	flag("STRICT_TILES", &c.Engine.StrictTiles)
	str("BROWSER_PATH", &c.Engine.BrowserPath)
	str("MAPLIBRE_URL", &c.Engine.MapLibreURL)

	str("CACHE", &c.Cache.Backend)
	str("CACHE_DIR", &c.Cache.Dir)
	dur("CACHE_TTL", &c.Cache.TTL)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	num("REDIS_DB", &c.Cache.RedisDB)
	str("MONGO_URI", &c.Cache.MongoURI)

	str("ADDR", &c.Server.Addr)
	num("MAX_CONCURRENT", &c.Server.MaxConcurrent)
	dur("REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("PDF_AUTHOR", &c.PDF.Author)

	c.Engine.Kind = strings.ToLower(c.Engine.Kind)
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	return errors.Join(errs...)
}
