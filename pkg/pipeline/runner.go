package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapexport/pkg/cache"
	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/httputil"
	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/render/sink"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating style loading and artifact
// caching.
//
// The Runner does not store results. Multiple goroutines can use the same
// Runner concurrently; every Execute builds its own [export.Exporter].
type Runner struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Fetcher tiles.Fetcher
	Engine  render.Engine
	Logger  *log.Logger

	// Defaults fill unset Options fields.
	Defaults export.Settings
	// Timeout bounds the wait for the map to become idle.
	Timeout time.Duration
	// PDFAuthor is written into PDF documents when set.
	PDFAuthor string
	// ArtifactTTL is how long encoded exports stay cached. Zero disables
	// artifact caching.
	ArtifactTTL time.Duration
	// Transform is applied to every style, source and tile request before
	// the per-export credential.
	Transform tiles.RequestTransform
	// AllowLocalStyles lets StyleURL name a file on disk. Only the CLI sets it.
	AllowLocalStyles bool
}

// NewRunner creates a runner.
// If fetcher is nil, a [tiles.Router] over a default HTTP fetcher is used.
// If engine is nil, a [render.RasterEngine] over fetcher is used.
// If cache is nil, a NullCache is used (caching disabled).
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(engine render.Engine, fetcher tiles.Fetcher, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if fetcher == nil {
		fetcher = tiles.NewRouter(nil)
	}
	if engine == nil {
		engine = render.NewRasterEngine(fetcher, render.RasterOptions{Logger: logger})
	}
	return &Runner{
		Cache:       c,
		Keyer:       keyer,
		Fetcher:     fetcher,
		Engine:      engine,
		Logger:      logger,
		Defaults:    export.DefaultSettings(),
		Timeout:     export.DefaultTimeout,
		ArtifactTTL: cache.ArtifactTTL,
	}
}

// Execute runs style → export → cache for opts.
// Errors are [*export.Error] or [*apperrors.Error]; use [export.AsAppError]
// to map them to codes.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	// The exporter alerts its own failures; earlier stages alert here.
	fail := func(err error) (*Result, error) {
		if opts.Feedback != nil {
			opts.Feedback.Alert(ctx, err)
		}
		return nil, err
	}
	if err := opts.ValidateAndSetDefaults(r.Defaults); err != nil {
		return fail(err)
	}

	req, err := opts.Request()
	if err != nil {
		return fail(err)
	}
	target := req.Target()
	result := &Result{Request: req}
	result.Stats.Width, result.Stats.Height = target.Width, target.Height

	// Stage 1: Style
	styleStart := time.Now()
	snap, err := r.Snapshot(ctx, opts)
	if err != nil {
		return fail(err)
	}
	result.Stats.StyleTime = time.Since(styleStart)

	hash, err := snap.Hash()
	if err != nil {
		return fail(fmt.Errorf("hash snapshot: %w", err))
	}
	result.SnapshotHash = hash
	key := r.keyer(opts.Credential).ArtifactKey(hash, artifactKeyOpts(req))

	opts.Logger.Debug("loaded style",
		"name", snap.Style.Name,
		"layers", len(snap.Style.Layers),
		"duration", result.Stats.StyleTime)

	// Stage 2: cached artifact
	if !opts.Refresh && r.ArtifactTTL > 0 {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			art := sink.Artifact{Name: req.Format.FileName(), MediaType: req.Format.MediaType(), Data: data}
			if err := r.deliver(ctx, opts, art); err != nil {
				return nil, err
			}
			result.Artifact = art
			result.Stats.Bytes = len(data)
			result.CacheInfo.ArtifactHit = true
			var rec exportRecord
			if ok, err := r.records().Get(ctx, key, &rec); err == nil && ok {
				result.Stats.ExportTime = rec.ExportTime
				result.CacheInfo.RenderedAt = rec.RenderedAt
			}
			opts.Logger.Info("served cached export", "file", art.Name, "size", len(data), "rendered", result.CacheInfo.RenderedAt)
			return result, nil
		}
	}

	// Stage 3: Export
	exportStart := time.Now()
	exp := export.New(r.Engine,
		export.WithTimeout(r.Timeout),
		export.WithLogger(opts.Logger),
		export.WithFeedback(opts.Feedback),
		export.WithDownloader(opts.Downloader),
		r.authorOption(),
	)
	art, err := exp.Export(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	result.Artifact = art
	result.Stats.Bytes = len(art.Data)
	result.Stats.ExportTime = time.Since(exportStart)

	if r.ArtifactTTL > 0 {
		if err := r.Cache.Set(ctx, key, art.Data, r.ArtifactTTL); err != nil {
			opts.Logger.Warn("cache export", "error", err)
		} else {
			rec := exportRecord{Style: snap.Style.Name, ExportTime: result.Stats.ExportTime, RenderedAt: time.Now().UTC()}
			if err := r.records().Set(ctx, key, rec); err != nil {
				opts.Logger.Warn("cache export record", "error", err)
			}
		}
	}
	return result, nil
}

// Snapshot loads the style of opts and pairs it with the camera.
func (r *Runner) Snapshot(ctx context.Context, opts Options) (render.Snapshot, error) {
	style, err := r.LoadStyle(ctx, opts)
	if err != nil {
		return render.Snapshot{}, err
	}
	if !r.AllowLocalStyles {
		if err := checkRemoteSources(style); err != nil {
			return render.Snapshot{}, err
		}
	}
	return render.Snapshot{
		Camera:    opts.Camera.Normalized(),
		Style:     style,
		Transform: r.Transform,
	}, nil
}

// LoadStyle parses the inline style or fetches StyleURL. StyleURL may be a
// local path when AllowLocalStyles is set.
func (r *Runner) LoadStyle(ctx context.Context, opts Options) (*mapstyle.Style, error) {
	if len(opts.Style) > 0 {
		style, err := mapstyle.Parse(opts.Style)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidStyle, err, "%s", err.Error())
		}
		return style, nil
	}

	if !r.AllowLocalStyles {
		if err := apperrors.ValidateURL(opts.StyleURL); err != nil {
			return nil, err
		}
	}
	transform := tiles.WithCredential(r.Transform, opts.Credential)
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		if err := apperrors.ValidateURL(url); err != nil {
			return nil, err
		}
		return r.Fetcher.Fetch(ctx, transform.Apply(url, tiles.KindStyle))
	}
	style, err := mapstyle.Load(ctx, opts.StyleURL, fetch)
	switch {
	case err == nil:
		return style, nil
	case errors.Is(err, mapstyle.ErrInvalidStyle):
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidStyle, err, "%s", err.Error())
	case errors.Is(err, tiles.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, err, "style not found: %s", opts.StyleURL)
	case apperrors.GetCode(err) != "":
		return nil, err
	}
	return nil, apperrors.Wrap(apperrors.ErrCodeNetwork, err, "could not load style %s", opts.StyleURL)
}

// checkRemoteSources rejects sources whose url or tile templates are not
// http(s). Falsy entries are skipped since rendering drops them.
func checkRemoteSources(style *mapstyle.Style) error {
	for name, src := range mapstyle.Sanitize(style).Sources {
		refs := src.Tiles()
		if u := src.URL(); u != "" {
			refs = append(refs, u)
		}
		for _, ref := range refs {
			if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
				return apperrors.New(apperrors.ErrCodeInvalidURL, "source %q: only http(s) URLs are allowed, got %q", name, ref)
			}
		}
	}
	return nil
}

// Close releases resources held by the runner: the cache, and the fetcher
// and engine when they hold any.
func (r *Runner) Close() error {
	var errs []error
	if c, ok := r.Engine.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := r.Fetcher.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	return errors.Join(errs...)
}

// exportRecord is stored next to a cached artifact so a hit can report
// how the original export went.
type exportRecord struct {
	Style      string        `json:"style"`
	ExportTime time.Duration `json:"export_time"`
	RenderedAt time.Time     `json:"rendered_at"`
}

func (r *Runner) records() *httputil.Cache {
	return httputil.NewCache(r.Cache, r.ArtifactTTL).Namespace("record:")
}

// deliver hands a cached artifact to the downloader, reporting failures the
// way the exporter does.
func (r *Runner) deliver(ctx context.Context, opts Options, art sink.Artifact) error {
	if opts.Downloader == nil {
		return nil
	}
	if err := opts.Downloader.Download(ctx, art); err != nil {
		err = &export.Error{Kind: export.KindDelivery, Err: err}
		if opts.Feedback != nil {
			opts.Feedback.Alert(ctx, err)
		}
		return err
	}
	return nil
}

// keyer scopes artifact keys per credential so that exports rendered with
// one token are never served to another.
func (r *Runner) keyer(credential string) cache.Keyer {
	if credential == "" {
		return r.Keyer
	}
	return cache.NewScopedKeyer(r.Keyer, "tenant:"+cache.Hash([]byte(credential))[:12]+":")
}

func (r *Runner) authorOption() export.Option {
	if r.PDFAuthor == "" {
		return func(*export.Exporter) {}
	}
	return export.WithPDFAuthor(r.PDFAuthor)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func artifactKeyOpts(req export.Request) cache.ArtifactKeyOpts {
	w, h := req.PageMM()
	return cache.ArtifactKeyOpts{
		Format:   req.Format.String(),
		WidthMM:  w,
		HeightMM: h,
		DPI:      req.DPI,
	}
}
