package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/observability"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/render/sink"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// DefaultTimeout bounds the wait for the map to become idle.
const DefaultTimeout = 2 * time.Minute

// State is the exporter's lifecycle state.
type State int32

const (
	Idle State = iota
	Exporting
)

func (s State) String() string {
	if s == Exporting {
		return "exporting"
	}
	return "idle"
}

// Option configures an [Exporter].
type Option func(*Exporter)

// WithTimeout sets how long to wait for the map to become idle.
func WithTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithFeedback sets the user feedback channel (default: none).
func WithFeedback(f Feedback) Option {
	return func(e *Exporter) {
		if f != nil {
			e.feedback = f
		}
	}
}

// WithDownloader sets where artifacts are delivered (default: nowhere).
func WithDownloader(d Downloader) Option {
	return func(e *Exporter) {
		if d != nil {
			e.downloader = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPDFAuthor overrides the author written into PDF documents.
func WithPDFAuthor(author string) Option {
	return func(e *Exporter) { e.author = author }
}

// Exporter renders snapshots off-screen and delivers the encoded result.
// It runs one export at a time; concurrent calls fail with [ErrBusy].
type Exporter struct {
	engine     render.Engine
	feedback   Feedback
	downloader Downloader
	timeout    time.Duration
	logger     *log.Logger
	author     string

	state atomic.Int32
}

// New creates an exporter rendering with engine.
func New(engine render.Engine, opts ...Option) *Exporter {
	e := &Exporter{
		engine:     engine,
		feedback:   NopFeedback{},
		downloader: DownloaderFunc(func(context.Context, sink.Artifact) error { return nil }),
		timeout:    DefaultTimeout,
		logger:     log.NewWithOptions(io.Discard, log.Options{}),
		author:     sink.DefaultAuthor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Exporter) State() State { return State(e.state.Load()) }

// Export renders snap as described by req, delivers the artifact and
// returns it. Any failure is alerted once and returned as an [*Error].
func (e *Exporter) Export(ctx context.Context, snap render.Snapshot, req Request) (art sink.Artifact, err error) {
	if !e.state.CompareAndSwap(int32(Idle), int32(Exporting)) {
		err = &Error{Kind: KindBusy, Err: ErrBusy}
		e.feedback.Alert(ctx, err)
		return sink.Artifact{}, err
	}
	defer e.state.Store(int32(Idle))

	start := time.Now()
	defer func() {
		if err != nil {
			e.logger.Debug("export aborted", "request", req, "error", err)
			e.feedback.Alert(ctx, err)
		}
	}()

	if err := req.Validate(); err != nil {
		return sink.Artifact{}, &Error{Kind: KindValidation, Err: err}
	}
	if err := apperrors.ValidateToken(req.Credential); err != nil {
		return sink.Artifact{}, &Error{Kind: KindValidation, Err: err}
	}
	if req.Credential != "" {
		snap.Transform = tiles.WithCredential(snap.Transform, req.Credential)
	}

	opts := req.Target()
	hooks := observability.Export()
	hooks.OnExportStart(ctx, req.Format.String(), opts.Width, opts.Height)
	defer func() { hooks.OnExportComplete(ctx, req.Format.String(), time.Since(start), err) }()

	art, err = e.produce(ctx, snap, req, opts)
	if err != nil {
		return sink.Artifact{}, err
	}
	if err := e.downloader.Download(ctx, art); err != nil {
		return sink.Artifact{}, &Error{Kind: KindDelivery, Err: err}
	}

	e.logger.Info("exported map", "file", art.Name, "size", len(art.Data), "duration", time.Since(start).Round(time.Millisecond))
	return art, nil
}

// produce renders and encodes. The target is torn down and the loading
// indicator hidden before it returns.
func (e *Exporter) produce(ctx context.Context, snap render.Snapshot, req Request, opts render.TargetOptions) (sink.Artifact, error) {
	e.feedback.ShowLoading(ctx, fmt.Sprintf("Rendering %dx%d %s", opts.Width, opts.Height, req.Format))
	defer e.feedback.HideLoading(ctx)

	hooks := observability.Export()
	renderStart := time.Now()
	target, err := e.engine.NewTarget(ctx, snap, opts)
	if err != nil {
		hooks.OnRenderComplete(ctx, time.Since(renderStart), err)
		return sink.Artifact{}, classify(err, KindRender)
	}
	defer func() {
		if cerr := target.Close(); cerr != nil {
			e.logger.Warn("closing render target", "error", cerr)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	canvas, err := target.Idle().Wait(waitCtx)
	hooks.OnRenderComplete(ctx, time.Since(renderStart), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return sink.Artifact{}, &Error{Kind: KindTimeout, Err: fmt.Errorf("%w after %s", ErrTimeout, e.timeout)}
		}
		return sink.Artifact{}, classify(err, KindRender)
	}
	e.logger.Debug("map idle", "width", canvas.Width(), "height", canvas.Height(), "duration", time.Since(renderStart).Round(time.Millisecond))

	encodeStart := time.Now()
	art, err := e.encode(canvas, snap, req, opts)
	hooks.OnEncodeComplete(ctx, req.Format.String(), len(art.Data), time.Since(encodeStart), err)
	if err != nil {
		return sink.Artifact{}, err
	}
	return art, nil
}

func (e *Exporter) encode(c *render.Canvas, snap render.Snapshot, req Request, opts render.TargetOptions) (sink.Artifact, error) {
	var (
		art sink.Artifact
		err error
	)
	switch req.Format {
	case PNG:
		art, err = sink.EncodePNG(c)
	case JPEG:
		art, err = sink.EncodeJPEG(c)
	case PDF:
		w, h := req.PageMM()
		var title string
		if snap.Style != nil {
			title = snap.Style.Name
		}
		art, err = sink.EncodePDF(c,
			sink.WithPageSize(w, h),
			sink.WithTitle(title),
			sink.WithSubject(snap.Camera.String()),
			sink.WithAuthor(e.author),
		)
	case SVG:
		art, err = sink.EncodeSVG(c, sink.WithSVGSize(opts.Width, opts.Height))
	default:
		return sink.Artifact{}, &Error{Kind: KindValidation, Err: fmt.Errorf("%w: %v", ErrUnsupportedFormat, req.Format)}
	}
	if err != nil {
		return sink.Artifact{}, &Error{Kind: KindEncode, Err: err}
	}
	return art, nil
}

// ExportSettings resolves s into a request and exports it. Invalid
// settings, such as an unknown format, are alerted like any other failure.
func (e *Exporter) ExportSettings(ctx context.Context, snap render.Snapshot, s Settings) (sink.Artifact, error) {
	req, err := s.Request()
	if err != nil {
		e.feedback.Alert(ctx, err)
		return sink.Artifact{}, err
	}
	return e.Export(ctx, snap, req)
}
