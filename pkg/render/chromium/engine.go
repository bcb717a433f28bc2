package chromium

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// ErrUnavailable is returned when the browser cannot be started.
var ErrUnavailable = fmt.Errorf("chromium: %w", render.ErrUnavailable)

// Engine renders targets in tabs of a shared headless Chromium instance.
// The zero value is usable; the browser starts on the first target.
type Engine struct {
	BrowserPath string
	Headless    bool
	Args        []string
	// MapLibreURL overrides [DefaultMapLibreURL].
	MapLibreURL string
	// StrictTiles fails the render on the first map error.
	StrictTiles bool
	Logger      *log.Logger

	live render.Tracker

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var _ render.Engine = (*Engine)(nil)

// Live implements [render.Engine].
func (e *Engine) Live() int { return e.live.Live() }

// Close shuts the browser down.
func (e *Engine) Close() error {
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *Engine) logger() *log.Logger {
	if e.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return e.Logger
}

func (e *Engine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return ErrUnavailable
	}
	return nil
}

// NewTarget implements [render.Engine]. It opens a tab and starts loading
// the map page; the tab is closed by [render.Target.Close].
func (e *Engine) NewTarget(ctx context.Context, snap render.Snapshot, opts render.TargetOptions) (render.Target, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if snap.Style == nil {
		return nil, fmt.Errorf("%w: snapshot has no style", render.ErrInvalidTarget)
	}
	if err := snap.Camera.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrInvalidTarget, err)
	}
	if err := e.ensureBrowser(); err != nil {
		return nil, err
	}

	libURL := e.MapLibreURL
	if libURL == "" {
		libURL = DefaultMapLibreURL
	}
	snap.Style = mapstyle.Sanitize(snap.Style)
	doc, err := pageHTML(snap, opts, libURL, e.StrictTiles)
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	t := &target{
		engine: e,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.future = render.NewFuture(cancel)

	intercept := snap.Transform != nil
	if intercept {
		interceptRequests(tabCtx, snap.Transform, e.logger())
	}

	e.live.Open()
	go func() {
		defer close(t.done)
		canvas, err := e.run(tabCtx, doc, opts, intercept)
		t.future.Resolve(canvas, err)
	}()
	return t, nil
}

func (e *Engine) run(ctx context.Context, doc string, opts render.TargetOptions, intercept bool) (*render.Canvas, error) {
	w, h := opts.LogicalSize()
	var dataURL string

	var actions []chromedp.Action
	if intercept {
		actions = append(actions, fetch.Enable())
	}
	actions = append(actions,
		emulation.SetDeviceMetricsOverride(int64(w+0.5), int64(h+0.5), opts.PixelRatio, false),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.Evaluate(resultExpr, &dataURL, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)

	if err := chromedp.Run(ctx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("chromium render: %w", err)
	}
	return decodeDataURL(dataURL, opts.PixelRatio)
}

func decodeDataURL(dataURL string, ratio float64) (*render.Canvas, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, fmt.Errorf("chromium render: unexpected canvas data")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("chromium render: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("chromium render: %w", err)
	}
	return render.NewCanvas(img, ratio), nil
}

// interceptRequests rewrites every request of the tab through transform.
func interceptRequests(tabCtx context.Context, transform tiles.RequestTransform, logger *log.Logger) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			ctx := cdp.WithExecutor(tabCtx, c.Target)

			req := transform.Apply(paused.Request.URL, guessKind(paused.Request.URL))
			cont := fetch.ContinueRequest(paused.RequestID)
			if req.URL != "" && req.URL != paused.Request.URL {
				cont = cont.WithURL(req.URL)
			}
			if len(req.Headers) > 0 {
				cont = cont.WithHeaders(mergeHeaders(paused.Request.Headers, req.Headers))
			}
			if err := cont.Do(ctx); err != nil && tabCtx.Err() == nil {
				logger.Debug("continue request failed", "url", paused.Request.URL, "error", err)
			}
		}()
	})
}

// guessKind classifies a browser request by its URL. The browser does not
// tell which map resource a request is for.
func guessKind(rawURL string) tiles.ResourceKind {
	path := rawURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	switch {
	case strings.Contains(path, "sprite"):
		return tiles.KindSprite
	case strings.HasSuffix(path, ".pbf") && (strings.Contains(path, "font") || strings.Contains(path, "glyph")):
		return tiles.KindGlyphs
	case strings.HasSuffix(path, "style.json"):
		return tiles.KindStyle
	case strings.HasSuffix(path, ".json"):
		return tiles.KindSource
	}
	for _, ext := range []string{".pbf", ".mvt", ".png", ".jpg", ".jpeg", ".webp"} {
		if strings.HasSuffix(path, ext) {
			return tiles.KindTile
		}
	}
	return tiles.KindUnknown
}

func mergeHeaders(orig map[string]any, extra map[string]string) []*fetch.HeaderEntry {
	out := make([]*fetch.HeaderEntry, 0, len(orig)+len(extra))
	for name, v := range orig {
		if _, ok := lookupHeader(extra, name); ok {
			continue
		}
		out = append(out, &fetch.HeaderEntry{Name: name, Value: fmt.Sprint(v)})
	}
	for name, v := range extra {
		out = append(out, &fetch.HeaderEntry{Name: name, Value: v})
	}
	return out
}

func lookupHeader(h map[string]string, name string) (string, bool) {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

type target struct {
	engine *Engine
	future *render.Future
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

func (t *target) Idle() *render.Future { return t.future }

func (t *target) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
		t.future.Resolve(nil, context.Canceled)
		t.engine.live.Closed()
	})
	return nil
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
