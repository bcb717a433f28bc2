package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mapexport/internal/config"
	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/pipeline"
	"github.com/matzehuels/mapexport/pkg/units"
)

// exportFlags holds the flags of the export command.
type exportFlags struct {
	center      string
	zoom        float64
	bearing     float64
	pitch       float64
	pageSize    string
	orientation string
	unit        string
	format      string
	dpi         int
	token       string
	output      string
	engine      string
	timeout     time.Duration
	noCache     bool
	refresh     bool
	interactive bool
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export STYLE",
		Short: "Render a map style to map.png, map.jpg, map.pdf or map.svg",
		Long: `Render a MapLibre style off-screen at a paper size and resolution.

STYLE is a path to a style.json or an http(s) URL. The output is written to
the output directory as map.<ext>; an existing file is replaced.

Unset flags take their values from the config file, then from the built-in
defaults (A4 landscape PDF at 300 dpi).`,
		Example: `  # A3 portrait PNG of Berlin at 200 dpi
  mapexport export style.json --center 13.40,52.52 --zoom 11 \
    --page-size A3 --orientation portrait --format png --dpi 200

  # Pick the settings interactively
  mapexport export https://demotiles.maplibre.org/style.json -i`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.center, "center", "0,0", "map center as lng,lat")
	flags.Float64VarP(&f.zoom, "zoom", "z", 0, "zoom level")
	flags.Float64Var(&f.bearing, "bearing", 0, "rotation in degrees clockwise from north")
	flags.Float64Var(&f.pitch, "pitch", 0, "tilt in degrees")
	flags.StringVarP(&f.pageSize, "page-size", "p", "", "paper preset (A2-A6, B2-B6) or WxH")
	flags.StringVar(&f.orientation, "orientation", "", "landscape or portrait")
	flags.StringVar(&f.unit, "unit", "", "unit of a WxH page size: mm or in")
	flags.StringVarP(&f.format, "format", "f", "", "output format: png, jpg, pdf or svg")
	flags.IntVar(&f.dpi, "dpi", 0, "resolution: 72, 96, 200, 300 or 400")
	flags.StringVar(&f.token, "token", "", "access token appended to style and tile requests")
	flags.StringVarP(&f.output, "output", "o", ".", "output directory")
	flags.StringVar(&f.engine, "engine", "", "renderer: raster or chromium")
	flags.DurationVar(&f.timeout, "timeout", 0, "give up if the map is not idle after this long")
	flags.BoolVar(&f.noCache, "no-cache", false, "disable the tile and export cache")
	flags.BoolVar(&f.refresh, "refresh", false, "render even if the export is cached")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "choose settings interactively")

	return cmd
}

func (c *CLI) runExport(cmd *cobra.Command, style string, f exportFlags) error {
	ctx := cmd.Context()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if f.engine != "" {
		cfg.Engine.Kind = strings.ToLower(f.engine)
	}
	if f.timeout > 0 {
		cfg.Engine.Timeout = f.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	settings, err := applyExportFlags(cfg.Export, f)
	if err != nil {
		return err
	}
	if f.interactive {
		settings, err = pickSettings(settings)
		if err != nil {
			return err
		}
	}

	center, err := parseCenter(f.center)
	if err != nil {
		return err
	}
	camera := mapstyle.Camera{Center: center, Zoom: f.zoom, Bearing: f.bearing, Pitch: f.pitch}
	if camera.Pitch > 0 && cfg.Engine.Kind == config.EngineRaster {
		printWarning("The raster engine draws pitched maps flat; use --engine chromium for 3D views")
	}

	runner, err := c.newRunner(ctx, cfg, f.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	feedback := &spinnerFeedback{}
	out := export.DirDownloader{Dir: f.output}
	orientation, unit := settings.Orientation, settings.Unit
	opts := pipeline.Options{
		StyleURL:    style,
		Camera:      camera,
		PageSize:    settings.PageSize,
		Orientation: &orientation,
		Unit:        &unit,
		Format:      settings.Format,
		DPI:         settings.DPI,
		Credential:  settings.Credential,
		Refresh:     f.refresh,
		Logger:      c.Logger,
		Feedback:    feedback,
		Downloader:  out,
	}

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		if feedback.Alerted() {
			return reported(err)
		}
		return err
	}

	printSuccess("Exported %s", result.Request)
	printFile(out.Path(result.Artifact))
	printStats(result.Stats.Width, result.Stats.Height, result.Stats.Bytes,
		result.Stats.StyleTime+result.Stats.ExportTime, result.CacheInfo.ArtifactHit)
	return nil
}

// applyExportFlags overrides s with the flags the user set.
func applyExportFlags(s export.Settings, f exportFlags) (export.Settings, error) {
	if f.pageSize != "" {
		p, err := units.ParsePageSize(f.pageSize)
		if err != nil {
			return s, err
		}
		s.PageSize = p
	}
	if f.orientation != "" {
		o, err := units.ParseOrientation(f.orientation)
		if err != nil {
			return s, err
		}
		s.Orientation = o
	}
	if f.unit != "" {
		u, err := units.ParseUnit(f.unit)
		if err != nil {
			return s, err
		}
		s.Unit = u
	}
	if f.format != "" {
		if _, err := export.ParseFormat(f.format); err != nil {
			return s, err
		}
		s.Format = f.format
	}
	if f.dpi != 0 {
		if !units.ValidDPI(f.dpi) {
			return s, fmt.Errorf("dpi %d not in %v", f.dpi, units.DPIs)
		}
		s.DPI = f.dpi
	}
	if f.token != "" {
		s.Credential = f.token
	}
	return s, nil
}

// pickSettings runs the interactive picker.
func pickSettings(s export.Settings) (export.Settings, error) {
	final, err := tea.NewProgram(NewExportPickerModel(s)).Run()
	if err != nil {
		return s, fmt.Errorf("interactive picker: %w", err)
	}
	m, ok := final.(ExportPickerModel)
	if !ok || !m.Confirmed {
		return s, errors.New("export cancelled")
	}
	return m.Settings(s)
}

// parseCenter parses "lng,lat".
func parseCenter(s string) (orb.Point, error) {
	lng, lat, ok := strings.Cut(s, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("center must be lng,lat: %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	return orb.Point{x, y}, nil
}
